// Package phone validates and formats Australian numbers per the ACMA
// numbering plan and scores caller IDs for answer rate.
package phone

import (
	"regexp"
	"strings"
)

type Type string

const (
	TypeMobile   Type = "mobile"
	TypeLandline Type = "landline"
	TypeNational Type = "national"
	TypeTollFree Type = "toll_free"
	TypePremium  Type = "premium"
	TypeInvalid  Type = "invalid"
)

const (
	RegionNSW     = "NSW/ACT"
	RegionVIC     = "VIC/TAS"
	RegionQLD     = "QLD"
	RegionSAWANT  = "SA/WA/NT"
	RegionMobile  = "Mobile"
	RegionUnknown = "Unknown"

	CarrierTelstra  = "Telstra"
	CarrierOptus    = "Optus"
	CarrierVodafone = "Vodafone"
	CarrierUnknown  = "Unknown"
)

// AreaCodes maps trunk area codes to their regions.
var AreaCodes = map[string]string{
	"02": RegionNSW,
	"03": RegionVIC,
	"07": RegionQLD,
	"08": RegionSAWANT,
}

var (
	nonDialable = regexp.MustCompile(`[^\d+]`)
	nonDigit    = regexp.MustCompile(`\D`)
)

// Info is the result of Validate.
type Info struct {
	Valid         bool   `json:"isValid"`
	Error         string `json:"error,omitempty"`
	Type          Type   `json:"type,omitempty"`
	Formatted     string `json:"formatted,omitempty"`
	International string `json:"international,omitempty"`
	Carrier       string `json:"carrier,omitempty"`
	Region        string `json:"region,omitempty"`
}

// Validate cleans number and classifies it. Invalid input is reported in
// Info.Error rather than as a Go error.
func Validate(number string) Info {
	if number == "" {
		return Info{Error: "Number required"}
	}

	cleaned := nonDialable.ReplaceAllString(strings.Join(strings.Fields(number), ""), "")
	digits := strings.TrimPrefix(strings.ReplaceAll(cleaned, "+", ""), "61")

	if len(digits) < 8 || len(digits) > 10 {
		return Info{Error: "Invalid length"}
	}

	t := NumberType(digits)
	if t == TypeInvalid {
		return Info{Error: "Invalid Australian number format"}
	}

	return Info{
		Valid:         true,
		Type:          t,
		Formatted:     Format(cleaned),
		International: ToInternational(cleaned),
		Carrier:       DetectCarrier(digits),
		Region:        Region(digits),
	}
}

// Format renders number for display: mobiles as 04XX XXX XXX, landlines as
// 0X XXXX XXXX and 13/18 numbers as XXXX XXX XXX. Anything else is
// returned unchanged.
func Format(number string) string {
	local := nonDigit.ReplaceAllString(number, "")
	if strings.HasPrefix(local, "61") {
		local = "0" + local[2:]
	}

	switch {
	case strings.HasPrefix(local, "04") || strings.HasPrefix(local, "05"):
		return group(local, 4, 7)
	case strings.HasPrefix(local, "0") && len(local) == 10:
		return group(local, 2, 6)
	case strings.HasPrefix(local, "13") || strings.HasPrefix(local, "18"):
		if len(local) < 10 {
			return local
		}
		return group(local[:10], 4, 7) + local[10:]
	}
	return number
}

// group splits s at a and b with single spaces, tolerating short input.
func group(s string, a, b int) string {
	return clip(s, 0, a) + " " + clip(s, a, b) + " " + clip(s, b, len(s))
}

func clip(s string, from, to int) string {
	if from > len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

// ToInternational returns the +61 form of number.
func ToInternational(number string) string {
	digits := nonDigit.ReplaceAllString(number, "")
	switch {
	case strings.HasPrefix(digits, "61"):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+61" + digits[1:]
	default:
		return "+61" + digits
	}
}

// NumberType classifies cleaned digits.
func NumberType(digits string) Type {
	d := strings.TrimPrefix(digits, "0")
	switch {
	case d == "":
		return TypeInvalid
	case d[0] == '4' || d[0] == '5':
		return TypeMobile
	case strings.ContainsRune("2378", rune(d[0])):
		return TypeLandline
	case strings.HasPrefix(d, "13"):
		return TypeNational
	case strings.HasPrefix(d, "1800"):
		return TypeTollFree
	case strings.HasPrefix(d, "1900"):
		return TypePremium
	}
	return TypeInvalid
}

// DetectCarrier infers the original mobile carrier from the 4XX range.
// Ported numbers make this approximate.
func DetectCarrier(digits string) string {
	d := strings.TrimPrefix(digits, "0")
	if len(d) < 3 || d[0] != '4' {
		return CarrierUnknown
	}
	switch d[1] {
	case '0':
		return CarrierTelstra
	case '1':
		return CarrierOptus
	case '2':
		return CarrierVodafone
	}
	return CarrierUnknown
}

func Region(digits string) string {
	d := strings.TrimPrefix(digits, "0")
	if d == "" {
		return RegionUnknown
	}
	switch d[0] {
	case '2':
		return RegionNSW
	case '3':
		return RegionVIC
	case '7':
		return RegionQLD
	case '8':
		return RegionSAWANT
	case '4', '5':
		return RegionMobile
	}
	return RegionUnknown
}

// Digits strips everything but digits and drops a leading 61 country code,
// yielding the form Region, NumberType and DetectCarrier expect.
func Digits(number string) string {
	return strings.TrimPrefix(nonDigit.ReplaceAllString(number, ""), "61")
}
