package telephony

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs the voice webhook emits are modelled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlDial struct {
	XMLName        xml.Name    `xml:"Dial"`
	CallerID       string      `xml:"callerId,attr"`
	AnswerOnBridge bool        `xml:"answerOnBridge,attr,omitempty"`
	Number         twimlNumber `xml:"Number"`
}

type twimlNumber struct {
	Number string `xml:",chardata"`
}

// DialTwiML bridges the agent leg to destination showing callerID.
func DialTwiML(callerID, destination string) (string, error) {
	callerID = strings.TrimSpace(callerID)
	destination = strings.TrimSpace(destination)
	if callerID == "" || destination == "" {
		return "", domain.Validation("callerId and destination required for dial")
	}
	return render(twimlResponse{Verbs: []any{twimlDial{
		CallerID:       callerID,
		AnswerOnBridge: true,
		Number:         twimlNumber{Number: destination},
	}}})
}

// RejectTwiML optionally speaks message before rejecting.
func RejectTwiML(message string) (string, error) {
	var r twimlResponse
	if message != "" {
		r.Verbs = append(r.Verbs, twimlSay{Text: message})
	}
	r.Verbs = append(r.Verbs, twimlReject{Reason: "busy"})
	return render(r)
}

// EmptyTwiML acknowledges a callback without further instructions.
func EmptyTwiML() string {
	return xml.Header + "<Response></Response>"
}

func render(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
