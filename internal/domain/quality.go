package domain

import "time"

// QualitySample is one reported audio-quality measurement for a call.
//
// Metric fields are optional. Violations and MeetsSLO are derived at write time
// and MeetsSLO is always len(Violations) == 0. A stored sample is immutable.
type QualitySample struct {
	ID      string `json:"id" db:"id"`
	CallSid string `json:"call_sid" db:"call_sid"`

	// PhoneNumberID attributes the sample to the caller ID used, when known.
	PhoneNumberID string `json:"phone_number_id,omitempty" db:"phone_number_id"`

	MOS           *float64 `json:"mos_score" db:"mos_score"`
	LatencyMs     *float64 `json:"latency" db:"latency"`
	JitterMs      *float64 `json:"jitter" db:"jitter"`
	PacketLossPct *float64 `json:"packet_loss" db:"packet_loss"`

	Violations []string `json:"slo_violations" db:"slo_violations"`
	MeetsSLO   bool     `json:"meets_slo" db:"meets_slo"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
