package domain

import (
	"encoding/json"
	"time"
)

// Transcript is one transcribed slice of call audio.
type Transcript struct {
	ID         string    `json:"id" db:"id"`
	CallSid    string    `json:"call_sid" db:"call_sid"`
	Speaker    string    `json:"speaker" db:"speaker"`
	Text       string    `json:"transcript_text" db:"transcript_text"`
	Confidence float64   `json:"confidence" db:"confidence"`
	StartTime  float64   `json:"start_time" db:"start_time"`
	Duration   float64   `json:"duration" db:"duration"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Analysis types stored alongside coaching output.
const (
	AnalysisRealtimeCoaching = "real_time_coaching"
	AnalysisCallSummary      = "call_summary"
)

// Analysis is a stored AI output for a call.
type Analysis struct {
	ID               string          `json:"id" db:"id"`
	CallSid          string          `json:"call_sid,omitempty" db:"call_sid"`
	ContactID        string          `json:"contact_id,omitempty" db:"contact_id"`
	AnalysisType     string          `json:"analysis_type" db:"analysis_type"`
	Result           json.RawMessage `json:"analysis_result" db:"analysis_result"`
	ProcessingTimeMs float64         `json:"processing_time_ms" db:"processing_time_ms"`
	Confidence       float64         `json:"confidence" db:"confidence"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}
