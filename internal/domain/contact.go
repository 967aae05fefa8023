package domain

import "time"

// Contact is a lead or client record. Only the fields the carousel touches are modelled.
type Contact struct {
	ID           string `json:"id" db:"id"`
	FirstName    string `json:"first_name" db:"first_name"`
	LastName     string `json:"last_name" db:"last_name"`
	PhonePrimary string `json:"phone_primary" db:"phone_primary"`
	LeadScore    int    `json:"lead_score" db:"lead_score"`
	Status       string `json:"status" db:"status"`

	LastContactedBy string     `json:"last_contacted_by,omitempty" db:"last_contacted_by"`
	LastContactDate *time.Time `json:"last_contact_date,omitempty" db:"last_contact_date"`
}

// AgentProfile is the display identity of a team member.
type AgentProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (p AgentProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Interaction is a logged touch point (note, email, meeting) against a contact.
type Interaction struct {
	ID              string       `json:"id" db:"id"`
	ContactID       string       `json:"contact_id" db:"contact_id"`
	CreatedBy       string       `json:"created_by" db:"created_by"`
	InteractionType string       `json:"interaction_type" db:"interaction_type"`
	Notes           string       `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	Agent           AgentProfile `json:"agent"`
}

// CallLog is a placed or received call against a contact.
type CallLog struct {
	ID              string       `json:"id" db:"id"`
	CallSid         string       `json:"call_sid,omitempty" db:"call_sid"`
	ContactID       string       `json:"contact_id" db:"contact_id"`
	AgentID         string       `json:"agent_id" db:"agent_id"`
	StartedAt       time.Time    `json:"started_at" db:"started_at"`
	DurationSeconds int          `json:"duration" db:"duration"`
	Disposition     string       `json:"disposition,omitempty" db:"disposition"`
	Notes           string       `json:"notes,omitempty" db:"notes"`
	Agent           AgentProfile `json:"agent"`
}
