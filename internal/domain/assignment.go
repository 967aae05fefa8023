package domain

import "time"

// Assignment is the immutable audit record of one caller-ID selection.
//
// Created exactly once per successful selection and never updated or deleted.
// The ledger is the source of truth for usage tallies.
type Assignment struct {
	ID            string `json:"id" db:"id"`
	AgentID       string `json:"agent_id" db:"agent_id"`
	PhoneNumberID string `json:"phone_number_id" db:"phone_number_id"`

	// ContactID is empty when the call is not tied to a contact.
	ContactID string `json:"contact_id,omitempty" db:"contact_id"`

	FromNumber string `json:"from_number" db:"from_number"`
	ToNumber   string `json:"to_number" db:"to_number"`
	Strategy   string `json:"strategy" db:"strategy"`
	Reason     string `json:"reason" db:"reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
