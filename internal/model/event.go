package model

import "time"

type CustomerEventType string

const (
	CustomerCreated CustomerEventType = "customer.created"
	CustomerUpdated CustomerEventType = "customer.updated"
)

// CustomerEvent is published to Kafka after a customer is persisted or changed.
type CustomerEvent struct {
	Type       CustomerEventType `json:"type"`
	CustomerID string            `json:"customer_id"`
	Username   string            `json:"username"`
	Email      string            `json:"email"`
	Source     string            `json:"source"` // http | queue | seed
	OccurredAt time.Time         `json:"occurred_at"`
}

type LoginOutcome string

const (
	LoginSucceeded LoginOutcome = "success"
	LoginRejected  LoginOutcome = "rejected"
)

// LoginAttempt is one row of the auth audit table.
type LoginAttempt struct {
	Username  string       `db:"username"   json:"username"`
	SubjectID string       `db:"subject_id" json:"subjectId,omitempty"`
	Outcome   LoginOutcome `db:"outcome"    json:"outcome"`
	RemoteIP  string       `db:"remote_ip"  json:"remoteIp,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}
