package model

import "time"

// Notification priorities, ordered by urgency.
const (
	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Notification types created by the alert dispatcher.
const (
	NotifyAnomaly        = "anomaly"         // patient's own alert
	NotifyPatientAnomaly = "patient_anomaly" // doctor-facing alert
	NotifyPatientAlert   = "patient_alert"   // caretaker-facing alert
	NotifyInfo           = "info"
)

// Notification is one in-app notification record created through the
// notification sink.
type Notification struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message,omitempty"`
	RelatedUserID  *int64    `json:"related_user_id,omitempty"`
	RelatedScoreID string    `json:"related_score_id,omitempty"`
	Priority       string    `json:"priority"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// Care-circle roles.
type CareRole string

const (
	RoleDoctor    CareRole = "doctor"
	RoleCaretaker CareRole = "caretaker"
)

// LinkStatus is the state of a care-circle connection. The accept/reject
// workflow lives outside this service; the core only reads accepted links.
type LinkStatus string

const (
	LinkPending  LinkStatus = "pending"
	LinkAccepted LinkStatus = "accepted"
	LinkRejected LinkStatus = "rejected"
)

// CareLink connects a patient to one member of their care circle.
type CareLink struct {
	PatientID   int64      `json:"patient_id"`
	MemberID    int64      `json:"member_id"`
	Role        CareRole   `json:"role"`
	Status      LinkStatus `json:"status"`
	AccessLevel string     `json:"access_level,omitempty"`
}

// User is the minimal read model of an account. Account CRUD is owned by an
// external service; the core reads names for notification text and seeds
// fixture rows for local development.
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}
