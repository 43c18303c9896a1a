package models

import "time"

// NotificationDocument is the structured owner notification produced by the
// drafting collaborator for a new booking.
type NotificationDocument struct {
	Subject         string             `json:"subject"`
	Summary         string             `json:"summary"`
	Details         NotificationDetail `json:"details"`
	SuggestedAction string             `json:"suggestedAction"`
}

type NotificationDetail struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Service  string `json:"service"`
	DateTime string `json:"dateTime"`
	Notes    string `json:"notes"`
}

// SmsExplanation is the alternative collaborator output: a step-by-step guide
// for wiring up SMS delivery of booking alerts.
type SmsExplanation struct {
	Title        string            `json:"title"`
	Introduction string            `json:"introduction"`
	Steps        []ExplanationStep `json:"steps"`
	FileTree     []FileTreeEntry   `json:"fileTree,omitempty"`
	CodeSnippet  CodeSnippet       `json:"codeSnippet"`
	Conclusion   string            `json:"conclusion"`
}

type ExplanationStep struct {
	StepTitle       string `json:"stepTitle"`
	StepDescription string `json:"stepDescription"`
}

type FileTreeEntry struct {
	Name  string `json:"name"`
	Type  string `json:"type"` // "folder" or "file"
	Level int    `json:"level"`
}

type CodeSnippet struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// NotifyTask is a queued unit of work for the notification worker.
type NotifyTask struct {
	ID         int64     `json:"id"`
	BookingID  int64     `json:"booking_id"`
	Booking    *Booking  `json:"booking,omitempty"`
	Status     string    `json:"status"`
	LastError  string    `json:"last_error,omitempty"`
	RetryCount int       `json:"retry_count"`
	NextRetry  time.Time `json:"next_retry,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
