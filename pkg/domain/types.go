package domain

import (
	"strings"
	"time"
)

// ApplicationStatus is the lifecycle label of a job application.
type ApplicationStatus string

const (
	StatusDrafting  ApplicationStatus = "Drafting"
	StatusSubmitted ApplicationStatus = "Submitted"
	StatusInterview ApplicationStatus = "Interview"
	StatusOffer     ApplicationStatus = "Offer"
	StatusRejected  ApplicationStatus = "Rejected"
	StatusWithdrawn ApplicationStatus = "Withdrawn"
)

// AllowedStatuses lists the status vocabulary in display order.
var AllowedStatuses = []ApplicationStatus{
	StatusDrafting,
	StatusSubmitted,
	StatusInterview,
	StatusOffer,
	StatusRejected,
	StatusWithdrawn,
}

// ParseStatus reports whether s is part of the status vocabulary.
// Matching is exact; "drafting" is not accepted.
func ParseStatus(s string) (ApplicationStatus, bool) {
	for _, status := range AllowedStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

const (
	DefaultDeliverableType  = "Other"
	DefaultDeliverableState = "Not started"
	DeliverableStateDone    = "Done"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    Timestamp `json:"created_at"`
}

type Application struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"-"`
	Company       string            `json:"company"`
	Role          string            `json:"role"`
	Link          *string           `json:"link"`
	Status        ApplicationStatus `json:"status"`
	DueDate       *Timestamp        `json:"due_date"`
	SubmittedDate *Timestamp        `json:"submitted_date"`
	Notes         *string           `json:"notes"`
	CreatedAt     Timestamp         `json:"created_at"`
	UpdatedAt     Timestamp         `json:"updated_at"`
}

type Deliverable struct {
	ID            int64      `json:"id"`
	ApplicationID int64      `json:"application_id"`
	Title         string     `json:"title"`
	Type          string     `json:"dtype"`
	DueDate       *Timestamp `json:"due_date"`
	State         string     `json:"state"`
	Content       *string    `json:"content"`
	IsDone        bool       `json:"is_done"`
	CreatedAt     Timestamp  `json:"created_at"`
	UpdatedAt     Timestamp  `json:"updated_at"`
}

type WritingBankItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Title     string    `json:"title"`
	Tags      *string   `json:"tags"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// ChatRole identifies the author of a chat turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "model"
)

// ChatTurn is one prior message replayed to the language model.
type ChatTurn struct {
	Role ChatRole
	Text string
}

// NewTimestamp wraps t normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// TimestampPtr converts an optional time into an optional Timestamp.
func TimestampPtr(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := NewTimestamp(*t)
	return &ts
}

// ParseChatRole accepts "user", "model" and "assistant" in any case.
func ParseChatRole(s string) (ChatRole, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return ChatRoleUser, true
	case "model", "assistant":
		return ChatRoleAssistant, true
	}
	return "", false
}
