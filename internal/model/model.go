package model

import "time"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTutor   Role = "TUTOR"
	RoleStudent Role = "STUDENT"
)

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleAdmin, RoleTutor, RoleStudent:
		return Role(value), true
	default:
		return "", false
	}
}

type SessionStatus string

const (
	StatusPending  SessionStatus = "PENDING"
	StatusApproved SessionStatus = "APPROVED"
	StatusRejected SessionStatus = "REJECTED"
)

func ParseSessionStatus(value string) (SessionStatus, bool) {
	switch SessionStatus(value) {
	case StatusPending, StatusApproved, StatusRejected:
		return SessionStatus(value), true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition is permitted.
func (s SessionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ValidTransition reports whether a session may move from one status to
// another. The only legal moves are PENDING to a terminal status.
func ValidTransition(from, to SessionStatus) bool {
	return from == StatusPending && to.Terminal()
}

type Account struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TutorProfile struct {
	AccountID       string
	Subjects        string
	Qualification   string
	ExperienceYears int
	Bio             string
	IsVerified      bool
}

type StudentProfile struct {
	AccountID     string
	Class         string
	School        string
	ContactNumber string
	Board         string
}

type SessionRequest struct {
	ID          string
	TutorID     string
	StudentID   string
	Subject     string
	ScheduledAt time.Time
	Status      SessionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type RefreshSession struct {
	ID        string
	AccountID string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

type RoleCounts struct {
	Tutors   int64
	Students int64
	Admins   int64
}
