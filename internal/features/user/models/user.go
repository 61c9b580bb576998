package models

import "time"

// OnboardingState names the next input the bot expects from a user. It is
// always derived from the durable Email/Phone fields, never stored.
type OnboardingState string

const (
	StateNeedsEmail OnboardingState = "needs_email"
	StateNeedsPhone OnboardingState = "needs_phone"
	StateReady      OnboardingState = "ready"
)

// User is a customer identified by their Telegram id.
type User struct {
	ID           int64     `json:"id" redis:"id"`
	Username     string    `json:"username" redis:"username"`
	Email        string    `json:"email" redis:"email"`
	Phone        string    `json:"phone" redis:"phone"`
	RegisteredAt time.Time `json:"registered_at" redis:"registered_at"`
}

// OnboardingState derives the onboarding position from the durable fields:
// a user is ready iff both email and phone are captured.
func (u *User) OnboardingState() OnboardingState {
	switch {
	case u.Email == "":
		return StateNeedsEmail
	case u.Phone == "":
		return StateNeedsPhone
	default:
		return StateReady
	}
}

// MissingFields lists what onboarding still has to collect, in the order
// the flow asks for them.
func (u *User) MissingFields() []string {
	var missing []string
	if u.Email == "" {
		missing = append(missing, "email")
	}
	if u.Phone == "" {
		missing = append(missing, "phone")
	}
	return missing
}
