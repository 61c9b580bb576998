package validation

import (
	"fmt"
	"strings"
)

const (
	MaxEmailLength = 254
	MaxPhoneLength = 20
)

// ValidateEmail checks the "local@domain.tld" shape: exactly one split on the
// first '@', a '.' somewhere after it, and no further '@' in either segment.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email cannot exceed %d characters", MaxEmailLength)
	}

	at := strings.Index(email, "@")
	if at <= 0 {
		return fmt.Errorf("email must contain a local part and '@'")
	}

	domain := email[at+1:]
	if strings.Contains(domain, "@") {
		return fmt.Errorf("email must contain exactly one '@'")
	}
	if domain == "" || !strings.Contains(domain, ".") {
		return fmt.Errorf("email domain must contain a '.'")
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("email domain cannot start or end with '.'")
	}

	return nil
}

// ValidatePhone checks the minimal shape of a phone number shared via a
// Telegram contact card. Telegram already normalizes these, so only length
// and an optional leading '+' are checked.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("phone cannot be empty")
	}
	if len(phone) > MaxPhoneLength {
		return fmt.Errorf("phone cannot exceed %d characters", MaxPhoneLength)
	}
	for i, r := range phone {
		if r == '+' && i == 0 {
			continue
		}
		if r < '0' || r > '9' {
			return fmt.Errorf("phone must contain only digits")
		}
	}
	return nil
}
