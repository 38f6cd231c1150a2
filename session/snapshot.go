package session

import (
	"errors"
	"fmt"
	"time"
)

// Snapshot is the cached projection of a user record. Timestamps survive a
// round trip at nanosecond precision, the zero time included, and come back
// in UTC.
type Snapshot struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Avatar       string
	Role         uint8
	Confirmed    bool
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role bounds of a decodable snapshot; they match photoauth.Role.
const (
	minRole uint8 = 1
	maxRole uint8 = 3
)

func (s *Snapshot) validate() error {
	if s.Email == "" {
		return errors.New("missing email")
	}
	if s.Role < minRole || s.Role > maxRole {
		return fmt.Errorf("role %d out of range", s.Role)
	}
	return nil
}
