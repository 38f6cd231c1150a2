package photoauth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role is the authorization tier of an account.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleModerator
	RoleUser
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleModerator:
		return "moderator"
	case RoleUser:
		return "user"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= RoleAdmin && r <= RoleUser
}

// ParseRole maps a wire name to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "moderator":
		return RoleModerator, nil
	case "user":
		return RoleUser, nil
	default:
		return 0, ErrRoleInvalid
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrRoleInvalid
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Identity is a user record as seen by the auth subsystem.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         Role      `json:"role"`
	Confirmed    bool      `json:"confirmed"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public returns a copy with credential material cleared.
func (i Identity) Public() Identity {
	i.PasswordHash = ""
	i.RefreshToken = ""
	return i
}

// TokenPair is the result of Login and Refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// SignupRequest carries the fields accepted by Signup. BaseURL is the public
// origin used to build the confirmation link in the verification mail.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	BaseURL  string `json:"-"`
}

// ConfirmationStatus reports the outcome of the email confirmation operations.
type ConfirmationStatus int

const (
	StatusConfirmed ConfirmationStatus = iota + 1
	StatusAlreadyConfirmed
	StatusVerificationSent
)

func (s ConfirmationStatus) String() string {
	switch s {
	case StatusConfirmed:
		return "Email confirmed"
	case StatusAlreadyConfirmed:
		return "Your email is already confirmed"
	case StatusVerificationSent:
		return "Check your email for confirmation."
	default:
		return "unknown"
	}
}

// UserStore is the durable record store. Implementations return
// ErrAccountNotFound for absent records and ErrAccountExists for a duplicate
// email on Create; any other error is treated as an I/O fault.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	// CreateAssigningRole inserts identity with role first when the store
	// holds no accounts and with identity.Role otherwise. The emptiness check
	// and the insert are atomic. identity.Role is set to the stored role.
	CreateAssigningRole(ctx context.Context, identity *Identity, first Role) error
	CountUsers(ctx context.Context) (int, error)
	List(ctx context.Context) ([]Identity, error)

	// UpdateRefreshToken overwrites the stored token; "" clears it.
	UpdateRefreshToken(ctx context.Context, id, token string) error
	// SwapRefreshToken replaces current with next only if the stored value
	// still equals current. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)

	// UpdateConfirmed sets the confirmed flag and reports whether it changed.
	UpdateConfirmed(ctx context.Context, email string) (bool, error)
	UpdateRole(ctx context.Context, id string, role Role) (*Identity, error)
	UpdateAvatar(ctx context.Context, email, avatar string) (*Identity, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// VerificationMail is the payload handed to a Mailer.
type VerificationMail struct {
	Email    string
	Username string
	BaseURL  string
	Token    string
}

// Mailer delivers verification mail. Delivery is fire-and-forget from the
// engine's point of view.
type Mailer interface {
	SendVerification(ctx context.Context, mail VerificationMail) error
}
