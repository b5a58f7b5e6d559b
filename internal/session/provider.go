package session

import (
	"context"
	"fmt"
)

// Auth is the result of a successful provider round trip.
type Auth struct {
	Token string `json:"token"`
	// RefreshToken is set by providers that refresh with a separate
	// credential. Others refresh with Token itself.
	RefreshToken string    `json:"refreshToken,omitempty"`
	Principal    Principal `json:"principal"`
}

// Provider is the external identity service. Implementations report every
// failure as *AuthError.
type Provider interface {
	AuthWithPassword(ctx context.Context, email, password string) (Auth, error)
	// AuthWithOAuth2 runs the federated sign-in for the named provider,
	// including the redirect round trip.
	AuthWithOAuth2(ctx context.Context, provider string) (Auth, error)
	Refresh(ctx context.Context, token string) (Auth, error)
}

// AuthError is an identity-provider rejection or a network failure during
// sign-in. Message is passed through from the underlying failure.
type AuthError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("auth %s: %s", e.Op, msg)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err for op unless it already is an *AuthError.
func NewAuthError(op string, err error) error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*AuthError); ok {
		return ae
	}
	return &AuthError{Op: op, Message: err.Error(), Err: err}
}
