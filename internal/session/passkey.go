package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"portalctl/internal/model"
	"portalctl/internal/notify"
)

// Passkey login is a single sequential task: fetch the start options, run
// the credential ceremony against an authenticator, verify the result.
// Each step maps to exactly one error variant.

var (
	ErrPasskeyStart    = errors.New("passkey start options fetch failed")
	ErrPasskeyCeremony = errors.New("passkey credential ceremony failed")
	ErrPasskeyFinish   = errors.New("passkey verification failed")
)

// Authenticator performs the credential ceremony: it receives the
// backend's assertion options and returns the signed assertion.
type Authenticator interface {
	SignAssertion(ctx context.Context, options json.RawMessage) (json.RawMessage, error)
}

// PasskeyLogin authenticates with a passkey and returns the user id.
func (s *Store) PasskeyLogin(ctx context.Context, authn Authenticator) (string, error) {
	var options json.RawMessage
	if err := s.client.Post(ctx, "/auth/webauthn/login/start", nil, &options); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPasskeyStart, err)
	}

	assertion, err := authn.SignAssertion(ctx, options)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPasskeyCeremony, err)
	}

	var user model.User
	if err := s.client.Post(ctx, "/auth/webauthn/login/finish", assertion, &user); err != nil {
		s.setUser(nil)
		return "", fmt.Errorf("%w: %v", ErrPasskeyFinish, err)
	}

	s.ResetReturnURL()
	s.setUser(&model.Session{
		UserIdentifier: user.Identifier,
		Firstname:      user.Firstname,
		Lastname:       user.Lastname,
		Email:          user.Email,
		IsAdmin:        user.IsAdmin,
	})
	s.notes.Notify(notify.New("Logged in", "Passkey authentication succeeded!", notify.TypeSuccess))
	return user.Identifier, nil
}
