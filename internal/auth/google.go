package auth

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier verifies a Google sign-in credential.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (GoogleIdentity, error)
}

// IDTokenVerifier validates Google ID tokens against Google's published keys.
type IDTokenVerifier struct {
	audience string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewIDTokenVerifier returns a verifier. An empty audience accepts any client id.
func NewIDTokenVerifier(audience string) *IDTokenVerifier {
	return &IDTokenVerifier{
		audience: audience,
		validate: idtoken.Validate,
	}
}

// Verify checks the credential signature, expiry and audience.
func (v *IDTokenVerifier) Verify(ctx context.Context, credential string) (GoogleIdentity, error) {
	if credential == "" {
		return GoogleIdentity{}, ErrUnauthenticated
	}
	payload, err := v.validate(ctx, credential, v.audience)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("%w: google token: %v", ErrUnauthenticated, err)
	}

	id := GoogleIdentity{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		id.Name = name
	}
	if id.Subject == "" || id.Email == "" {
		return GoogleIdentity{}, errors.Join(ErrUnauthenticated, errors.New("google token missing sub or email"))
	}
	return id, nil
}
