package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Principal is the authenticated caller extracted from a verified token.
type Principal struct {
	Subject string
	Roles   []string
}

// Verifier checks HS256 bearer tokens issued by the identity service.
type Verifier struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// Config describes how admin tokens are verified.
type Config struct {
	Secret       string
	Issuer       string
	Audience     string
	ClockSkew    time.Duration
	RequiredRole string
}

// NewVerifier constructs a Verifier. The secret is required.
func NewVerifier(cfg Config) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		validator: TokenValidator{
			Issuer:       cfg.Issuer,
			Audience:     cfg.Audience,
			ClockSkew:    cfg.ClockSkew,
			Algorithm:    jwa.HS256,
			RequiredRole: cfg.RequiredRole,
		},
		now: time.Now,
	}, nil
}

// WithClock overrides the verifier clock.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify parses and validates a compact JWS token.
func (v *Verifier) Verify(token string) (Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Principal{}, errNoToken
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Principal{}, err
	}
	if algorithm != v.validator.Algorithm {
		return Principal{}, fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return Principal{}, fmt.Errorf("auth: parse token: %w", err)
	}
	if err := v.validator.Validate(parsed, algorithm, v.now()); err != nil {
		return Principal{}, err
	}
	return Principal{Subject: parsed.Subject(), Roles: Roles(parsed)}, nil
}

// Sign issues a token for subject carrying roles. Used by local tooling and
// tests; production tokens come from the identity service.
func (v *Verifier) Sign(subject string, roles []string, ttl time.Duration) (string, error) {
	now := v.now()
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl)).
		Claim(RolesClaim, roles)
	if v.validator.Issuer != "" {
		builder = builder.Issuer(v.validator.Issuer)
	}
	if v.validator.Audience != "" {
		builder = builder.Audience([]string{v.validator.Audience})
	}
	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("auth: build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, v.secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return string(signed), nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}
