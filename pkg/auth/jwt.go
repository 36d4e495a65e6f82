package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// DefaultTTL is how long issued tokens stay valid.
const DefaultTTL = 24 * time.Hour

// JWT issues and verifies signed bearer tokens whose subject is the user id.
type JWT struct {
	keys   KeyProvider
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a JWT.
type Option func(*JWT)

// WithIssuer sets the iss claim issued and required.
func WithIssuer(issuer string) Option {
	return func(j *JWT) { j.issuer = issuer }
}

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(j *JWT) { j.ttl = ttl }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(j *JWT) { j.now = now }
}

// NewJWT creates a JWT authenticator over a key provider.
func NewJWT(keys KeyProvider, opts ...Option) *JWT {
	j := &JWT{
		keys: keys,
		ttl:  DefaultTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Issue signs a token for a user id with the active key.
func (j *JWT) Issue(userID int64) (string, error) {
	key, err := j.keys.SigningKey()
	if err != nil {
		return "", fmt.Errorf("failed to get signing key: %w", err)
	}
	method, err := key.method()
	if err != nil {
		return "", err
	}

	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    j.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = key.ID

	signed, err := token.SignedString(key.Sign)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies an Authorization header value. An empty header is
// ErrMissing; anything unverifiable is ErrMalformed; a verified but stale
// token is ErrExpired.
func (j *JWT) Authenticate(header string) (Principal, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Guest(), ErrMissing
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return Guest(), fmt.Errorf("%w: expected bearer token", ErrMalformed)
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

	var claims jwt.RegisteredClaims
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{HS256, RS256, EdDSA}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}

	_, err := jwt.ParseWithClaims(raw, &claims, j.keyFunc, parserOpts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Guest(), ErrExpired
	case err != nil:
		return Guest(), fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Guest(), fmt.Errorf("%w: subject %q is not a user id", ErrMalformed, claims.Subject)
	}
	return User(id), nil
}

func (j *JWT) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	key, err := j.keys.VerificationKey(kid)
	if err != nil {
		return nil, err
	}
	if t.Method.Alg() != key.Algorithm {
		return nil, fmt.Errorf("token algorithm %s does not match key %s", t.Method.Alg(), key.ID)
	}
	return key.Verify, nil
}
