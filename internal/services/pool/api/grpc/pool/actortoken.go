package pool

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthorizationHeader carries a signed actor token as "Bearer <token>".
const AuthorizationHeader = "authorization"

const (
	actorTokenIssuer = "cellarpool"
	defaultTokenTTL  = 5 * time.Minute
	minTokenSecret   = 32
)

var (
	// ErrActorTokenInvalid reports a token that failed signature or claims
	// checks.
	ErrActorTokenInvalid = errors.New("actor token is invalid")
	// ErrActorTokenExpired reports a token past its exp claim.
	ErrActorTokenExpired = errors.New("actor token is expired")
)

// ActorTokens signs and verifies HS256 tokens whose subject is the acting
// ledger address. Both ends share the secret.
type ActorTokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewActorTokens builds a signer/verifier from secret. ttl <= 0 uses five
// minutes; now defaults to time.Now.
func NewActorTokens(secret string, ttl time.Duration, now func() time.Time) (*ActorTokens, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minTokenSecret {
		return nil, fmt.Errorf("actor token secret must be at least %d bytes", minTokenSecret)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ActorTokens{key: []byte(secret), ttl: ttl, now: now}, nil
}

// Sign issues a token naming actor.
func (a *ActorTokens) Sign(actor string) (string, error) {
	actor = strings.ToLower(strings.TrimSpace(actor))
	if actor == "" {
		return "", errors.New("actor is required")
	}
	issued := a.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    actorTokenIssuer,
		Subject:   actor,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

// Verify returns the actor named by token.
func (a *ActorTokens) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrActorTokenInvalid
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(actorTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrActorTokenExpired
		}
		return "", ErrActorTokenInvalid
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrActorTokenInvalid
	}
	return subject, nil
}

// bearerToken extracts the token from an authorization value.
func bearerToken(value string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
