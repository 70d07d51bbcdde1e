package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nikolayk812/storefront/internal/domain"
)

const defaultTokenTTL = 24 * time.Hour

// Claims carries the caller identity: the user id and role.
type Claims struct {
	UserID string      `json:"id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens and turns them into actors.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes: %w", domain.ErrInvalidInput)
	}

	return &Verifier{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}, nil
}

func (v *Verifier) Verify(token string) (domain.Actor, error) {
	if token == "" {
		return domain.Actor{}, fmt.Errorf("token is empty: %w", domain.ErrUnauthenticated)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Actor{}, errors.Join(domain.ErrUnauthenticated, fmt.Errorf("jwt.ParseWithClaims: %w", err))
	}

	role := claims.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("role[%s] is unknown: %w", role, domain.ErrUnauthenticated)
	}

	actor := domain.Actor{UserID: claims.UserID, Role: role}
	if err := actor.Validate(); err != nil {
		return domain.Actor{}, err
	}

	return actor, nil
}

// Issue signs a token for the actor. Login lives outside this service, so it is used by tests and tooling.
func (v *Verifier) Issue(actor domain.Actor) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}

	now := v.now()
	claims := Claims{
		UserID: actor.UserID,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("token.SignedString: %w", err)
	}

	return signed, nil
}
