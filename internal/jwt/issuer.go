package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrInvalidIssuer = errors.New("invalid_issuer")
	ErrWeakSecret    = errors.New("jwt secret too short")
)

const (
	minSecretLen = 16
	// leeway para exp/nbf entre nodos con reloj corrido
	leeway = 30 * time.Second
)

type Issuer struct {
	Iss    string
	TTL    time.Duration
	secret []byte
	now    func() time.Time
}

func NewIssuer(iss string, secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{Iss: iss, TTL: ttl, secret: secret, now: time.Now}, nil
}

// IssueAccess firma un token para sub. role vacío equivale a user.
func (i *Issuer) IssueAccess(sub, email, role string) (string, time.Time, error) {
	if role == "" {
		role = repository.RoleUser
	}
	now := i.now()
	exp := now.Add(i.TTL)
	claims := AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			Subject:   sub,
			ID:        uuid.NewString(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	s, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// Parse valida firma, exp/nbf y, si el issuer tiene Iss, el claim iss.
func (i *Issuer) Parse(token string) (*AccessClaims, error) {
	var claims AccessClaims
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(leeway),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	}
	tok, err := jwtv5.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if i.Iss != "" && claims.Issuer != i.Iss {
		return nil, ErrInvalidIssuer
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
