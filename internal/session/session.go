package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"linguacode/internal/identity"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	// ErrExpired means the token was well-formed and correctly signed but
	// past its expiry instant. Clients should refresh (access) or
	// re-login (refresh).
	ErrExpired = errors.New("session: token expired")
	// ErrInvalid covers malformed tokens, wrong signatures and wrong token kinds.
	ErrInvalid = errors.New("session: invalid token")
	// ErrUnknownSubject means a valid refresh token names an identity that
	// no longer exists.
	ErrUnknownSubject = errors.New("session: unknown subject")
)

// SubjectStore is the slice of the identity service the manager needs:
// confirming that a refresh token's subject still exists.
type SubjectStore interface {
	Find(ctx context.Context, email string) (identity.User, error)
}

// Claims carried by both access and refresh tokens.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is one access token and one refresh token with their expiries.
type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Manager mints and verifies stateless HS256 session tokens. Validity is
// decided purely by signature and expiry; there is no revocation list, so
// any unexpired refresh token stays usable until its own expiry.
type Manager struct {
	secret     []byte
	issuer     string
	users      SubjectStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures Manager behavior.
type Option func(*Manager)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager constructs a Manager. The secret is required configuration;
// there is deliberately no fallback value.
func NewManager(secret, issuer string, users SubjectStore, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session: secret is required")
	}
	if users == nil {
		return nil, errors.New("session: subject store is required")
	}
	m := &Manager{
		secret:     []byte(secret),
		issuer:     issuer,
		users:      users,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue mints a fresh access+refresh pair for the given identity.
func (m *Manager) Issue(email string) (TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return TokenPair{}, errors.New("session: email is required")
	}
	now := m.now().UTC()

	access, accessExp, err := m.sign(email, tokenTypeAccess, now, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := m.sign(email, tokenTypeRefresh, now, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Validate verifies an access token and returns the subject email.
// Expiry is reported as ErrExpired, every other defect as ErrInvalid.
func (m *Manager) Validate(token string) (string, error) {
	claims, err := m.parse(token)
	if err != nil {
		return "", err
	}
	if claims.TokenType != tokenTypeAccess {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

// Refresh verifies a refresh token, confirms the encoded identity still
// exists, and mints a new pair. The old refresh token is not invalidated.
func (m *Manager) Refresh(ctx context.Context, token string) (TokenPair, error) {
	claims, err := m.parse(token)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return TokenPair{}, ErrInvalid
	}
	if _, err := m.users.Find(ctx, claims.Subject); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return TokenPair{}, ErrUnknownSubject
		}
		return TokenPair{}, err
	}
	return m.Issue(claims.Subject)
}

func (m *Manager) sign(email, kind string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalid
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalid
		}
		return m.secret, nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		// A bad signature must never surface as "expired": report expiry
		// only when the signature itself verified.
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalid
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, ErrInvalid
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, ErrInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
