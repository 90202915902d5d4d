package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by backend-issued access tokens.
type Claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the user id, falling back to a numeric subject.
func (c *Claims) Identity() (int64, bool) {
	if c.UserID > 0 {
		return c.UserID, true
	}
	if id, err := strconv.ParseInt(c.Subject, 10, 64); err == nil && id > 0 {
		return id, true
	}
	return 0, false
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoIdentity   = errors.New("token has no user id")
)

// TokenConfig holds JWT verification configuration.
type TokenConfig struct {
	Secret []byte
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Leeway tolerates clock skew between the backend and this service.
	Leeway time.Duration
	// TTL is the lifetime of tokens minted by Issue. Default: 1 hour.
	TTL time.Duration
}

// Manager validates access tokens signed with the shared backend secret.
type Manager struct {
	secret []byte
	issuer string
	leeway time.Duration
	ttl    time.Duration
}

// NewManager creates a token manager.
func NewManager(cfg TokenConfig) *Manager {
	if cfg.TTL == 0 {
		cfg.TTL = 1 * time.Hour
	}
	return &Manager{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		ttl:    cfg.TTL,
	}
}

// Issue mints an access token for userID. The backend is the usual issuer;
// this exists for local runs and tests.
func (m *Manager) Issue(userID int64, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates an access token.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithLeeway(m.leeway)}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, ok := claims.Identity(); !ok {
		return nil, ErrNoIdentity
	}
	return claims, nil
}
