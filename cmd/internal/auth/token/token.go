package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"trackd/cmd/identity"
)

// ClassRefresh is the type-marker claim value carried by refresh tokens.
// Access tokens carry no marker; the marker check is mandatory on the refresh
// verification path and forbidden on the access path.
const ClassRefresh = "refresh"

// Claims is the claim set shared by both token classes.
//
// Access tokens embed {userId, email, deviceId}; refresh tokens embed
// {userId, deviceId, typ:"refresh"}. Both use the same encoding transport, which is
// exactly why the class marker is checked at every verification boundary.
type Claims struct {
	jwt.RegisteredClaims

	UserID   string `json:"userId"`
	Email    string `json:"email,omitempty"`
	DeviceID string `json:"deviceId"`
	Class    string `json:"typ,omitempty"`
}

// Service issues and verifies the two token classes.
// Issuance and verification are pure and fully parallelizable; the Service holds no
// mutable state.
type Service struct {
	cfg Config
}

// NewService constructs a Service after validating cfg.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// IssueAccess mints a signed access token for an identity. No side effects.
func (s *Service) IssueAccess(d identity.Device, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.cfg.AccessTTL)

	claims := Claims{
		RegisteredClaims: s.registered(now, exp),
		UserID:           d.ID,
		Email:            d.Email,
		DeviceID:         d.DeviceID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRefresh mints a signed refresh token for an identity, marked with the refresh
// class and signed with the refresh-specific secret.
func (s *Service) IssueRefresh(d identity.Device, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.cfg.RefreshTTL)

	claims := Claims{
		RegisteredClaims: s.registered(now, exp),
		UserID:           d.ID,
		DeviceID:         d.DeviceID,
		Class:            ClassRefresh,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess checks signature and expiry against the access secret and rejects
// refresh-class claims.
func (s *Service) VerifyAccess(raw string, now time.Time) (Claims, error) {
	claims, err := s.verify(raw, s.cfg.AccessSecret, now)
	if err != nil {
		return Claims{}, err
	}
	if claims.Class == ClassRefresh {
		return Claims{}, ErrWrongTokenClass
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry against the refresh secret. The class
// marker must be present and equal to "refresh"; anything else means the claim set of
// another token shape is being replayed here.
func (s *Service) VerifyRefresh(raw string, now time.Time) (Claims, error) {
	claims, err := s.verify(raw, s.cfg.RefreshSecret, now)
	if err != nil {
		return Claims{}, err
	}
	if claims.Class != ClassRefresh {
		return Claims{}, ErrWrongTokenClass
	}
	return claims, nil
}

func (s *Service) registered(now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

func (s *Service) verify(raw string, secret []byte, now time.Time) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims,
		func(_ *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.UserID == "" || claims.DeviceID == "" {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
