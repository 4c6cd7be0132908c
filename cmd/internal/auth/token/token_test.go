package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trackd/cmd/identity"
)

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(DefaultConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func testDevice() identity.Device {
	return identity.Device{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Email: "a@b.com", DeviceID: "dev123"}
}

func TestIssueAndVerifyAccess(t *testing.T) {
	t.Parallel()

	svc := testService(t)
	dev := testDevice()
	now := time.Now().UTC()

	tok, exp, err := svc.IssueAccess(dev, now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if wantExp := now.Add(svc.AccessTTL()); !exp.Equal(wantExp) {
		t.Fatalf("exp=%v want=%v", exp, wantExp)
	}

	claims, err := svc.VerifyAccess(tok, now)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.UserID != dev.ID || claims.Email != dev.Email || claims.DeviceID != dev.DeviceID {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Class == ClassRefresh {
		t.Fatalf("access token must not carry the refresh marker")
	}
}

func TestIssueAndVerifyRefresh(t *testing.T) {
	t.Parallel()

	svc := testService(t)
	dev := testDevice()
	now := time.Now().UTC()

	tok, exp, err := svc.IssueRefresh(dev, now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if wantExp := now.Add(svc.RefreshTTL()); !exp.Equal(wantExp) {
		t.Fatalf("exp=%v want=%v", exp, wantExp)
	}

	claims, err := svc.VerifyRefresh(tok, now)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.UserID != dev.ID || claims.DeviceID != dev.DeviceID {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Class != ClassRefresh {
		t.Fatalf("refresh token missing class marker")
	}
}

func TestVerifyAccess_Expired(t *testing.T) {
	t.Parallel()

	svc := testService(t)
	now := time.Now().UTC()

	tok, _, err := svc.IssueAccess(testDevice(), now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	_, err = svc.VerifyAccess(tok, now.Add(svc.AccessTTL()+time.Second))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRefresh_Expired(t *testing.T) {
	t.Parallel()

	svc := testService(t)
	now := time.Now().UTC()

	tok, _, err := svc.IssueRefresh(testDevice(), now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	_, err = svc.VerifyRefresh(tok, now.Add(svc.RefreshTTL()+time.Second))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_CrossSecret(t *testing.T) {
	t.Parallel()

	svc := testService(t)
	now := time.Now().UTC()

	access, _, err := svc.IssueAccess(testDevice(), now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := svc.IssueRefresh(testDevice(), now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	// A token must never validate against the other class's secret.
	if _, err := svc.VerifyRefresh(access, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token on refresh path: want ErrInvalidToken, got %v", err)
	}
	if _, err := svc.VerifyAccess(refresh, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token on access path: want ErrInvalidToken, got %v", err)
	}
}

// forge signs an arbitrary claim set with the given secret, bypassing Service issuance.
func forge(t *testing.T, claims Claims, secret []byte) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("forge: %v", err)
	}
	return signed
}

func TestVerify_WrongTokenClass(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	now := time.Now().UTC()
	reg := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	// Refresh-marked claims signed with the access secret: decodes structurally on the
	// access path, so only the class marker stops it.
	marked := forge(t, Claims{RegisteredClaims: reg, UserID: "u1", DeviceID: "dev123", Class: ClassRefresh}, cfg.AccessSecret)
	if _, err := svc.VerifyAccess(marked, now); !errors.Is(err, ErrWrongTokenClass) {
		t.Fatalf("expected ErrWrongTokenClass, got %v", err)
	}

	// Unmarked claims signed with the refresh secret: the marker is mandatory there.
	unmarked := forge(t, Claims{RegisteredClaims: reg, UserID: "u1", DeviceID: "dev123"}, cfg.RefreshSecret)
	if _, err := svc.VerifyRefresh(unmarked, now); !errors.Is(err, ErrWrongTokenClass) {
		t.Fatalf("expected ErrWrongTokenClass, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	svc := testService(t)
	now := time.Now().UTC()

	for _, raw := range []string{"", "   ", "not.a.jwt", "garbage"} {
		if _, err := svc.VerifyAccess(raw, now); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("VerifyAccess(%q): want ErrInvalidToken, got %v", raw, err)
		}
		if _, err := svc.VerifyRefresh(raw, now); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("VerifyRefresh(%q): want ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestVerify_MissingIdentityClaims(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	now := time.Now().UTC()
	reg := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	noUser := forge(t, Claims{RegisteredClaims: reg, DeviceID: "dev123"}, cfg.AccessSecret)
	if _, err := svc.VerifyAccess(noUser, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing userId, got %v", err)
	}

	noDevice := forge(t, Claims{RegisteredClaims: reg, UserID: "u1"}, cfg.AccessSecret)
	if _, err := svc.VerifyAccess(noDevice, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing deviceId, got %v", err)
	}
}
