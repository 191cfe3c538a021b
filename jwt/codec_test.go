package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func testConfig(clock *fakeClock) Config {
	cfg := Config{
		AccessSecret:    []byte("access-secret-0123456789"),
		SpecialSecret:   []byte("special-secret-0123456789"),
		AccessTTL:       time.Hour,
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        24 * time.Hour,
	}
	if clock != nil {
		cfg.Now = clock.Now
	}
	return cfg
}

func subject(id string) gjwt.RegisteredClaims {
	return gjwt.RegisteredClaims{Subject: id}
}

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := NewCodec(testConfig(clock))
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	return codec, clock
}

func TestAccessRoundTrip(t *testing.T) {
	codec, clock := newTestCodec(t)

	token, minted, err := codec.EncodeAccess(AccessClaims{
		Email:            "alice@example.com",
		Active:           true,
		Verified:         true,
		Superuser:        false,
		RegisteredClaims: subject("user-1"),
	})
	if err != nil {
		t.Fatalf("EncodeAccess error: %v", err)
	}

	got, err := codec.DecodeAccess(token)
	if err != nil {
		t.Fatalf("DecodeAccess error: %v", err)
	}

	if got.Subject != minted.Subject || got.Email != minted.Email || got.ID != minted.ID {
		t.Fatalf("identity mismatch: got %+v want %+v", got, minted)
	}
	if got.Active != minted.Active || got.Verified != minted.Verified || got.Superuser != minted.Superuser {
		t.Fatalf("flag snapshot mismatch: got %+v want %+v", got, minted)
	}
	if got.Purpose != PurposeAccess {
		t.Fatalf("expected access purpose, got %q", got.Purpose)
	}
	if !got.ExpiresAt.Time.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", got.ExpiresAt.Time)
	}
}

func TestSpecialRoundTripAndPurposeMismatch(t *testing.T) {
	codec, clock := newTestCodec(t)

	for _, purpose := range []Purpose{PurposeVerification, PurposeReset} {
		token, err := codec.EncodeSpecial("user-7", purpose)
		if err != nil {
			t.Fatalf("EncodeSpecial(%s) error: %v", purpose, err)
		}

		claims, err := codec.DecodeSpecial(token, purpose)
		if err != nil {
			t.Fatalf("DecodeSpecial(%s) error: %v", purpose, err)
		}
		if claims.Subject != "user-7" || claims.Purpose != purpose {
			t.Fatalf("unexpected claims: %+v", claims)
		}
		if !claims.ExpiresAt.Time.Equal(clock.now.Add(24 * time.Hour)) {
			t.Fatalf("unexpected expiry %v", claims.ExpiresAt.Time)
		}

		other := PurposeReset
		if purpose == PurposeReset {
			other = PurposeVerification
		}
		if _, err := codec.DecodeSpecial(token, other); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected purpose mismatch to fail, got %v", err)
		}
		if _, err := codec.DecodeSpecial(token, PurposeAccess); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected access purpose to be rejected for special decode, got %v", err)
		}
	}
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	codec, _ := newTestCodec(t)

	access, _, err := codec.EncodeAccess(AccessClaims{RegisteredClaims: subject("u")})
	if err != nil {
		t.Fatalf("EncodeAccess error: %v", err)
	}
	if _, err := codec.DecodeSpecial(access, PurposeReset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token to fail special decode, got %v", err)
	}

	reset, err := codec.EncodeSpecial("u", PurposeReset)
	if err != nil {
		t.Fatalf("EncodeSpecial error: %v", err)
	}
	if _, err := codec.DecodeAccess(reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected reset token to fail access decode, got %v", err)
	}
}

func TestDecodeFailsClosedOnExpiry(t *testing.T) {
	codec, clock := newTestCodec(t)

	token, _, err := codec.EncodeAccess(AccessClaims{RegisteredClaims: subject("u")})
	if err != nil {
		t.Fatalf("EncodeAccess error: %v", err)
	}

	clock.now = clock.now.Add(time.Hour + time.Second)
	if _, err := codec.DecodeAccess(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	codec, _ := newTestCodec(t)

	token, _, err := codec.EncodeAccess(AccessClaims{RegisteredClaims: subject("u")})
	if err != nil {
		t.Fatalf("EncodeAccess error: %v", err)
	}

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := codec.DecodeAccess(tampered); err != ErrInvalidToken {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}
}

func TestDecodeRejectsWrongAlgorithm(t *testing.T) {
	codec, clock := newTestCodec(t)

	claims := AccessClaims{
		Purpose: PurposeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS384, claims).SignedString([]byte("access-secret-0123456789"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := codec.DecodeAccess(token); err != ErrInvalidToken {
		t.Fatalf("expected HS384 token to be rejected, got %v", err)
	}
}

func TestNewCodecValidation(t *testing.T) {
	cfg := testConfig(nil)
	cfg.SpecialSecret = cfg.AccessSecret
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected identical secrets to be rejected")
	}

	cfg = testConfig(nil)
	cfg.AccessSecret = []byte("short")
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected short secret to be rejected")
	}

	cfg = testConfig(nil)
	cfg.ResetTTL = 0
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
}
