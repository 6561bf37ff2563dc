package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testConfig() JWTConfig {
	return JWTConfig{
		SecretKey:     "test-secret-key",
		TokenDuration: 15 * time.Minute,
		Issuer:        "test-issuer",
	}
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := NewJWTManager(testConfig())

	token, err := manager.Generate("user-123", RoleAdmin, 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, "user-123")
	}
	if !claims.IsAdmin() {
		t.Errorf("claims.Role = %v, want %v", claims.Role, RoleAdmin)
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("claims.Issuer = %v, want %v", claims.Issuer, "test-issuer")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 15*time.Minute {
		t.Errorf("token lifetime = %v, want %v", got, 15*time.Minute)
	}
}

func TestJWTManager_GenerateRejectsBadInput(t *testing.T) {
	manager := NewJWTManager(testConfig())

	if _, err := manager.Generate("", RoleUser, 0); err == nil {
		t.Error("Generate() with empty user id should fail")
	}
	if _, err := manager.Generate("user-1", Role("root"), 0); err == nil {
		t.Error("Generate() with unknown role should fail")
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := NewJWTManager(testConfig())
	issued := time.Now().Add(-time.Hour)
	manager.now = func() time.Time { return issued }

	token, err := manager.Generate("user-1", RoleUser, time.Minute)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	manager.now = time.Now
	if _, err := manager.Validate(token); err != ErrExpiredToken {
		t.Errorf("Validate() error = %v, want %v", err, ErrExpiredToken)
	}
}

func TestJWTManager_InvalidTokens(t *testing.T) {
	manager := NewJWTManager(testConfig())

	other := testConfig()
	other.SecretKey = "another-secret"
	foreign, _ := NewJWTManager(other).Generate("user-1", RoleUser, 0)

	otherIssuer := testConfig()
	otherIssuer.Issuer = "someone-else"
	wrongIssuer, _ := NewJWTManager(otherIssuer).Generate("user-1", RoleUser, 0)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1", Role: RoleAdmin})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"wrong issuer", wrongIssuer},
		{"unsigned", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.Validate(tt.token); err != ErrInvalidToken {
				t.Errorf("Validate() error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}
