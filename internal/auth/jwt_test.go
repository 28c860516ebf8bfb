package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/knjiznica/internal/model"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"

	token, err := GenerateToken(secret, 1, "desk", model.RoleLibrarian)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.PatronID != 1 {
		t.Errorf("expected patron_id 1, got %d", claims.PatronID)
	}
	if claims.Username != "desk" {
		t.Errorf("expected username 'desk', got %q", claims.Username)
	}
	if claims.Role != model.RoleLibrarian {
		t.Errorf("expected role librarian, got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Error("expected a JTI")
	}

	actor := claims.Actor()
	if actor.ID != 1 || actor.Role != model.RoleLibrarian {
		t.Errorf("unexpected actor %+v", actor)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret1", 1, "admin", model.RoleAdmin)

	if _, err := ValidateToken("secret2", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	if _, err := ValidateToken("secret", "not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestValidateTokenUnknownRole(t *testing.T) {
	token, _ := GenerateToken("secret", 1, "x", model.Role("janitor"))

	if _, err := ValidateToken("secret", token); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	claims := Claims{
		PatronID: 1,
		Role:     model.RoleMember,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ValidateToken("secret", token); err == nil {
		t.Error("expected error for foreign issuer")
	}
}

func TestTokenExpiry(t *testing.T) {
	secret := "test"
	token, _ := GenerateToken(secret, 1, "test", model.RoleMember)
	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatal(err)
	}

	diff := time.Now().Add(TokenExpiry).Sub(claims.ExpiresAt.Time)
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}
