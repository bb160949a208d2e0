package auth

import (
	"testing"

	"github.com/nextmessage/backend/internal/models"
)

var testIdentity = models.Identity{
	UID:         "firebase-uid-1",
	Email:       "test@example.com",
	DisplayName: "Test User",
	PhotoURL:    "https://example.com/me.png",
}

func TestJWTService_GenerateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", "", 24)

	token, err := service.GenerateToken(testIdentity)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if token == "" {
		t.Fatal("Expected token to be generated")
	}
}

func TestJWTService_ValidateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", "nextmessage", 24)

	token, err := service.GenerateToken(testIdentity)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := claims.Identity(); got != testIdentity {
		t.Errorf("Expected identity %+v, got %+v", testIdentity, got)
	}
}

func TestJWTService_ValidateToken_Invalid(t *testing.T) {
	service := NewJWTService("test-secret-key", "", 24)

	_, err := service.ValidateToken("invalid.token.here")
	if err == nil {
		t.Fatal("Expected error for invalid token")
	}
}

func TestJWTService_ValidateToken_WrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", "", 24).GenerateToken(testIdentity)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := NewJWTService("secret-b", "", 24).ValidateToken(token); err == nil {
		t.Fatal("Expected error for token signed with another secret")
	}
}

func TestJWTService_ValidateToken_WrongIssuer(t *testing.T) {
	token, err := NewJWTService("test-secret-key", "someone-else", 24).GenerateToken(testIdentity)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := NewJWTService("test-secret-key", "nextmessage", 24).ValidateToken(token); err == nil {
		t.Fatal("Expected error for foreign issuer")
	}
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret-key", "", -1)

	token, err := service.GenerateToken(testIdentity)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := service.ValidateToken(token); err == nil {
		t.Fatal("Expected error for expired token")
	}
}

func TestJWTService_ValidateToken_MissingSubject(t *testing.T) {
	service := NewJWTService("test-secret-key", "", 24)

	token, err := service.GenerateToken(models.Identity{Email: "nobody@example.com"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := service.ValidateToken(token); err == nil {
		t.Fatal("Expected error for token without subject")
	}
}
