package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nextmessage/backend/internal/models"
)

// Claims is what the identity provider puts in its bearer tokens. The subject is the uid.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the identity every request runs as.
func (c *Claims) Identity() models.Identity {
	return models.Identity{
		UID:         c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
		PhotoURL:    c.Picture,
	}
}

type JWTService struct {
	secret      []byte
	issuer      string
	expiryHours int
}

func NewJWTService(secret, issuer string, expiryHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		issuer:      issuer,
		expiryHours: expiryHours,
	}
}

// GenerateToken issues a token for id signed with the shared secret.
func (s *JWTService) GenerateToken(id models.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:   id.Email,
		Name:    id.DisplayName,
		Picture: id.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expiryHours) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry and issuer and requires a subject.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("invalid token: missing subject")
	}
	return claims, nil
}
