package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager issues and validates the short-lived bearer tokens the facade
// accepts as an alternative to the raw API key.
type JWTManager struct {
	secretKey string
}

type Claims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a manager signing with the given secret. An empty
// secret disables token auth (the API key still works).
func NewJWTManager(secretKey string) *JWTManager {
	return &JWTManager{secretKey: secretKey}
}

// Enabled reports whether token issuing/validation is configured.
func (jm *JWTManager) Enabled() bool { return jm.secretKey != "" }

func (jm *JWTManager) GenerateToken(subject string, ttl time.Duration) (string, error) {
	if !jm.Enabled() {
		return "", fmt.Errorf("jwt secret not configured")
	}
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "fidelity-worker",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(jm.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return tokenString, nil
}

func (jm *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if !jm.Enabled() {
		return nil, fmt.Errorf("jwt secret not configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jm.secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %v", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
