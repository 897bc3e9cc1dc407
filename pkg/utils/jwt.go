package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenLifetime = 7 * 24 * time.Hour

// AuthClaims is the token payload carried by every authenticated request:
// the guest or admin identity plus the standard expiry claims.
type AuthClaims struct {
	UserID   uint            `json:"id"`
	Email    string          `json:"email"`
	UserType models.UserType `json:"userType"`
	jwt.RegisteredClaims
}

func tokenLifetime() time.Duration {
	if raw := os.Getenv("JWT_EXPIRY"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return defaultTokenLifetime
}

func GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := AuthClaims{
		UserID:   user.ID,
		Email:    user.Email,
		UserType: models.UserType(user.UserType),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

// ValidateToken parses and verifies a token, returning its claims.
func ValidateToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
