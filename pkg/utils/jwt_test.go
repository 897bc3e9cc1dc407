package utils

import (
	"testing"

	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testUser() *models.User {
	return &models.User{
		Model:    gorm.Model{ID: 42},
		Email:    "guest@example.com",
		UserType: string(models.UserTypeGuest),
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRY", "")

	token, err := GenerateToken(testUser())
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "guest@example.com", claims.Email)
	assert.Equal(t, models.UserTypeGuest, claims.UserType)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRY", "-1h")

	token, err := GenerateToken(testUser())
	require.NoError(t, err)

	_, err = ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, err := GenerateToken(testUser())
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "other-secret")
	_, err = ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	_, err := ValidateToken("not-a-token")
	require.Error(t, err)
}
