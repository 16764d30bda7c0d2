package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/table-orders/repository"
	"github.com/yeremiapane/table-orders/services"
	"github.com/yeremiapane/table-orders/utils"
)

func TestStaffRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	auth := services.NewStaffAuth(repository.NewUserRepository(db), time.Hour)
	ctx := context.Background()

	user, err := auth.Register(ctx, services.RegisterStaffInput{
		RestaurantID: "warung-1",
		Name:         "Budi",
		Email:        "Budi@Warung.id",
		Password:     "rahasia123",
		Role:         "Chef",
	})
	require.NoError(t, err)
	assert.Equal(t, "budi@warung.id", user.Email)
	assert.Equal(t, "chef", user.Role)
	assert.NotEqual(t, "rahasia123", user.Password)

	_, err = auth.Register(ctx, services.RegisterStaffInput{Name: "Budi", Email: "budi@warung.id", Password: "rahasia123", Role: "chef"})
	assert.ErrorIs(t, err, services.ErrConflict)

	res, err := auth.Login(ctx, "BUDI@warung.id", "rahasia123")
	require.NoError(t, err)
	claims, err := utils.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "chef", claims.Role)

	_, err = auth.Login(ctx, "budi@warung.id", "salah")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, err = auth.Login(ctx, "nobody@warung.id", "rahasia123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestStaffRegisterValidation(t *testing.T) {
	auth := services.NewStaffAuth(repository.NewUserRepository(setupTestDB(t)), 0)
	cases := map[string]services.RegisterStaffInput{
		"missing name":   {Email: "a@b.id", Password: "12345678", Role: "staff"},
		"bad email":      {Name: "A", Email: "not-an-email", Password: "12345678", Role: "staff"},
		"short password": {Name: "A", Email: "a@b.id", Password: "123", Role: "staff"},
		"unknown role":   {Name: "A", Email: "a@b.id", Password: "12345678", Role: "cashier"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Register(context.Background(), in)
			assert.ErrorIs(t, err, services.ErrValidation)
		})
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	auth := services.NewStaffAuth(repository.NewUserRepository(setupTestDB(t)), 0)
	ctx := context.Background()
	require.NoError(t, auth.EnsureAdmin(ctx, "admin@warung.id", "admin-pass"))
	require.NoError(t, auth.EnsureAdmin(ctx, "admin@warung.id", "other-pass"))

	res, err := auth.Login(ctx, "admin@warung.id", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, "admin", res.UserRole)
}
