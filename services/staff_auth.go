package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yeremiapane/table-orders/models"
	"github.com/yeremiapane/table-orders/utils"
)

const DefaultTokenTTL = 12 * time.Hour

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type RegisterStaffInput struct {
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
}

type LoginResult struct {
	Token    string       `json:"token"`
	UserRole string       `json:"user_role"`
	User     *models.User `json:"user"`
}

// StaffAuth issues the bearer tokens the admin, chef and KDS routes require.
type StaffAuth struct {
	users    UserStore
	tokenTTL time.Duration
}

func NewStaffAuth(users UserStore, tokenTTL time.Duration) *StaffAuth {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &StaffAuth{users: users, tokenTTL: tokenTTL}
}

func (a *StaffAuth) Register(ctx context.Context, in RegisterStaffInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	switch {
	case strings.TrimSpace(in.Name) == "":
		return nil, validationErr("name is required")
	case in.Email == "":
		return nil, validationErr("email is required")
	case len(in.Password) < 8:
		return nil, validationErr("password must be at least 8 characters")
	case !models.ValidRole(in.Role):
		return nil, validationErr("unknown role %q", in.Role)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, validationErr("invalid email %q", in.Email)
	}

	if _, err := a.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, conflictErr("email %s is already registered", in.Email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		RestaurantID: strings.TrimSpace(in.RestaurantID),
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		Password:     string(hashed),
		Role:         in.Role,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}
	utils.InfoLogger.WithField("role", user.Role).Infof("staff account %d created", user.ID)
	return user, nil
}

func (a *StaffAuth) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := a.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(user.ID, user.Role, a.tokenTTL)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithField("role", user.Role).Infof("login successful for user %d", user.ID)
	return &LoginResult{Token: token, UserRole: user.Role, User: user}, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email exists.
func (a *StaffAuth) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := a.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err = a.Register(ctx, RegisterStaffInput{Name: "Administrator", Email: email, Password: password, Role: models.RoleAdmin})
	return err
}
