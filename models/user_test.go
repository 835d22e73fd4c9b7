package models_test

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/models"
	"bitbucket.org/mmdatafocus/bookkeeping_backend/utils"
)

func TestRegisterUser_DefaultsToBookkeeper(t *testing.T) {
	setupTestDB(t)

	user, err := models.RegisterUser(context.Background(), &models.NewUser{
		Name:     "  Anna Andersson ",
		Email:    "Anna@Example.SE",
		Password: "hemligt123",
		Role:     utils.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Role != utils.RoleBookkeeper {
		t.Fatalf("anonymous registration must not choose its role, got %s", user.Role)
	}
	if user.Email != "anna@example.se" || user.Name != "Anna Andersson" {
		t.Fatalf("expected normalized name and email, got %q %q", user.Name, user.Email)
	}
	if user.Password == "hemligt123" {
		t.Fatalf("password must be hashed")
	}

	_, err = models.RegisterUser(context.Background(), &models.NewUser{Name: "Dup", Email: "anna@example.se", Password: "hemligt123"})
	if !errors.Is(err, models.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	manager, err := models.RegisterUser(adminCtx(), &models.NewUser{Name: "Chef", Email: "chef@example.se", Password: "hemligt123", Role: utils.RoleManager})
	if err != nil {
		t.Fatalf("RegisterUser by admin: %v", err)
	}
	if manager.Role != utils.RoleManager {
		t.Fatalf("admin may pick the role, got %s", manager.Role)
	}
}

func TestLogin_AndSessionRoundTrip(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	if _, err := models.CreateAdminUser(ctx, "Admin", "admin@example.se", "hemligt123"); err != nil {
		t.Fatalf("CreateAdminUser: %v", err)
	}

	if _, err := models.Login(ctx, "admin@example.se", "fel-lösenord"); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := models.Login(ctx, "nobody@example.se", "hemligt123"); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Fatalf("unknown email must look like a bad password, got %v", err)
	}

	info, err := models.Login(ctx, " ADMIN@example.se ", "hemligt123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if info.Token == "" || info.User == nil || info.ExpiresAt.IsZero() {
		t.Fatalf("incomplete login info %+v", info)
	}

	identity, err := models.ValidateSession(ctx, info.Token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if identity.UserId != info.User.UserId || identity.Role != utils.RoleAdmin || identity.SessionId == "" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if _, err := models.ValidateSession(ctx, "not-a-token"); !errors.Is(err, utils.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized, got %v", err)
	}

	sessionCtx := utils.SetIdentityInContext(ctx, identity)
	me, err := models.GetCurrentUser(sessionCtx)
	if err != nil || me.Email != "admin@example.se" {
		t.Fatalf("GetCurrentUser: %v", err)
	}
	refreshed, err := models.RefreshSession(sessionCtx)
	if err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}
	if refreshed.Token == info.Token {
		t.Fatalf("refresh must issue a new token")
	}
	if err := models.Logout(sessionCtx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := models.Logout(ctx); !errors.Is(err, utils.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized for anonymous logout, got %v", err)
	}
}
