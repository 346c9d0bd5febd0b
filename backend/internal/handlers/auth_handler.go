package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/auth"
	"github.com/user/papercex/backend/internal/config"
	"github.com/user/papercex/backend/internal/database"
	"github.com/user/papercex/backend/internal/middleware"
	"github.com/user/papercex/backend/internal/models"
	"github.com/user/papercex/backend/internal/wallet"
)

// SignupRequest defines the expected JSON body for signup
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest defines the expected JSON body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse defines the JSON response for successful auth
type AuthResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	IsAdmin  bool         `json:"is_admin"`
	IssuedAt time.Time    `json:"issued_at"`
}

// Signup handles user registration. New users start with the seeded wallet.
func (h *Handler) Signup(c *fiber.Ctx) error {
	req := new(SignupRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" || req.Password == "" {
		return badRequest(c, "Email, username and password are required")
	}
	if !strings.Contains(email, "@") {
		return badRequest(c, "Invalid email address")
	}
	if h.auth.IsAdmin(email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This email address is reserved"})
	}

	existing, err := h.store.GetUserByEmail(c.Context(), email)
	if err != nil {
		return h.fail(c, err)
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already registered"})
	}
	existing, err = h.store.GetUserByUsername(c.Context(), username)
	if err != nil {
		return h.fail(c, err)
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already taken"})
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return h.fail(c, err)
	}

	user := &models.User{Email: email, Username: username, Password: hashedPassword}
	if err := h.store.CreateUser(c.Context(), user, wallet.New(h.seed).ToMap()); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email or username already taken"})
		}
		return h.fail(c, err)
	}
	h.logger.Info("user signed up", zap.Stringer("user_id", user.ID), zap.String("username", user.Username))

	return h.issue(c, fiber.StatusCreated, user)
}

// SeedAdmin creates the administrator account from cfg unless its email is
// already registered or no admin password is configured. It reports whether
// an account was created.
func (h *Handler) SeedAdmin(ctx context.Context, cfg config.Auth) (bool, error) {
	if cfg.AdminPassword == "" {
		return false, nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	existing, err := h.store.GetUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("look up admin: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return false, fmt.Errorf("admin password: %w", err)
	}
	user := &models.User{Email: email, Username: strings.TrimSpace(cfg.AdminUsername), Password: hashedPassword}
	if err := h.store.CreateUser(ctx, user, wallet.New(h.seed).ToMap()); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	h.logger.Info("admin account created", zap.Stringer("user_id", user.ID), zap.String("username", user.Username))
	return true, nil
}

// Login handles user authentication.
func (h *Handler) Login(c *fiber.Ctx) error {
	req := new(LoginRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	user, err := h.store.GetUserByEmail(c.Context(), email)
	if err != nil {
		return h.fail(c, err)
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}
	return h.issue(c, fiber.StatusOK, user)
}

func (h *Handler) issue(c *fiber.Ctx, status int, user *models.User) error {
	token, err := h.auth.Generate(user.ID, user.Email, user.Username)
	if err != nil {
		return h.fail(c, err)
	}
	user.Password = ""
	return c.Status(status).JSON(AuthResponse{
		Token:    token,
		User:     user,
		IsAdmin:  h.auth.IsAdmin(user.Email),
		IssuedAt: time.Now(),
	})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	user, err := h.store.GetUserByID(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	user.Password = ""
	return c.JSON(fiber.Map{
		"user":     user,
		"is_admin": h.auth.IsAdmin(user.Email),
	})
}
