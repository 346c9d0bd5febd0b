package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/user/papercex/backend/internal/auth"
	"github.com/user/papercex/backend/internal/config"
)

func newApp(m *auth.Manager) *fiber.App {
	app := fiber.New()
	app.Get("/me", Protected(m), func(c *fiber.Ctx) error {
		id, ok := UserID(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(id.String())
	})
	app.Get("/admin", Protected(m), AdminOnly(m), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestProtected(t *testing.T) {
	m := auth.NewManager(config.Auth{JWTSecret: "s", TokenTTL: time.Hour, AdminEmail: "admin@gmail.com"}, nil)
	app := newApp(m)
	id := uuid.New()
	token, err := m.Generate(id, "alice@example.com", "alice")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, fiber.StatusUnauthorized},
		{"bad token", "Bearer nope", fiber.StatusUnauthorized},
		{"ok", "Bearer " + token, fiber.StatusOK},
		{"lower case scheme", "bearer " + token, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAdminOnly(t *testing.T) {
	m := auth.NewManager(config.Auth{JWTSecret: "s", TokenTTL: time.Hour, AdminEmail: "admin@gmail.com"}, nil)
	app := newApp(m)

	for email, want := range map[string]int{
		"admin@gmail.com":   fiber.StatusNoContent,
		"alice@example.com": fiber.StatusForbidden,
	} {
		token, err := m.Generate(uuid.New(), email, "u")
		require.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, email)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	app := fiber.New()
	app.Use(RequestLogger(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request", entry.Message)
	assert.EqualValues(t, fiber.StatusNotFound, entry.ContextMap()["status"])
	assert.Equal(t, "/missing", entry.ContextMap()["path"])
}
