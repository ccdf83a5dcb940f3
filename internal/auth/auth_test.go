package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchart/internal/engine"
	"orgchart/internal/metadata"
)

const secret = "test-secret"

func TestGenerateAndParseAccessToken(t *testing.T) {
	token, err := GenerateAccessToken("u1", []string{"admin"}, secret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	_, err = ParseAccessToken(token, "other-secret")
	assert.Error(t, err)
}

func TestGenerateAccessToken_EmptySecret(t *testing.T) {
	_, err := GenerateAccessToken("u1", nil, "", 0)
	assert.Error(t, err)
}

func newApp(secret string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	app.Use(Middleware(secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return c.SendString("anonymous")
		}
		return c.SendString(user.ID)
	})
	return app
}

func TestMiddleware(t *testing.T) {
	valid, err := GenerateAccessToken("u7", nil, secret, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic abc", fiber.StatusUnauthorized},
		{"bad token", "Bearer nope", fiber.StatusUnauthorized},
		{"valid token", "Bearer " + valid, fiber.StatusOK},
	}

	app := newApp(secret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestMiddleware_DisabledWithoutSecret(t *testing.T) {
	resp, err := newApp("").Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	app.Get("/admin", Middleware(secret), RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	admin, err := GenerateAccessToken("root", []string{metadata.RoleAdmin}, secret, time.Minute)
	require.NoError(t, err)
	plain, err := GenerateAccessToken("u1", []string{"viewer"}, secret, time.Minute)
	require.NoError(t, err)

	for token, want := range map[string]int{admin: fiber.StatusOK, plain: fiber.StatusForbidden} {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode)
	}
}
