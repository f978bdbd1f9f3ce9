package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aulaworks/aula-go-api/internal/middleware"
	"github.com/aulaworks/aula-go-api/internal/service"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func protectedApp() (*fiber.App, *service.Caller) {
	app := fiber.New()
	var captured service.Caller
	app.Get("/protected", middleware.JWTProtected(testSecret), func(c *fiber.Ctx) error {
		caller, ok := middleware.CallerFromCtx(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		captured = caller
		return c.SendStatus(fiber.StatusOK)
	})
	return app, &captured
}

func TestJWTProtectedValidToken(t *testing.T) {
	app, caller := protectedApp()

	token := signedToken(t, jwt.MapClaims{
		"sub":  float64(42),
		"role": "Student",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(42), caller.ID)
	require.Equal(t, "student", caller.Role)
}

func TestJWTProtectedStringSubject(t *testing.T) {
	app, caller := protectedApp()

	token := signedToken(t, jwt.MapClaims{"sub": "17", "role": "teacher"})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(17), caller.ID)
}

func TestJWTProtectedRejections(t *testing.T) {
	app, _ := protectedApp()

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "empty token", header: "Bearer "},
		{name: "garbage token", header: "Bearer not.a.token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestJWTProtectedWrongSecret(t *testing.T) {
	app, _ := protectedApp()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": float64(1)})
	signed, err := token.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedMissingSubject(t *testing.T) {
	app, _ := protectedApp()

	token := signedToken(t, jwt.MapClaims{"role": "student"})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	app := fiber.New()
	app.Get("/teachers-only",
		func(c *fiber.Ctx) error {
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", role)
			}
			return c.Next()
		},
		middleware.RequireRole("teacher"),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) },
	)

	cases := []struct {
		role string
		want int
	}{
		{role: "teacher", want: fiber.StatusOK},
		{role: "Teacher", want: fiber.StatusOK},
		{role: "student", want: fiber.StatusForbidden},
		{role: "", want: fiber.StatusForbidden},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/teachers-only", nil)
		if tc.role != "" {
			req.Header.Set("X-Test-Role", tc.role)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, tc.want, resp.StatusCode, "role %q", tc.role)
	}
}
