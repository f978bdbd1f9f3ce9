package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/aulaworks/aula-go-api/internal/utils"
)

func perform(t *testing.T, handler fiber.Handler) (*http.Response, utils.APIResponse) {
	t.Helper()

	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	var envelope utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func TestSendSuccess(t *testing.T) {
	resp, envelope := perform(t, func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "stored", fiber.Map{"id": 1})
	})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
	require.Equal(t, "stored", envelope.Message)
	require.NotNil(t, envelope.Data)
}

func TestSendSuccessWithStatusDefaults(t *testing.T) {
	resp, envelope := perform(t, func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, 0, "", nil)
	})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
	require.Equal(t, "success", envelope.Message)
	require.Nil(t, envelope.Data)
}

func TestSendError(t *testing.T) {
	resp, envelope := perform(t, func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	})

	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.False(t, envelope.Success)
	require.Equal(t, "submission not found", envelope.Message)
	require.Nil(t, envelope.Data)
}
