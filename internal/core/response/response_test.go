package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"commerce-backend/internal/core/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(err error) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "test-ray-id")
		return c.Next()
	})
	app.Get("/", func(c *fiber.Ctx) error {
		return Error(c, err)
	})
	return app
}

func decode(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestError_KnownKind(t *testing.T) {
	app := setupApp(fmt.Errorf("%w: cannot cancel this order", apperr.ErrInvalidState))

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "invalid state: cannot cancel this order", body.Message)
	assert.Equal(t, "invalid_state", body.Kind)
	assert.Equal(t, "test-ray-id", body.RayID)
	assert.Empty(t, body.Detail)
}

func TestError_InternalWithDiagnostics(t *testing.T) {
	EnableDiagnostics(true)
	defer EnableDiagnostics(false)

	app := setupApp(errors.New("connection refused"))

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "Internal Server Error", body.Message)
	assert.Equal(t, "connection refused", body.Detail)
}

func TestError_InternalWithoutDiagnostics(t *testing.T) {
	EnableDiagnostics(false)
	app := setupApp(errors.New("connection refused"))

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Empty(t, body.Detail)
}

func TestError_FiberError(t *testing.T) {
	app := setupApp(fiber.ErrMethodNotAllowed)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
