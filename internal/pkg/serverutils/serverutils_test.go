package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"studymate-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("session must be a non-empty string"), 400},
		{fmt.Errorf("%w: .exe", apperr.ErrUnsupportedFormat), 415},
		{fmt.Errorf("%w: s1", apperr.ErrNotFound), 404},
		{apperr.Provider("embed", errors.New("timeout")), 502},
		{fmt.Errorf("%w: probe remote store: %w", apperr.ErrTierUnavailable, errors.New("dial tcp")), 503},
		{&ValidationError{Fields: map[string]string{"Query": "required"}}, 400},
		{fiber.NewError(fiber.StatusConflict, "busy"), 409},
		{errors.New("disk full"), 500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestValidateRequest(t *testing.T) {
	type req struct {
		Query string `validate:"required"`
	}
	assert.NoError(t, ValidateRequest(req{Query: "hi"}))

	err := ValidateRequest(req{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Fields["Query"])
}

func TestErrorHandlerEnvelope(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return fmt.Errorf("%w: session s1 has no embeddings", apperr.ErrNotFound)
	})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("secret detail") })
	app.Get("/remote", func(c *fiber.Ctx) error {
		return fmt.Errorf("%w: probe remote store: %w", apperr.ErrTierUnavailable, errors.New("dial tcp db.internal:5432"))
	})

	res, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, res.StatusCode)
	var body BaseResponse[any]
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Message, "no embeddings")

	res, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, res.StatusCode)
	raw, _ := io.ReadAll(res.Body)
	assert.NotContains(t, string(raw), "secret detail")

	res, err = app.Test(httptest.NewRequest("GET", "/remote", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, res.StatusCode)
	raw, _ = io.ReadAll(res.Body)
	assert.NotContains(t, string(raw), "db.internal")
}

func TestJwtMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	app := fiber.New()
	app.Get("/me", JwtMiddleware, func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-42"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	raw, _ := io.ReadAll(res.Body)
	assert.Equal(t, "u-42", string(raw))

	res, err = app.Test(httptest.NewRequest("GET", "/me?token="+signed, nil))
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)

	res, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-42"}).SignedString([]byte("other"))
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)
}
