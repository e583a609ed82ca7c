package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/identity"
	"github.com/ManuelReschke/Payline/internal/pkg/usercontext"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*identity.Principal, error) {
	switch token {
	case "good", "ghost", "broken":
		return &identity.Principal{PrincipalID: "user_" + token}, nil
	default:
		return nil, identity.ErrInvalidToken
	}
}

type stubUsers struct{}

func (stubUsers) EnsureFromPrincipal(_ context.Context, p *identity.Principal) (*models.User, error) {
	switch p.PrincipalID {
	case "user_good":
		return &models.User{ID: "u-1", ExternalID: p.PrincipalID}, nil
	case "user_ghost":
		return nil, identity.ErrUserNotFound
	default:
		return nil, errors.New("db down")
	}
}

func newApp(mw fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apierror.ErrorHandler(zap.NewNop())})
	app.Get("/", mw, func(c *fiber.Ctx) error {
		uc := usercontext.GetUserContext(c)
		return c.JSON(fiber.Map{
			"authenticated": uc.Principal != nil,
			"userId":        usercontext.GetUserID(c),
		})
	})
	return app
}

func do(t *testing.T, app *fiber.App, header, value string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	if value != "" {
		req.Header.Set(header, value)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestWithAuth(t *testing.T) {
	app := newApp(WithAuth(stubVerifier{}, stubUsers{}, zap.NewNop()))

	status, body := do(t, app, "Authorization", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apierror.CodeUnauthorized, errorCode(body))

	status, body = do(t, app, "Authorization", "Basic abc")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apierror.CodeUnauthorized, errorCode(body))

	status, body = do(t, app, "Authorization", "Bearer expired")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apierror.CodeInvalidToken, errorCode(body))

	status, body = do(t, app, "Authorization", "Bearer ghost")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "", body["userId"])

	status, body = do(t, app, "Authorization", "Bearer broken")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, apierror.CodeInternal, errorCode(body))

	status, body = do(t, app, "Authorization", "Bearer good")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "u-1", body["userId"])
}

func TestWithOptionalAuth(t *testing.T) {
	app := newApp(WithOptionalAuth(stubVerifier{}, stubUsers{}, zap.NewNop()))

	cases := []struct {
		header        string
		authenticated bool
		userID        string
	}{
		{"", false, ""},
		{"Bearer expired", false, ""},
		{"Bearer ghost", true, ""},
		{"Bearer broken", true, ""},
		{"Bearer good", true, "u-1"},
	}
	for _, tc := range cases {
		status, body := do(t, app, "Authorization", tc.header)
		assert.Equal(t, fiber.StatusOK, status, tc.header)
		assert.Equal(t, tc.authenticated, body["authenticated"], tc.header)
		assert.Equal(t, tc.userID, body["userId"], tc.header)
	}
}

func TestAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	app := newApp(AdminKey(string(hash)))

	status, body := do(t, app, HeaderAdminKey, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, apierror.CodeForbidden, errorCode(body))

	status, _ = do(t, app, HeaderAdminKey, "wrong")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, HeaderAdminKey, "s3cret")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestAdminKeyWithoutHashRejectsEverything(t *testing.T) {
	app := newApp(AdminKey(""))
	status, body := do(t, app, HeaderAdminKey, "anything")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, apierror.CodeForbidden, errorCode(body))
}

func TestRequestLoggerRendersErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: apierror.ErrorHandler(zap.NewNop())})
	app.Use(RequestLogger(zap.NewNop()))
	app.Get("/", func(c *fiber.Ctx) error { return apierror.NotFound("nope") })

	status, body := do(t, app, "", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apierror.CodeNotFound, errorCode(body))
}
