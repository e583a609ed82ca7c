package router

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Payline/app/controllers"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/archive"
	"github.com/ManuelReschke/Payline/internal/pkg/billing"
	"github.com/ManuelReschke/Payline/internal/pkg/config"
	"github.com/ManuelReschke/Payline/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/Payline/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/Payline/internal/pkg/identity"
	"github.com/ManuelReschke/Payline/internal/pkg/mail"
	"github.com/ManuelReschke/Payline/internal/pkg/ratelimit"
	"github.com/ManuelReschke/Payline/internal/pkg/webhooks"
)

const (
	testAdminKey     = "admin-secret"
	testStripeSecret = "whsec_stripe_router_test"
	testUserToken    = "token-ada"
	testExternalID   = "user_ada"
	testUserEmail    = "ada@example.com"
	// testPendingToken belongs to a principal without an email claim whose
	// user.created webhook has not arrived yet.
	testPendingToken = "token-pending"
)

var testIdentitySecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("router-test-identity-secret"))

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apierror.Body  `json:"error"`
}

// stubVerifier accepts a fixed set of bearer tokens.
type stubVerifier map[string]*identity.Principal

func (s stubVerifier) Verify(ctx context.Context, token string) (*identity.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, errors.New("unknown token")
}

// routerProvider is a minimal in-memory payment provider.
type routerProvider struct {
	customers atomic.Int32
	intents   atomic.Int32
}

func (p *routerProvider) CreateCustomer(ctx context.Context, in billing.CustomerInput) (string, error) {
	return fmt.Sprintf("cus_%d", p.customers.Add(1)), nil
}

func (p *routerProvider) GetCustomer(ctx context.Context, customerID string) (*billing.ProviderCustomer, error) {
	return &billing.ProviderCustomer{ID: customerID}, nil
}

func (p *routerProvider) CreateCheckoutSession(ctx context.Context, in billing.CheckoutInput) (*billing.CheckoutSession, error) {
	return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example.com/cs_test_1"}, nil
}

func (p *routerProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.example.com/" + customerID, nil
}

func (p *routerProvider) CreatePaymentIntent(ctx context.Context, in billing.PaymentIntentInput) (*billing.PaymentIntent, error) {
	id := fmt.Sprintf("pi_test_%d", p.intents.Add(1))
	return &billing.PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

type harness struct {
	app      *fiber.App
	db       *gorm.DB
	repos    *repository.Repositories
	identity *identity.WebhookVerifier
	provider *routerProvider
	dbErr    error
	cacheErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	lg := zap.NewNop()
	db := dbtest.Open(t)
	repos := repository.NewFactory(db).GetRepositories()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{
		AppEnv: "test",
		AppURL: "http://app.test",
		Admin:  config.AdminConfig{APIKeyHash: string(hash)},
		Limits: config.LimitsConfig{APIMax: 1000, APIWindow: time.Minute},
	}

	identityVerifier, err := identity.NewWebhookVerifier(testIdentitySecret)
	require.NoError(t, err)

	h := &harness{db: db, repos: repos, identity: identityVerifier, provider: &routerProvider{}}
	directory := identity.NewDirectory(repos.User, lg)
	billingSvc := billing.NewService(h.provider, repos, cfg.AppURL, lg)
	recorder := webhooks.NewRecorder(repos.WebhookEvent, archive.Noop{}, lg)

	app := fiber.New(fiber.Config{ErrorHandler: apierror.ErrorHandler(lg, controllers.ErrorMappers()...)})
	InstallRouter(app, Deps{
		Config: cfg,
		Log:    lg,
		Verifier: stubVerifier{
			testUserToken: {
				PrincipalID: testExternalID,
				Claims:      map[string]interface{}{"email": testUserEmail, "given_name": "Ada"},
			},
			testPendingToken: {PrincipalID: "user_pending"},
		},
		Users:             directory,
		ContactLimiter:    ratelimit.NewMemoryLimiter(ratelimit.ContactPolicy),
		NewsletterLimiter: ratelimit.NewMemoryLimiter(ratelimit.NewsletterPolicy),
		Payments:          controllers.NewPaymentController(billingSvc, repos.Payment),
		Webhooks:          controllers.NewWebhookController(recorder, identityVerifier, directory, testStripeSecret, billingSvc.Events, lg),
		Contacts: controllers.NewContactController(repos.Contact, hcaptcha.NewVerifier(""),
			mail.NewSMTPMailer(config.MailConfig{}, lg), "", lg),
		Newsletter: controllers.NewNewsletterController(repos.Newsletter, lg),
		UsersCtl:   controllers.NewUserController(repos.User, lg),
		Health: controllers.NewHealthController(
			func(ctx context.Context) error { return h.dbErr },
			func(ctx context.Context) error { return h.cacheErr },
			lg,
		),
	})
	h.app = app
	return h
}

// do sends a request and returns the response with its raw body.
func (h *harness) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

// call is do plus envelope decoding.
func (h *harness) call(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, envelope) {
	t.Helper()
	resp, raw := h.do(t, method, path, body, headers)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func bearer(token string) map[string]string {
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}

func fromIP(ip string) map[string]string {
	return map[string]string{fiber.HeaderXForwardedFor: ip}
}
