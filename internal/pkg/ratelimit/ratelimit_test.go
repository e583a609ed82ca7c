package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRedisLimiter(t *testing.T, p Policy) (*RedisLimiter, *miniredis.Miniredis, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRedisLimiter(client, p)
	l.now = clk.now
	return l, mr, clk
}

func exerciseWindow(t *testing.T, l Limiter, clk *clock) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		limited, err := l.IsLimited(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, limited, "attempt %d", i+1)
		require.NoError(t, l.RecordAttempt(ctx, "1.2.3.4"))
		clk.t = clk.t.Add(time.Minute)
	}

	limited, err := l.IsLimited(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, limited)

	limited, err = l.IsLimited(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.False(t, limited, "other keys have their own window")

	// The first attempt falls out of the window.
	clk.t = clk.t.Add(58 * time.Minute)
	limited, err = l.IsLimited(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestRedisLimiterSlidingWindow(t *testing.T) {
	l, mr, clk := newRedisLimiter(t, Policy{Name: "test", Max: 3, Window: time.Hour})
	exerciseWindow(t, l, clk)
	assert.True(t, mr.Exists("rate:test:1.2.3.4"))
}

func TestRedisLimiterSetsExpiry(t *testing.T) {
	l, mr, _ := newRedisLimiter(t, NewsletterPolicy)
	require.NoError(t, l.RecordAttempt(context.Background(), "ip"))
	assert.Equal(t, time.Hour, mr.TTL("rate:newsletter:ip"))
}

func TestRedisLimiterCountsSameMillisecondAttempts(t *testing.T) {
	l, _, _ := newRedisLimiter(t, Policy{Name: "burst", Max: 2, Window: time.Minute})
	ctx := context.Background()
	require.NoError(t, l.RecordAttempt(ctx, "ip"))
	require.NoError(t, l.RecordAttempt(ctx, "ip"))

	limited, err := l.IsLimited(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, limited)
}

func TestRedisLimiterReportsBackendErrors(t *testing.T) {
	l, mr, _ := newRedisLimiter(t, ContactPolicy)
	mr.Close()

	_, err := l.IsLimited(context.Background(), "ip")
	assert.Error(t, err)
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(Policy{Name: "test", Max: 3, Window: time.Hour})
	l.now = clk.now
	exerciseWindow(t, l, clk)
}

func TestClientKey(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(ClientKey(c)) })

	cases := map[string]string{
		"":                        "unknown",
		"203.0.113.9":             "203.0.113.9",
		" 203.0.113.9 , 10.0.0.1": "203.0.113.9",
		" , 10.0.0.1":             "unknown",
	}
	for header, want := range cases {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("X-Forwarded-For", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 64)
		n, _ := resp.Body.Read(buf)
		assert.Equal(t, want, string(buf[:n]), "header %q", header)
	}
}

type failingLimiter struct{ recorded int }

func (f *failingLimiter) IsLimited(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (f *failingLimiter) RecordAttempt(context.Context, string) error {
	f.recorded++
	return errors.New("connection refused")
}

func newLimitedApp(l Limiter, status int) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apierror.ErrorHandler(zap.NewNop())})
	app.Post("/contact", Middleware(l, "Too many submissions. Please try again later.", zap.NewNop()),
		func(c *fiber.Ctx) error { return c.SendStatus(status) })
	return app
}

func post(t *testing.T, app *fiber.App, ip string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/contact", nil)
	req.Header.Set("X-Forwarded-For", ip)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddlewareLimitsPerClient(t *testing.T) {
	app := newLimitedApp(NewMemoryLimiter(ContactPolicy), fiber.StatusCreated)

	for i := 0; i < 5; i++ {
		assert.Equal(t, fiber.StatusCreated, post(t, app, "198.51.100.1"))
	}
	assert.Equal(t, fiber.StatusTooManyRequests, post(t, app, "198.51.100.1"))
	assert.Equal(t, fiber.StatusCreated, post(t, app, "198.51.100.2"))
}

func TestMiddlewareDoesNotCountRejectedRequests(t *testing.T) {
	app := newLimitedApp(NewMemoryLimiter(NewsletterPolicy), fiber.StatusBadRequest)

	for i := 0; i < 10; i++ {
		assert.Equal(t, fiber.StatusBadRequest, post(t, app, "198.51.100.1"))
	}
}

func TestMiddlewareFailsOpen(t *testing.T) {
	fl := &failingLimiter{}
	app := newLimitedApp(fl, fiber.StatusCreated)

	assert.Equal(t, fiber.StatusCreated, post(t, app, "198.51.100.1"))
	assert.Equal(t, 0, fl.recorded, "no attempt is recorded when the check failed")
}
