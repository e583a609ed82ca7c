package webhooks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/database/dbtest"
)

type memArchive struct {
	mu   sync.Mutex
	keys []string
}

func (m *memArchive) Archive(ctx context.Context, provider, eventID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, provider+"/"+eventID)
	return nil
}

func newRecorder(t *testing.T) (*Recorder, repository.WebhookEventRepository, *memArchive) {
	t.Helper()
	repo := repository.NewWebhookEventRepository(dbtest.Open(t))
	arch := &memArchive{}
	return NewRecorder(repo, arch, zap.NewNop()), repo, arch
}

func TestProcessRunsOnceForReplays(t *testing.T) {
	rec, _, arch := newRecorder(t)
	ctx := context.Background()
	calls := 0
	handle := func(context.Context) error { calls++; return nil }
	d := Delivery{Provider: "Stripe", EventID: "evt_1", EventType: "invoice.paid", Payload: []byte(`{"id":"evt_1"}`)}

	res, err := rec.Process(ctx, d, handle)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	res, err = rec.Process(ctx, d, handle)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"stripe/evt_1"}, arch.keys)
}

func TestProcessRetriesFailedEvents(t *testing.T) {
	rec, _, _ := newRecorder(t)
	ctx := context.Background()
	d := Delivery{Provider: models.WebhookProviderIdentity, EventID: "msg_1", EventType: "user.created", Payload: []byte(`{}`)}

	boom := errors.New("db down")
	_, err := rec.Process(ctx, d, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	calls := 0
	res, err := rec.Process(ctx, d, func(context.Context) error { calls++; return nil })
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, calls)
}

func TestProcessHashesMissingEventID(t *testing.T) {
	rec, _, _ := newRecorder(t)
	ctx := context.Background()
	d := Delivery{Provider: "stripe", Payload: []byte(`{"a":1}`)}

	_, err := rec.Process(ctx, d, func(context.Context) error { return nil })
	require.NoError(t, err)
	res, err := rec.Process(ctx, d, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestProcessRequiresProvider(t *testing.T) {
	rec, _, _ := newRecorder(t)
	_, err := rec.Process(context.Background(), Delivery{EventID: "x"}, func(context.Context) error { return nil })
	assert.Error(t, err)
}
