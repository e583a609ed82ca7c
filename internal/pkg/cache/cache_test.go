package cache

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/internal/pkg/config"
)

func newMiniredisConfig(t *testing.T) (*miniredis.Miniredis, config.CacheConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return mr, config.CacheConfig{Host: host, Port: p}
}

func TestNewConnects(t *testing.T) {
	_, cfg := newMiniredisConfig(t)
	client := New(context.Background(), cfg, zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.Equal(t, "v", client.Get(context.Background(), "k").Val())
}

func TestNewToleratesUnreachableServer(t *testing.T) {
	client := New(context.Background(), config.CacheConfig{Host: "127.0.0.1", Port: 1}, zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })
	assert.Error(t, client.Ping(context.Background()).Err())
}

func TestFiberStorageUsesSeparateDatabase(t *testing.T) {
	mr, cfg := newMiniredisConfig(t)
	client := New(context.Background(), cfg, zap.NewNop())
	t.Cleanup(func() { _ = client.Close() })

	storage := NewFiberStorage(client)
	t.Cleanup(func() { _ = storage.Close() })

	require.NoError(t, storage.Set("limiter:1.2.3.4", []byte("3"), time.Minute))
	got, err := storage.Get("limiter:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)

	assert.True(t, mr.DB(limiterDatabase).Exists("limiter:1.2.3.4"))
	assert.False(t, mr.DB(0).Exists("limiter:1.2.3.4"))
}
