// Package archive stores raw verified webhook payloads in object storage so
// deliveries can be audited or replayed after the database row is gone.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// Archiver persists a verified webhook payload.
type Archiver interface {
	Archive(ctx context.Context, provider, eventID string, payload []byte) error
}

// Noop discards payloads. It is used when no bucket is configured.
type Noop struct{}

func (Noop) Archive(context.Context, string, string, []byte) error { return nil }

// ObjectKey builds prefix/provider/YYYY/MM/DD/eventID.json.
func ObjectKey(prefix, provider, eventID string, at time.Time) string {
	at = at.UTC()
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(eventID) + ".json"
	return path.Join(
		strings.Trim(prefix, "/"),
		provider,
		fmt.Sprintf("%04d/%02d/%02d", at.Year(), int(at.Month()), at.Day()),
		name,
	)
}
