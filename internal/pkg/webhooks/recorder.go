// Package webhooks persists verified provider deliveries and guarantees each
// event is applied at most once.
package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/archive"
)

// Delivery is a verified webhook payload.
type Delivery struct {
	Provider  string
	EventID   string
	EventType string
	Payload   []byte
}

// Result describes what happened to a delivery.
type Result struct {
	Duplicate bool
	EventID   uint
}

// Recorder stores deliveries in webhook_events and runs the handler for
// events that have not been processed successfully yet.
type Recorder struct {
	events  repository.WebhookEventRepository
	archive archive.Archiver
	log     *zap.Logger
}

func NewRecorder(events repository.WebhookEventRepository, arch archive.Archiver, lg *zap.Logger) *Recorder {
	if arch == nil {
		arch = archive.Noop{}
	}
	return &Recorder{events: events, archive: arch, log: lg}
}

// Process records d and calls handle unless the same event already finished.
// Events that failed before are retried. A handler error is stored on the
// row and returned.
func (r *Recorder) Process(ctx context.Context, d Delivery, handle func(ctx context.Context) error) (Result, error) {
	provider := strings.ToLower(strings.TrimSpace(d.Provider))
	if provider == "" {
		return Result{}, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(d.EventID)
	if eventID == "" {
		sum := sha256.Sum256(d.Payload)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	created, stored, err := r.events.CreateIfNotExists(ctx, &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(d.EventType),
		PayloadJSON:     string(d.Payload),
		SignatureValid:  true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("record webhook event: %w", err)
	}
	if !created && stored.IsProcessed() {
		r.log.Info("webhook duplicate ignored",
			zap.String("provider", provider),
			zap.String("event_id", eventID),
			zap.String("type", d.EventType),
		)
		return Result{Duplicate: true, EventID: stored.ID}, nil
	}

	if created {
		if err := r.archive.Archive(ctx, provider, eventID, d.Payload); err != nil {
			r.log.Warn("webhook archive failed", zap.String("event_id", eventID), zap.Error(err))
		}
	}

	handleErr := handle(ctx)
	errMsg := ""
	if handleErr != nil {
		errMsg = handleErr.Error()
	}
	if err := r.events.MarkProcessed(ctx, stored.ID, errMsg); err != nil {
		r.log.Error("mark webhook processed", zap.Uint("id", stored.ID), zap.Error(err))
		if handleErr == nil {
			return Result{EventID: stored.ID}, fmt.Errorf("mark webhook processed: %w", err)
		}
	}
	if handleErr != nil {
		return Result{EventID: stored.ID}, handleErr
	}
	return Result{EventID: stored.ID}, nil
}
