package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Event is a verified identity webhook delivery.
type Event struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type deletedObject struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// HandleEvent applies a lifecycle event to the directory. Unknown event types
// are acknowledged without side effects.
func (d *Directory) HandleEvent(ctx context.Context, evt Event) error {
	switch evt.Type {
	case EventUserCreated, EventUserUpdated:
		var ext ExternalUser
		if err := json.Unmarshal(evt.Data, &ext); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		_, err := d.UpsertFromLifecycleEvent(ctx, ext)
		return err
	case EventUserDeleted:
		var obj deletedObject
		if err := json.Unmarshal(evt.Data, &obj); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		if obj.ID == "" {
			return fmt.Errorf("%s payload has no id", evt.Type)
		}
		_, err := d.DeleteByExternalID(ctx, obj.ID)
		return err
	default:
		d.log.Info("identity webhook ignored", zap.String("type", evt.Type))
		return nil
	}
}
