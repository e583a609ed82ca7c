package billing

import (
	"strings"

	"github.com/ManuelReschke/Payline/app/models"
)

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case models.SubscriptionStatusActive,
		models.SubscriptionStatusTrialing,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusCanceled,
		models.SubscriptionStatusIncomplete,
		models.SubscriptionStatusIncompleteExpired,
		models.SubscriptionStatusUnpaid,
		models.SubscriptionStatusPaused:
		return s
	default:
		return models.SubscriptionStatusIncomplete
	}
}

func normalizeInterval(interval string) string {
	i := strings.ToLower(strings.TrimSpace(interval))
	switch i {
	case "day", "week", "month", "year":
		return i
	default:
		return ""
	}
}

// IsEntitlingStatus reports whether a subscription in this status still
// grants access.
func IsEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}
