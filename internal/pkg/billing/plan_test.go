package billing

import "testing"

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: "active"},
		{in: "PAST_DUE", want: "past_due"},
		{in: " trialing ", want: "trialing"},
		{in: "incomplete_expired", want: "incomplete_expired"},
		{in: "bogus", want: "incomplete"},
	}

	for _, tt := range tests {
		if got := normalizeStatus(tt.in); got != tt.want {
			t.Fatalf("normalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeInterval(t *testing.T) {
	if got := normalizeInterval("Month"); got != "month" {
		t.Fatalf("normalizeInterval(Month) = %q", got)
	}
	if got := normalizeInterval("fortnight"); got != "" {
		t.Fatalf("expected unknown interval to normalize to empty, got %q", got)
	}
}

func TestIsEntitlingStatus(t *testing.T) {
	for _, status := range []string{"active", "trialing", "past_due"} {
		if !IsEntitlingStatus(status) {
			t.Fatalf("expected status %q to be entitling", status)
		}
	}
	for _, status := range []string{"canceled", "incomplete", "unpaid", "paused"} {
		if IsEntitlingStatus(status) {
			t.Fatalf("expected status %q to be non-entitling", status)
		}
	}
}
