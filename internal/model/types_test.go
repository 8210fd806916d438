package model

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestTierPollInterval(t *testing.T) {
	tests := []struct {
		tier Tier
		want time.Duration
	}{
		{TierRealtime, 1 * time.Minute},
		{TierFast, 5 * time.Minute},
		{TierNormal, 15 * time.Minute},
		{TierSlow, 60 * time.Minute},
		{TierDormant, 6 * time.Hour},
		{Tier("bogus"), 15 * time.Minute}, // unknown tiers default to normal
	}
	for _, tt := range tests {
		if got := tt.tier.PollInterval(); got != tt.want {
			t.Errorf("%s poll interval = %v, want %v", tt.tier, got, tt.want)
		}
	}
}

func TestTierRateLimit(t *testing.T) {
	for _, tier := range tierOrder {
		if got, want := tier.RateLimit(), rate.Every(tier.PollInterval()); got != want {
			t.Errorf("%s rate limit = %v, want %v", tier, got, want)
		}
	}

	// Monotonic: each tier polls at least as often as the next one down.
	for i := 1; i < len(tierOrder); i++ {
		higher, lower := tierOrder[i-1], tierOrder[i]
		if higher.RateLimit() < lower.RateLimit() {
			t.Errorf("%s rate limit %v below %s rate limit %v",
				higher, higher.RateLimit(), lower, lower.RateLimit())
		}
	}
	if TierRealtime.RateLimit() <= TierDormant.RateLimit() {
		t.Error("realtime should admit more polls than dormant")
	}
}
