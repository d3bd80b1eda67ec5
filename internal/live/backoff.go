package live

import (
	"math"
	"math/rand"
	"time"

	"github.com/mesh-intelligence/showcase/pkg/types"
)

// nextBackoffDelay returns the re-subscribe delay for attempt N (1-based).
// Delays grow by Multiplier from InitialDelay, capped at MaxDelay, with
// jitter in [0.5, 1.5) when rng is non-nil.
func nextBackoffDelay(cfg types.RetryConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay)
	if attempt > 1 {
		delay *= math.Pow(cfg.Multiplier, float64(attempt-1))
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	return time.Duration(delay)
}
