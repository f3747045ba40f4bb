package coordinator

import (
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/config"
)

// Policy controls poll cadence and failure recovery. Mutable at runtime via
// Reconfigure.
type Policy struct {
	ArmedInterval    time.Duration
	DisarmedInterval time.Duration
	FastPoll         bool
	FastPollInterval time.Duration
	// MinInterval is the upstream-suggested floor; fast polling never goes
	// below it.
	MinInterval      time.Duration
	FullPollEvery    int
	DebounceWindow   time.Duration
	UnavailableAfter int
	StaleAfter       time.Duration
	AuthRetryDelay   time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		ArmedInterval:    30 * time.Second,
		DisarmedInterval: 2 * time.Minute,
		FastPoll:         false,
		FastPollInterval: 15 * time.Second,
		MinInterval:      5 * time.Second,
		FullPollEvery:    10,
		DebounceWindow:   500 * time.Millisecond,
		UnavailableAfter: 5,
		StaleAfter:       10 * time.Minute,
		AuthRetryDelay:   5 * time.Second,
		BackoffBase:      10 * time.Second,
		BackoffMax:       5 * time.Minute,
	}
}

// PolicyFromConfig builds a Policy from the YAML polling section, keeping
// defaults for everything the file doesn't cover.
func PolicyFromConfig(cfg *config.PollingConfig) Policy {
	p := DefaultPolicy()
	if cfg.ArmedIntervalSeconds > 0 {
		p.ArmedInterval = time.Duration(cfg.ArmedIntervalSeconds) * time.Second
	}
	if cfg.DisarmedIntervalSeconds > 0 {
		p.DisarmedInterval = time.Duration(cfg.DisarmedIntervalSeconds) * time.Second
	}
	p.FastPoll = cfg.FastPoll
	if cfg.FastPollIntervalSeconds > 0 {
		p.FastPollInterval = time.Duration(cfg.FastPollIntervalSeconds) * time.Second
	}
	if cfg.FullPollEvery > 0 {
		p.FullPollEvery = cfg.FullPollEvery
	}
	return p
}
