package rudp

import "time"

// Config holds the tunable constants governing the sender's window and
// retransmission behavior. internal/rlog loads it from the environment via
// github.com/sethvargo/go-envconfig, falling back to DefaultConfig's values
// when no override is set.
type Config struct {
	InitialWindow int           `env:"RUDP_INITIAL_WINDOW, default=14"`
	WindowFloor   int           `env:"RUDP_WINDOW_FLOOR, default=2"`
	InitialRTT    time.Duration `env:"RUDP_INITIAL_RTT, default=1s"`
	AckIntakeWait time.Duration `env:"RUDP_ACK_INTAKE_WAIT, default=100ms"`
}

// DefaultConfig returns the built-in tuning values, with no environment
// overrides applied.
func DefaultConfig() Config {
	return Config{
		InitialWindow: 14,
		WindowFloor:   2,
		InitialRTT:    time.Second,
		AckIntakeWait: 100 * time.Millisecond,
	}
}
