// Package rlog builds the logger and configuration every rudp process starts
// with: a dlog logger backed by logrus, tagged with a per-run UUID so
// concurrent sender/receiver invocations are distinguishable in aggregated
// logs.
package rlog

import (
	"context"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"
	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus"

	"github.com/coho-systems/rudp/pkg/rudp"
)

// envLogLevel is the one log-level knob this package loads on its own;
// everything else tunable lives in rudp.Config.
type envLogLevel struct {
	Level string `env:"RUDP_LOG_LEVEL, default=info"`
}

// Init builds a context carrying a dlog logger for procName and returns it
// along with a fresh rudp.Config loaded from the environment (falling back to
// rudp.DefaultConfig's values when no override is set).
func Init(ctx context.Context, procName string) (context.Context, rudp.Config) {
	lvl := envLogLevel{}
	_ = envconfig.Process(ctx, &lvl)

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if parsed, err := logrus.ParseLevel(lvl.Level); err == nil {
		logger.SetLevel(parsed)
	}

	runID := uuid.New().String()
	entry := logger.WithFields(logrus.Fields{
		"proc": procName,
		"run":  runID,
	})

	ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(entry))

	cfg := rudp.DefaultConfig()
	if err := envconfig.Process(ctx, &cfg); err != nil {
		dlog.Errorf(ctx, "failed to apply environment overrides, using defaults: %v", err)
		cfg = rudp.DefaultConfig()
	}
	return ctx, cfg
}
