// Package poller runs a scan function on a fixed cadence. A scan's error or
// panic is logged and the loop keeps going; only context cancellation stops
// it.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type ScanFunc func(ctx context.Context) error

type Poller struct {
	name     string
	interval time.Duration
	scan     ScanFunc
}

func New(name string, interval time.Duration, scan ScanFunc) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		scan:     scan,
	}
}

// Run blocks until ctx is done. The first scan fires immediately.
func (p *Poller) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx).With().Str("poller", p.name).Logger()
	logger.Info().Dur("interval", p.interval).Msg("poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx, &logger)

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx, &logger)
		case <-ctx.Done():
			logger.Info().Msg("poller stopped")
			return
		}
	}
}

func (p *Poller) runOnce(ctx context.Context, logger *zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Err(fmt.Errorf("panic: %v", r)).Msg("scan panicked")
		}
	}()

	started := time.Now()
	if err := p.scan(ctx); err != nil {
		logger.Error().Err(err).Msg("scan failed")
		return
	}
	logger.Debug().Dur("elapsed", time.Since(started)).Msg("scan completed")
}
