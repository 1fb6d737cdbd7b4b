package connectivity

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/sms-drafts/internal/logger"
)

// CheckFunc reports whether the backend can be reached right now.
type CheckFunc func(ctx context.Context) bool

// HTTPCheck returns a CheckFunc that issues GET healthURL. Any response below
// 500 counts as reachable; transport errors and 5xx do not.
func HTTPCheck(client *http.Client, healthURL string) CheckFunc {
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError
	}
}

// Prober feeds a Detector from a CheckFunc.
type Prober struct {
	Detector *Detector
	Check    CheckFunc
	Interval time.Duration
	// Timeout bounds a single check. Zero means Interval.
	Timeout time.Duration
	Log     *zap.Logger
}

// Watch seeds the detector with an immediate check, then re-checks every
// Interval until ctx is done. It blocks; run it in its own goroutine.
func (p *Prober) Watch(ctx context.Context) {
	log := logger.OrNop(p.Log)
	p.probe(ctx, log)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx, log)
		}
	}
}

func (p *Prober) probe(ctx context.Context, log *zap.Logger) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = p.Interval
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	online := p.Check(cctx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if p.Detector.Set(online) {
		log.Info("backend connectivity changed", zap.Bool("online", online))
	}
}
