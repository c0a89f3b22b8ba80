package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/metrics"
)

// ErrNotFound means no candidate selector matched. Callers treat it as an
// absent field, never as a failure.
var ErrNotFound = errors.New("no selector candidate matched")

// Resolver walks selector candidates in order.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver returns a Resolver that logs misses at debug level.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve returns every element matched by the first candidate that yields a
// non-empty set. Each candidate may wait up to wait for a match; a zero wait
// queries immediately. target names the lookup in logs and metrics.
func (r *Resolver) Resolve(
	ctx context.Context,
	page browser.Page,
	target string,
	candidates Candidates,
	wait time.Duration,
) ([]browser.Element, error) {
	for i, sel := range candidates {
		if wait > 0 {
			err := page.WaitFor(ctx, sel, wait)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, fmt.Errorf("resolve %s: %w", target, ctxErr)
				}
				r.logger.Debug("Selector candidate not found",
					zap.String("target", target),
					zap.String("selector", sel),
					zap.Int("tier", i+1),
					zap.Error(err),
				)
				continue
			}
		}
		elems, err := page.FindAll(ctx, sel)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("resolve %s: %w", target, ctxErr)
			}
			r.logger.Debug("Selector candidate query failed",
				zap.String("target", target),
				zap.String("selector", sel),
				zap.Error(err),
			)
			continue
		}
		if len(elems) > 0 {
			metrics.ObserveSelectorTier(target, i+1)
			return elems, nil
		}
	}
	metrics.ObserveSelectorMiss(target)
	return nil, ErrNotFound
}

// First resolves candidates and returns only the first match.
func (r *Resolver) First(
	ctx context.Context,
	page browser.Page,
	target string,
	candidates Candidates,
	wait time.Duration,
) (browser.Element, error) {
	elems, err := r.Resolve(ctx, page, target, candidates, wait)
	if err != nil {
		return nil, err
	}
	return elems[0], nil
}
