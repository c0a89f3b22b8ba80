package output

import (
	"context"
	"errors"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

// MultiStore fans every write out to each store. All stores are written even
// when one fails; the failures are joined.
type MultiStore []crawler.ResultStore

// WriteCheckpoint writes the checkpoint to every store.
func (m MultiStore) WriteCheckpoint(ctx context.Context, result *crawler.RunResult) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteCheckpoint(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteFinal writes the final output to every store.
func (m MultiStore) WriteFinal(ctx context.Context, result *crawler.RunResult) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteFinal(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
