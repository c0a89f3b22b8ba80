package output

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

type countingStore struct {
	checkpoints int
	finals      int
	err         error
}

func (c *countingStore) WriteCheckpoint(context.Context, *crawler.RunResult) error {
	c.checkpoints++
	return c.err
}

func (c *countingStore) WriteFinal(context.Context, *crawler.RunResult) error {
	c.finals++
	return c.err
}

func TestMultiStoreWritesEveryStore(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	a := &countingStore{err: boom}
	b := &countingStore{}
	m := MultiStore{a, b}

	err := m.WriteCheckpoint(context.Background(), &crawler.RunResult{})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, m.WriteFinal(context.Background(), &crawler.RunResult{}), boom)
	require.Equal(t, 1, a.checkpoints)
	require.Equal(t, 1, b.checkpoints)
	require.Equal(t, 1, b.finals)

	require.NoError(t, MultiStore{b}.WriteFinal(context.Background(), &crawler.RunResult{}))
}
