package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lore-crawler/internal/browser/static"
)

const tieredPage = `<html><body>
<div class="first"><span>one</span><span>two</span></div>
<div class="second"><span>three</span></div>
</body></html>`

func TestResolveReturnsFirstTierOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	page := static.New(static.MapSource{"https://x/": tieredPage})
	require.NoError(t, page.Navigate(ctx, "https://x/"))

	r := NewResolver(nil)
	elems, err := r.Resolve(ctx, page, "test.spans", Candidates{".first span", ".second span"}, time.Second)
	require.NoError(t, err)
	require.Len(t, elems, 2)

	elems, err = r.Resolve(ctx, page, "test.spans", Candidates{".missing span", ".second span"}, time.Second)
	require.NoError(t, err)
	require.Len(t, elems, 1)
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	page := static.New(static.MapSource{"https://x/": tieredPage})
	require.NoError(t, page.Navigate(ctx, "https://x/"))

	_, err := NewResolver(nil).Resolve(ctx, page, "test.none", Candidates{".a", ".b"}, 0)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = NewResolver(nil).First(ctx, page, "test.none", nil, time.Second)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	page := static.New(static.MapSource{"https://x/": tieredPage})
	require.NoError(t, page.Navigate(ctx, "https://x/"))
	cancel()

	_, err := NewResolver(nil).Resolve(ctx, page, "test.spans", Candidates{".first span"}, time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrNotFound)
}
