package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lore-crawler/internal/browser/static"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

const catalogURL = site + "/champions/"

const catalogPage = `<html><body><ul>
<li class="item_30l8"><a href="/en_US/champion/jinx/"><h1>Jinx</h1><h2>Zaun</h2></a></li>
<li class="item_30l8"><a href="/en_US/champion/kaisa/"><h1>Kai'Sa</h1></a></li>
<li class="item_30l8"><a href="/en_US/champion/jinx-2/"><h1>JINX</h1><h2>Piltover</h2></a></li>
<li class="item_30l8"><a href="https://elsewhere.test/champion/ahri/"><h1>Ahri</h1></a></li>
<li class="item_30l8"><a><h1>Nohref</h1></a></li>
<li class="item_30l8"><a href="/en_US/champion/blank/"><h1>  </h1></a></li>
</ul></body></html>`

func TestCatalogExtractDedupesAndFilters(t *testing.T) {
	t.Parallel()

	page := static.New(static.MapSource{catalogURL: catalogPage})
	pauser := &recordingPauser{}
	opts := testOptions()
	opts.Pauser = pauser

	entries, err := NewCatalogExtractor(opts).Extract(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, []crawler.CatalogEntry{
		{Name: "JINX", Category: "Zaun", DetailURL: site + "/champion/jinx/"},
		{Name: "KAI'SA", Category: "", DetailURL: site + "/champion/kaisa/"},
	}, entries)
	require.Equal(t, []time.Duration{5 * time.Second}, pauser.Delays())
}

func TestCatalogExtractFallsBackToLaterTier(t *testing.T) {
	t.Parallel()

	html := `<html><body><div class="grid">
<a href="/en_US/champion/vi/"><h1>Vi</h1><h2>Piltover</h2></a>
</div></body></html>`
	page := static.New(static.MapSource{catalogURL: html})

	entries, err := NewCatalogExtractor(testOptions()).Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "VI", entries[0].Name)
}

func TestCatalogExtractKeepsFirstTierEvenWhenAllFiltered(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<ul><li class="item_30l8"><a href="https://elsewhere.test/champion/ahri/"><h1>Ahri</h1></a></li></ul>
<div class="grid"><a href="/en_US/champion/vi/"><h1>Vi</h1></a></div>
</body></html>`
	page := static.New(static.MapSource{catalogURL: html})

	entries, err := NewCatalogExtractor(testOptions()).Extract(context.Background(), page)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCatalogExtractEmptyWhenNoTierMatches(t *testing.T) {
	t.Parallel()

	page := static.New(static.MapSource{catalogURL: `<html><body><p>maintenance</p></body></html>`})

	entries, err := NewCatalogExtractor(testOptions()).Extract(context.Background(), page)
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestCatalogExtractNavigationFailure(t *testing.T) {
	t.Parallel()

	page := static.New(static.MapSource{})
	_, err := NewCatalogExtractor(testOptions()).Extract(context.Background(), page)
	require.ErrorIs(t, err, crawler.ErrNavigation)
}
