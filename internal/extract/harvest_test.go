package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lore-crawler/internal/browser/static"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

const bioURL = site + "/story/champion/jinx/"

func TestHarvestJoinsNonEmptyParagraphs(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<p class="cta_VVdh">Scroll to begin</p>
<div id="CatchElement">
  <p class="p_1_sJ">A</p>
  <p class="p_1_sJ">   </p>
  <p class="p_1_sJ">B</p>
</div>
<p class="p_1_sJ">outside</p>
</body></html>`
	page := static.New(static.MapSource{bioURL: html})

	got, err := NewHarvester(testOptions()).Harvest(context.Background(), page, bioURL, crawler.StageBiography)
	require.NoError(t, err)
	require.Equal(t, crawler.Harvest{Text: "A\n\nB", Paragraphs: 3}, got)
	require.Equal(t, []string{"p.cta_VVdh"}, page.Clicks())
	require.Equal(t, []string{"p.cta_VVdh", "window(0,150)"}, page.Scrolls())
}

func TestHarvestWithoutRevealTrigger(t *testing.T) {
	t.Parallel()

	html := `<html><body><div id="CatchElement"><p class="p_1_sJ">Only</p></div></body></html>`
	page := static.New(static.MapSource{bioURL: html})

	got, err := NewHarvester(testOptions()).Harvest(context.Background(), page, bioURL, crawler.StageStory)
	require.NoError(t, err)
	require.Equal(t, crawler.Harvest{Text: "Only", Paragraphs: 1}, got)
	require.Empty(t, page.Clicks())
}

func TestHarvestMissingContainer(t *testing.T) {
	t.Parallel()

	page := static.New(static.MapSource{bioURL: `<html><body><p class="p_1_sJ">stray</p></body></html>`})

	got, err := NewHarvester(testOptions()).Harvest(context.Background(), page, bioURL, crawler.StageBiography)
	require.NoError(t, err)
	require.Equal(t, crawler.Harvest{}, got)
}

func TestHarvestNavigationFailure(t *testing.T) {
	t.Parallel()

	page := static.New(static.MapSource{})
	_, err := NewHarvester(testOptions()).Harvest(context.Background(), page, bioURL, crawler.StageBiography)
	require.ErrorIs(t, err, crawler.ErrNavigation)
}
