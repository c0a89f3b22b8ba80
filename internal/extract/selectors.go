package extract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Candidates is an ordered list of selectors tried in turn; the first that
// matches wins.
type Candidates []string

// Selectors gathers every selector the extractors use. Defaults match the
// live site; a YAML file can override any subset.
type Selectors struct {
	Catalog CatalogSelectors `yaml:"catalog"`
	Detail  DetailSelectors  `yaml:"detail"`
	Content ContentSelectors `yaml:"content"`
	Links   LinkSelectors    `yaml:"links"`
}

// CatalogSelectors locate entity anchors on the catalog page.
type CatalogSelectors struct {
	Anchors  Candidates `yaml:"anchors"`
	Name     string     `yaml:"name"`
	Category string     `yaml:"category"`
}

// DetailSelectors locate the fixed fields of a detail page.
type DetailSelectors struct {
	Body                      string     `yaml:"body"`
	Role                      Candidates `yaml:"role"`
	Subtype                   Candidates `yaml:"subtype"`
	Tagline                   Candidates `yaml:"tagline"`
	ShortDescription          Candidates `yaml:"short_description"`
	ShortDescriptionContainer Candidates `yaml:"short_description_container"`
	RelatedNames              Candidates `yaml:"related_names"`
}

// ContentSelectors describe biography and story pages.
type ContentSelectors struct {
	Body          string     `yaml:"body"`
	RevealTrigger Candidates `yaml:"reveal_trigger"`
	Container     string     `yaml:"container"`
	Paragraph     string     `yaml:"paragraph"`
}

// LinkSelectors drive biography and story link discovery.
type LinkSelectors struct {
	// LabelledAnchor matches anchors wrapping a button; Label is the text
	// node inside it that carries the button caption.
	LabelledAnchor  string   `yaml:"labelled_anchor"`
	Label           string   `yaml:"label"`
	BiographyLabels []string `yaml:"biography_labels"`
	BiographyMarker string   `yaml:"biography_marker"`
	StoryLabels     []string `yaml:"story_labels"`
	StoryMarker     string   `yaml:"story_marker"`
	StorySuffix     string   `yaml:"story_suffix"`
}

// DefaultSelectors returns the selectors for the current site layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Catalog: CatalogSelectors{
			Anchors:  Candidates{"li.item_30l8 a", ".champsListUl_2Lmb li a", "a[href*='/champion/']"},
			Name:     "h1",
			Category: "h2",
		},
		Detail: DetailSelectors{
			Body:                      "body",
			Role:                      Candidates{".typeDescription_ixWu h6", ".playerType_3laO h6"},
			Subtype:                   Candidates{".ChampionRace_a_Fp h6", ".race_3k58 h6"},
			Tagline:                   Candidates{".quote_2507 p", ".championQuotes_3FLE p"},
			ShortDescription:          Candidates{".biographyText_3-to p", ".biography_3YIe p"},
			ShortDescriptionContainer: Candidates{".biographyText_3-to", ".biography_3YIe"},
			RelatedNames:              Candidates{"ul.champions_jmhN li.champion_1xlO h5"},
		},
		Content: ContentSelectors{
			Body:          "body",
			RevealTrigger: Candidates{"p.cta_VVdh"},
			Container:     "#CatchElement",
			Paragraph:     "p.p_1_sJ",
		},
		Links: LinkSelectors{
			LabelledAnchor:  "a:has(button span)",
			Label:           "button span",
			BiographyLabels: []string{"Read Biography", "Read Bio"},
			BiographyMarker: "/story/champion/",
			StoryLabels:     []string{"story", "Story"},
			StoryMarker:     "/story/",
			StorySuffix:     "-color-story",
		},
	}
}

// LoadSelectors overlays the YAML file at path onto the defaults. An empty
// path returns the defaults unchanged.
func LoadSelectors(path string) (Selectors, error) {
	s := DefaultSelectors()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return Selectors{}, fmt.Errorf("read selectors file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Selectors{}, fmt.Errorf("parse selectors YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Selectors{}, err
	}
	return s, nil
}

// Validate checks that every required selector is present.
func (s Selectors) Validate() error {
	checks := []struct {
		key string
		ok  bool
	}{
		{"catalog.anchors", len(s.Catalog.Anchors) > 0},
		{"catalog.name", s.Catalog.Name != ""},
		{"detail.body", s.Detail.Body != ""},
		{"content.body", s.Content.Body != ""},
		{"content.container", s.Content.Container != ""},
		{"content.paragraph", s.Content.Paragraph != ""},
		{"links.labelled_anchor", s.Links.LabelledAnchor != ""},
		{"links.label", s.Links.Label != ""},
		{"links.biography_marker", s.Links.BiographyMarker != ""},
		{"links.story_marker", s.Links.StoryMarker != ""},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("selectors: %s is required", c.key)
		}
	}
	return nil
}
