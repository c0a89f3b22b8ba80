package crawler

import "errors"

// ErrNavigation marks a page that failed to load or whose body never appeared.
// It is stage-local: the entity keeps going with that stage's defaults.
var ErrNavigation = errors.New("navigation failed")

// CatalogEntry is one entity discovered on the catalog page.
type CatalogEntry struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	DetailURL string `json:"detailUrl"`
}

// EntityRecord accumulates everything harvested for a single entity.
// Optional fields are always present with an empty value so that every
// serialized record carries the same shape.
type EntityRecord struct {
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	DetailURL         string   `json:"detailUrl"`
	Role              string   `json:"role"`
	Subtype           string   `json:"subtype"`
	Tagline           string   `json:"tagline"`
	ShortDescription  string   `json:"shortDescription"`
	RelatedNames      []string `json:"relatedNames"`
	BiographyURL      string   `json:"biographyUrl"`
	StoryURL          string   `json:"storyUrl"`
	ExtendedBiography string   `json:"extendedBiography"`
	ExtendedStory     string   `json:"extendedStory"`
}

// NewEntityRecord seeds a record from its catalog entry.
func NewEntityRecord(entry CatalogEntry) EntityRecord {
	return EntityRecord{
		Name:         entry.Name,
		Category:     entry.Category,
		DetailURL:    entry.DetailURL,
		RelatedNames: []string{},
	}
}

// ApplyDetails copies the detail-stage fields onto the record.
func (r *EntityRecord) ApplyDetails(d Details) {
	r.Role = d.Role
	r.Subtype = d.Subtype
	r.Tagline = d.Tagline
	r.ShortDescription = d.ShortDescription
	r.BiographyURL = d.BiographyURL
	if len(d.RelatedNames) > 0 {
		r.RelatedNames = append([]string(nil), d.RelatedNames...)
	}
}

func (r EntityRecord) clone() EntityRecord {
	out := r
	out.RelatedNames = append(make([]string, 0, len(r.RelatedNames)), r.RelatedNames...)
	return out
}

// Details holds the fields read from an entity's detail page.
type Details struct {
	Role             string
	Subtype          string
	Tagline          string
	ShortDescription string
	RelatedNames     []string
	BiographyURL     string
}

// Harvest is the outcome of reading paragraphs from a biography or story page.
// Paragraphs counts every matched paragraph element, including empty ones.
type Harvest struct {
	Text       string
	Paragraphs int
}

// RunResult is the ordered, append-only set of recorded entities for one run.
// The zero value is ready to use. It is not safe for concurrent mutation.
type RunResult struct {
	records []EntityRecord
}

// Append freezes rec and adds it to the end of the result.
func (r *RunResult) Append(rec EntityRecord) {
	r.records = append(r.records, rec.clone())
}

// Len reports how many entities have been recorded.
func (r *RunResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// Records returns a copy of the recorded entities in catalog order.
func (r *RunResult) Records() []EntityRecord {
	if r == nil {
		return nil
	}
	out := make([]EntityRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.clone()
	}
	return out
}

// EntityState is the position of an entity in the per-entity pipeline.
type EntityState string

// Pipeline states, in order.
const (
	StateSeeded      EntityState = "SEEDED"
	StateDetailed    EntityState = "DETAILED"
	StateBiographied EntityState = "BIOGRAPHIED"
	StateStoried     EntityState = "STORIED"
	StateRecorded    EntityState = "RECORDED"
)

// Stage names one extraction step of the pipeline.
type Stage string

// Pipeline stages.
const (
	StageDetail    Stage = "detail"
	StageBiography Stage = "biography"
	StageStory     Stage = "story"
)
