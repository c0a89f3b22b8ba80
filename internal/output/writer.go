// Package output serializes run results into checkpoint and final artifacts.
package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/metrics"
)

// Header is the fixed CSV column order.
var Header = []string{
	"name",
	"category",
	"subtype",
	"tagline",
	"relatedNames",
	"shortDescription",
	"extendedBiography",
	"extendedStory",
	"detailUrl",
	"biographyUrl",
	"storyUrl",
}

// Names are the object names written below the blob store root.
type Names struct {
	Checkpoint string
	CSV        string
	JSON       string
}

// DefaultNames returns the file names the crawler has always used.
func DefaultNames() Names {
	return Names{
		Checkpoint: "progress_champions_data.json",
		CSV:        "lol_champions_data.csv",
		JSON:       "lol_champions_data.json",
	}
}

// Writer is a crawler.ResultStore over a blob store.
type Writer struct {
	store  crawler.BlobStore
	names  Names
	logger *zap.Logger
}

// NewWriter returns a Writer. Blank names take their defaults.
func NewWriter(store crawler.BlobStore, names Names, logger *zap.Logger) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultNames()
	if strings.TrimSpace(names.Checkpoint) == "" {
		names.Checkpoint = def.Checkpoint
	}
	if strings.TrimSpace(names.CSV) == "" {
		names.CSV = def.CSV
	}
	if strings.TrimSpace(names.JSON) == "" {
		names.JSON = def.JSON
	}
	if names.Checkpoint == names.CSV || names.Checkpoint == names.JSON {
		return nil, fmt.Errorf("checkpoint %q must differ from the final output names", names.Checkpoint)
	}
	return &Writer{store: store, names: names, logger: logger}, nil
}

// WriteCheckpoint overwrites the checkpoint with every record so far.
func (w *Writer) WriteCheckpoint(ctx context.Context, result *crawler.RunResult) error {
	data, err := EncodeJSON(result.Records())
	if err != nil {
		metrics.ObserveCheckpoint(false)
		return err
	}
	uri, err := w.store.PutObject(ctx, w.names.Checkpoint, "application/json", bytes.NewReader(data))
	if err != nil {
		metrics.ObserveCheckpoint(false)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	metrics.ObserveCheckpoint(true)
	w.logger.Debug("Checkpoint written", zap.String("uri", uri), zap.Int("records", result.Len()))
	return nil
}

// WriteFinal writes the CSV and JSON outputs. Both are attempted even if
// the first fails.
func (w *Writer) WriteFinal(ctx context.Context, result *crawler.RunResult) error {
	records := result.Records()
	var errs []error

	csvData, err := EncodeCSV(records)
	if err == nil {
		var uri string
		uri, err = w.store.PutObject(ctx, w.names.CSV, "text/csv; charset=utf-8", bytes.NewReader(csvData))
		if err == nil {
			w.logger.Info("Final CSV written", zap.String("uri", uri), zap.Int("records", len(records)))
		}
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("write final csv: %w", err))
	}

	jsonData, err := EncodeJSON(records)
	if err == nil {
		var uri string
		uri, err = w.store.PutObject(ctx, w.names.JSON, "application/json", bytes.NewReader(jsonData))
		if err == nil {
			w.logger.Info("Final JSON written", zap.String("uri", uri), zap.Int("records", len(records)))
		}
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("write final json: %w", err))
	}
	return errors.Join(errs...)
}

// EncodeJSON renders records as an indented UTF-8 JSON array. A nil slice
// encodes as [].
func EncodeJSON(records []crawler.EntityRecord) ([]byte, error) {
	if records == nil {
		records = []crawler.EntityRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeCSV renders records with the Header column order.
func EncodeCSV(records []crawler.EntityRecord) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(Header); err != nil {
		return nil, fmt.Errorf("encode csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Name,
			r.Category,
			r.Subtype,
			r.Tagline,
			strings.Join(r.RelatedNames, ", "),
			r.ShortDescription,
			r.ExtendedBiography,
			r.ExtendedStory,
			r.DetailURL,
			r.BiographyURL,
			r.StoryURL,
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("encode csv row %s: %w", r.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
