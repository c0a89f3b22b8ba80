package telemetry

import (
	"fmt"
	"io"
	"os"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ExporterOptions selects where finished spans go.
type ExporterOptions struct {
	// Kind is "none", "stdout" or "gcp". Empty means none.
	Kind      string
	ProjectID string
	// Writer receives stdout spans; defaults to os.Stdout.
	Writer io.Writer
}

// NewExporter builds the span exporter for opts. It returns nil for "none".
func NewExporter(opts ExporterOptions) (sdktrace.SpanExporter, error) {
	switch opts.Kind {
	case "", "none":
		return nil, nil
	case "stdout":
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		return exp, nil
	case "gcp":
		if opts.ProjectID == "" {
			return nil, fmt.Errorf("project id is required for the gcp exporter")
		}
		exp, err := texporter.New(texporter.WithProjectID(opts.ProjectID))
		if err != nil {
			return nil, fmt.Errorf("failed to create google trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", opts.Kind)
	}
}
