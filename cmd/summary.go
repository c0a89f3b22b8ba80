package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/JakeFAU/lore-crawler/internal/config"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/orchestrator"
)

var (
	colorMuted  = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#666666"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#0066cc", Dark: "#66b3ff"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#cc6600", Dark: "#ffb366"}
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// renderSummary draws the end-of-run report.
func renderSummary(s orchestrator.Summary, cfg config.Config) string {
	status := "complete"
	switch {
	case s.Interrupted:
		status = "interrupted"
	case !s.FinalSaved:
		status = "not saved"
	}

	rows := [][]string{
		{"Run", s.RunID},
		{"Status", status},
		{"Catalog", strconv.Itoa(s.CatalogSize)},
		{"Recorded", strconv.Itoa(s.Recorded)},
		{"Detail fallbacks", strconv.Itoa(s.StageFailures[crawler.StageDetail])},
		{"Biography fallbacks", strconv.Itoa(s.StageFailures[crawler.StageBiography])},
		{"Story fallbacks", strconv.Itoa(s.StageFailures[crawler.StageStory])},
		{"Checkpoint failures", strconv.Itoa(s.CheckpointFailures)},
		{"Duration", s.Duration().Round(time.Second).String()},
		{"Output", outputLocation(cfg)},
	}

	return table.New().
		Headers("Crawl", "Result").
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1)
			if col == 0 {
				return style.Bold(true).Foreground(colorAccent)
			}
			if row == 1 && status != "complete" {
				return style.Foreground(colorWarn)
			}
			return style
		}).
		String()
}

func outputLocation(cfg config.Config) string {
	if cfg.Output.Backend == config.BackendGCS {
		return fmt.Sprintf("gs://%s/%s", cfg.Output.Bucket, cfg.Output.Prefix)
	}
	return cfg.Output.Dir
}
