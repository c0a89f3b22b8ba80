package browser

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SnapshotWriter saves the final DOM of every visited page to disk so a run
// can later be replayed offline by the static driver.
type SnapshotWriter struct {
	root   string
	logger *zap.Logger
}

// NewSnapshotWriter returns a writer rooted at root.
func NewSnapshotWriter(root string, logger *zap.Logger) (*SnapshotWriter, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("snapshot dir is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotWriter{root: root, logger: logger}, nil
}

// Save writes html for pageURL and returns the file path.
func (s *SnapshotWriter) Save(ctx context.Context, pageURL, html string) (string, error) {
	if s == nil {
		return "", nil
	}
	if html == "" {
		return "", fmt.Errorf("empty document for %s", pageURL)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	target := SnapshotPath(s.root, pageURL)
	if err := os.WriteFile(target, []byte(html), 0o600); err != nil {
		return "", fmt.Errorf("writing snapshot to %s: %w", target, err)
	}
	s.logger.Debug("Saved page snapshot", zap.String("url", pageURL), zap.String("path", target))
	return target, nil
}

// SnapshotPath is the file a snapshot of pageURL lives at under root.
func SnapshotPath(root, pageURL string) string {
	return filepath.Join(root, safeBasename(pageURL)+".html")
}

func safeBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return hashURL(raw)
	}
	host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
	p := strings.Trim(u.EscapedPath(), "/")
	if p == "" {
		p = "root"
	}
	p = invalidFilenameChars.ReplaceAllString(p, "_")
	return fmt.Sprintf("%s_%s_%s", host, p, hashURL(raw)[:16])
}

func hashURL(raw string) string {
	sum := sha1.Sum([]byte(raw)) // #nosec G401 -- file naming only
	return hex.EncodeToString(sum[:])
}
