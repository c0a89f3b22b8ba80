package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/storage/memory"
)

func twoRecords() *crawler.RunResult {
	var result crawler.RunResult
	jinx := crawler.NewEntityRecord(crawler.CatalogEntry{Name: "JINX", Category: "Zaun", DetailURL: "https://x/champion/jinx/"})
	jinx.Subtype = "Human"
	jinx.Tagline = `"Rules are made to be broken."`
	jinx.RelatedNames = []string{"Vi", "Silco"}
	jinx.ExtendedBiography = "A\n\nB"
	jinx.BiographyURL = "https://x/story/champion/jinx/"
	result.Append(jinx)
	result.Append(crawler.NewEntityRecord(crawler.CatalogEntry{Name: "VI", DetailURL: "https://x/champion/vi/"}))
	return &result
}

func TestWriteFinalProducesCSVAndJSON(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w, err := NewWriter(store, Names{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.WriteFinal(context.Background(), twoRecords()))

	csvData, ok := store.Object("lol_champions_data.csv")
	require.True(t, ok)
	rows, err := csv.NewReader(bytes.NewReader(csvData)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, Header, rows[0])
	for _, row := range rows {
		require.Len(t, row, 11)
	}
	require.Equal(t, "JINX", rows[1][0])
	require.Equal(t, "Vi, Silco", rows[1][4])
	require.Equal(t, "A\n\nB", rows[1][6])
	require.Equal(t, "https://x/story/champion/jinx/", rows[1][9])
	require.Equal(t, "", rows[2][4])

	jsonData, ok := store.Object("lol_champions_data.json")
	require.True(t, ok)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(jsonData, &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "JINX", decoded[0]["name"])
	require.Equal(t, "VI", decoded[1]["name"])
	require.Equal(t, []any{}, decoded[1]["relatedNames"])
	require.Contains(t, decoded[1], "storyUrl")
	require.Contains(t, decoded[1], "role")

	_, ok = store.Object("progress_champions_data.json")
	require.False(t, ok)
}

func TestWriteCheckpointOverwrites(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w, err := NewWriter(store, Names{Checkpoint: "progress.json"}, nil)
	require.NoError(t, err)

	var result crawler.RunResult
	ctx := context.Background()
	for i, name := range []string{"A", "B", "C"} {
		result.Append(crawler.NewEntityRecord(crawler.CatalogEntry{Name: name}))
		require.NoError(t, w.WriteCheckpoint(ctx, &result))

		data, ok := store.Object("progress.json")
		require.True(t, ok)
		var decoded []crawler.EntityRecord
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Len(t, decoded, i+1)
	}
	require.Equal(t, 3, store.Writes("progress.json"))
}

func TestEncodeJSONEmpty(t *testing.T) {
	t.Parallel()
	data, err := EncodeJSON(nil)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))
}

func TestEncodeJSONKeepsMarkup(t *testing.T) {
	t.Parallel()
	data, err := EncodeJSON([]crawler.EntityRecord{{Name: "A&B <C>", RelatedNames: []string{}}})
	require.NoError(t, err)
	require.Contains(t, string(data), "A&B <C>")
}

func TestNewWriterRejectsCollidingNames(t *testing.T) {
	t.Parallel()
	_, err := NewWriter(memory.NewBlobStore(), Names{Checkpoint: "out.json", JSON: "out.json"}, nil)
	require.Error(t, err)
	_, err = NewWriter(nil, Names{}, nil)
	require.Error(t, err)
}

type failingBlobStore struct{ fail string }

func (f failingBlobStore) PutObject(_ context.Context, path, _ string, _ io.Reader) (string, error) {
	if path == f.fail {
		return "", errors.New("disk full")
	}
	return "memory://" + path, nil
}

func TestWriteFinalAttemptsBothOutputs(t *testing.T) {
	t.Parallel()

	w, err := NewWriter(failingBlobStore{fail: "lol_champions_data.csv"}, Names{}, nil)
	require.NoError(t, err)

	err = w.WriteFinal(context.Background(), twoRecords())
	require.ErrorContains(t, err, "write final csv")
	require.NotContains(t, err.Error(), "write final json")
}

func TestWriteCheckpointError(t *testing.T) {
	t.Parallel()

	w, err := NewWriter(failingBlobStore{fail: "progress_champions_data.json"}, Names{}, nil)
	require.NoError(t, err)
	require.ErrorContains(t, w.WriteCheckpoint(context.Background(), twoRecords()), "write checkpoint")
}
