package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Unix(1700000000, 0).UTC()

func sampleResult() *crawler.RunResult {
	var result crawler.RunResult
	jinx := crawler.NewEntityRecord(crawler.CatalogEntry{Name: "JINX", Category: "Zaun", DetailURL: "https://x/champion/jinx/"})
	jinx.RelatedNames = []string{"Vi", "Silco"}
	result.Append(jinx)
	result.Append(crawler.NewEntityRecord(crawler.CatalogEntry{Name: "VI", DetailURL: "https://x/champion/vi/"}))
	return &result
}

func expectUpsert(mock pgxmock.PgxPoolIface, position int, rec crawler.EntityRecord) *pgxmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO lore_entities").
		WithArgs(
			"run-1",
			position,
			rec.Name,
			rec.Category,
			rec.DetailURL,
			rec.Role,
			rec.Subtype,
			rec.Tagline,
			rec.ShortDescription,
			rec.RelatedNames,
			rec.BiographyURL,
			rec.StoryURL,
			rec.ExtendedBiography,
			rec.ExtendedStory,
			testNow,
		)
}

func TestWriteCheckpointUpsertsNewestRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "run-1", fixedClock{testNow})
	require.NoError(t, err)

	result := sampleResult()
	expectUpsert(mock, 1, result.Records()[1]).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.WriteCheckpoint(context.Background(), result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteCheckpointEmptyResultIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "run-1", fixedClock{testNow})
	require.NoError(t, err)
	require.NoError(t, store.WriteCheckpoint(context.Background(), &crawler.RunResult{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteFinalUpsertsAllInOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "lore_entities", "run-1", fixedClock{testNow})
	require.NoError(t, err)

	result := sampleResult()
	for i, rec := range result.Records() {
		expectUpsert(mock, i, rec).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.WriteFinal(context.Background(), result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteFinalStopsOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "run-1", fixedClock{testNow})
	require.NoError(t, err)

	result := sampleResult()
	expectUpsert(mock, 0, result.Records()[0]).WillReturnError(errors.New("connection reset"))

	err = store.WriteFinal(context.Background(), result)
	require.ErrorContains(t, err, "upsert entity JINX")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecordStoreWithPoolValidates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreWithPool(nil, "", "run-1", fixedClock{})
	require.Error(t, err)
	_, err = NewRecordStoreWithPool(mock, "bad-name;", "run-1", fixedClock{})
	require.ErrorContains(t, err, "invalid table name")
	_, err = NewRecordStoreWithPool(mock, "", "", fixedClock{})
	require.Error(t, err)
	_, err = NewRecordStoreWithPool(mock, "", "run-1", nil)
	require.Error(t, err)
}

func TestNewRecordStoreRequiresDSN(t *testing.T) {
	t.Parallel()
	_, err := NewRecordStore(context.Background(), Config{}, "run-1", fixedClock{})
	require.ErrorContains(t, err, "postgres.dsn")
}

func TestPingReportsUnreachableDatabase(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	store, err := NewRecordStoreWithPool(mock, "", "run-1", fixedClock{t: testNow})
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = store.Ping(context.Background())
	require.ErrorContains(t, err, "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaCreatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "lore_runs", "run-1", fixedClock{t: testNow})
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS lore_runs").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS lore_runs").
		WillReturnError(errors.New("permission denied"))
	require.ErrorContains(t, store.EnsureSchema(context.Background()), "create table lore_runs")
	require.NoError(t, mock.ExpectationsWereMet())
}
