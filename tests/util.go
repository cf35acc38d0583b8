package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/scheme"
	"github.com/trezcool/masomo-grading/storage/database"
)

// OpenDB opens a migrated in-memory sqlite database, closed when the test ends.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := &core.Config{Database: core.DatabaseConfig{Engine: database.EngineSQLite, DSN: "file::memory:"}}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

func CreateDraft(
	t *testing.T,
	repo scheme.Repository,
	classID string,
	entries []scheme.WeightEntry,
	createdAt ...time.Time,
) scheme.Draft {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if entries == nil {
		entries = scheme.Defaults(core.DefaultAssessments)
	}
	draft, err := repo.CreateDraft(context.Background(), scheme.Draft{
		ID:        uuid.NewString(),
		ClassID:   classID,
		Entries:   entries,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateDraft() failed: %v", err)
	}
	return draft
}
