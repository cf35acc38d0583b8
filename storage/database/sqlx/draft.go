package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/scheme"
)

const draftColumns = "id, class_id, entries, defaulted, created_at, updated_at"

// draftRow is a scheme_drafts row. Timestamps are unix microseconds; updated_at stays NULL until the first edit.
type draftRow struct {
	ID        string     `db:"id"`
	ClassID   string     `db:"class_id"`
	Entries   string     `db:"entries"` // JSON
	Defaulted bool       `db:"defaulted"`
	CreatedAt int64      `db:"created_at"`
	UpdatedAt null.Int64 `db:"updated_at"`
}

func newDraftRow(d scheme.Draft) (draftRow, error) {
	entries := d.Entries
	if entries == nil {
		entries = []scheme.WeightEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return draftRow{}, errors.Wrap(err, "encoding entries")
	}
	return draftRow{
		ID:        d.ID,
		ClassID:   d.ClassID,
		Entries:   string(data),
		Defaulted: d.Defaulted,
		CreatedAt: d.CreatedAt.UnixMicro(),
		UpdatedAt: null.NewInt64(d.UpdatedAt.UnixMicro(), !d.UpdatedAt.Equal(d.CreatedAt)),
	}, nil
}

func (row draftRow) draft() (scheme.Draft, error) {
	d := scheme.Draft{
		ID:        row.ID,
		ClassID:   row.ClassID,
		Defaulted: row.Defaulted,
		CreatedAt: time.UnixMicro(row.CreatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(row.Entries), &d.Entries); err != nil {
		return scheme.Draft{}, errors.Wrapf(err, "decoding entries of draft %s", row.ID)
	}
	d.UpdatedAt = d.CreatedAt
	if row.UpdatedAt.Valid {
		d.UpdatedAt = time.UnixMicro(row.UpdatedAt.Int64).UTC()
	}
	return d, nil
}

type draftRepository struct {
	db *sqlx.DB
}

var _ scheme.Repository = (*draftRepository)(nil) // interface compliance check

func NewDraftRepository(db *sqlx.DB) scheme.Repository {
	return &draftRepository{db: db}
}

func (repo *draftRepository) CreateDraft(ctx context.Context, draft scheme.Draft) (scheme.Draft, error) {
	row, err := newDraftRow(draft)
	if err != nil {
		return scheme.Draft{}, err
	}
	q := "INSERT INTO scheme_drafts (" + draftColumns + ") " +
		"VALUES (:id, :class_id, :entries, :defaulted, :created_at, :updated_at)"
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return scheme.Draft{}, errors.Wrap(err, "inserting draft")
	}
	return row.draft()
}

func (repo *draftRepository) QueryDrafts(ctx context.Context, filter scheme.QueryFilter, ordering ...core.DBOrdering) ([]scheme.Draft, error) {
	var (
		q    strings.Builder
		args []interface{}
	)
	q.WriteString("SELECT " + draftColumns + " FROM scheme_drafts")
	if filter.ClassID != "" {
		q.WriteString(" WHERE class_id = ?")
		args = append(args, filter.ClassID)
	}

	// ordering fields are whitelisted by CleanOrdering
	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range scheme.CleanOrdering(ordering) {
		if ord.Field == "updated_at" {
			// updated_at is NULL until the first edit
			ord.Field = "COALESCE(updated_at, created_at)"
		}
		orderBy = append(orderBy, ord.String())
	}
	orderBy = append(orderBy, "id ASC")
	q.WriteString(" ORDER BY " + strings.Join(orderBy, ", "))

	var rows []draftRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q.String()), args...); err != nil {
		return nil, errors.Wrap(err, "querying drafts")
	}

	drafts := make([]scheme.Draft, 0, len(rows))
	for _, row := range rows {
		d, err := row.draft()
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func (repo *draftRepository) GetDraftByID(ctx context.Context, id string) (scheme.Draft, error) {
	var row draftRow
	q := repo.db.Rebind("SELECT " + draftColumns + " FROM scheme_drafts WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scheme.Draft{}, scheme.ErrNotFound
		}
		return scheme.Draft{}, errors.Wrap(err, "selecting draft")
	}
	return row.draft()
}

func (repo *draftRepository) UpdateDraft(ctx context.Context, draft scheme.Draft) (scheme.Draft, error) {
	orig, err := repo.GetDraftByID(ctx, draft.ID)
	if err != nil {
		return scheme.Draft{}, err
	}

	// only the editable fields are saved
	orig.Entries = draft.Entries
	orig.UpdatedAt = draft.UpdatedAt
	row, err := newDraftRow(orig)
	if err != nil {
		return scheme.Draft{}, err
	}

	q := "UPDATE scheme_drafts SET entries = :entries, updated_at = :updated_at WHERE id = :id"
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return scheme.Draft{}, errors.Wrap(err, "updating draft")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return scheme.Draft{}, scheme.ErrNotFound
	}
	return row.draft()
}

func (repo *draftRepository) DeleteDraftsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM scheme_drafts WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "deleting drafts")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting drafts")
	}
	return nil
}
