package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/scheme"
)

type draftRepository struct {
	db *draftTable
}

var _ scheme.Repository = (*draftRepository)(nil) // interface compliance check

func NewDraftRepository(db *DB) scheme.Repository {
	return &draftRepository{db: db.draft}
}

func (repo *draftRepository) query() []scheme.Draft {
	drafts := make([]scheme.Draft, 0, len(repo.db.table))
	for _, d := range repo.db.table {
		drafts = append(drafts, clone(*d))
	}
	return drafts
}

func (repo *draftRepository) CreateDraft(_ context.Context, draft scheme.Draft) (scheme.Draft, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	draft = clone(draft)
	repo.db.table[draft.ID] = &draft
	return clone(draft), nil
}

func (repo *draftRepository) QueryDrafts(_ context.Context, filter scheme.QueryFilter, ordering ...core.DBOrdering) ([]scheme.Draft, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	drafts := repo.query()

	if filter.ClassID != "" {
		filtered := make([]scheme.Draft, 0, len(drafts))
		for _, d := range drafts {
			if d.ClassID == filter.ClassID {
				filtered = append(filtered, d)
			}
		}
		drafts = filtered
	}

	// map iteration is random: ID breaks ties so that results are stable
	ordering = scheme.CleanOrdering(ordering)
	sort.Slice(drafts, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compare(drafts[i], drafts[j], ord.Field); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return drafts[i].ID < drafts[j].ID
	})
	return drafts, nil
}

func (repo *draftRepository) GetDraftByID(_ context.Context, id string) (scheme.Draft, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.table[id]; ok {
		return clone(*d), nil
	}
	return scheme.Draft{}, scheme.ErrNotFound
}

func (repo *draftRepository) UpdateDraft(_ context.Context, draft scheme.Draft) (scheme.Draft, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only the editable fields are saved
	origDraft, ok := repo.db.table[draft.ID]
	if !ok {
		return scheme.Draft{}, scheme.ErrNotFound
	}
	origDraft.Entries = clone(draft).Entries
	origDraft.UpdatedAt = draft.UpdatedAt

	return clone(*origDraft), nil
}

func (repo *draftRepository) DeleteDraftsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

// clone copies the entries of a draft, so that callers never share them with the table.
func clone(d scheme.Draft) scheme.Draft {
	d.Entries = append(make([]scheme.WeightEntry, 0, len(d.Entries)), d.Entries...)
	return d
}

func compare(a, b scheme.Draft, field string) int {
	switch field {
	case "class_id":
		return strings.Compare(a.ClassID, b.ClassID)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
