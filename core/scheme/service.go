package scheme

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound  = errors.New("draft not found")
	ErrLastEntry = errors.New("a scheme must keep at least one entry")
	ErrZeroTotal = errors.New("total weight must not be 0")
)

type (
	Repository interface {
		CreateDraft(ctx context.Context, draft Draft) (Draft, error)
		// QueryDrafts applies AND operation on available QueryFilter fields.
		QueryDrafts(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Draft, error)
		GetDraftByID(ctx context.Context, id string) (Draft, error)
		UpdateDraft(ctx context.Context, draft Draft) (Draft, error)
		DeleteDraftsByID(ctx context.Context, ids ...string) error
	}

	// Saver persists a normalized scheme for a class. It owns retries and error handling of the save.
	Saver interface {
		SaveScheme(ctx context.Context, sess core.Session, classID string, p Persistable) error
	}

	// Loader fetches the serialized scheme saved for a class; "" when there is none.
	Loader interface {
		FetchScheme(ctx context.Context, sess core.Session, classID string) (string, error)
	}

	Service interface {
		Open(ctx context.Context, sess core.Session, nd NewDraft) (Draft, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Draft, error)
		Get(ctx context.Context, id string) (Draft, error)
		AddEntry(ctx context.Context, id string) (Draft, error)
		RemoveEntry(ctx context.Context, id string, index int) (Draft, error)
		UpdateEntry(ctx context.Context, id string, index int, ue UpdateEntry) (Draft, error)
		Preview(ctx context.Context, id string) (Persistable, error)
		Save(ctx context.Context, sess core.Session, id string) (Persistable, error)
		Discard(ctx context.Context, id string) error
	}

	service struct {
		repo        Repository
		saver       Saver
		loader      Loader
		logger      core.Logger
		validate    *validator.Validate
		assessments []string
	}

	Option func(*service)
)

var _ Service = (*service)(nil)

// WithLoader makes Open fetch the saved scheme of a class when no initial data is given.
func WithLoader(l Loader) Option { return func(svc *service) { svc.loader = l } }

// WithAssessments overrides the default assessment names. An empty list keeps the current ones.
func WithAssessments(names ...string) Option {
	return func(svc *service) {
		if len(names) > 0 {
			svc.assessments = names
		}
	}
}

func NewService(repo Repository, saver Saver, logger core.Logger, validate *validator.Validate, opts ...Option) Service {
	svc := &service{
		repo:        repo,
		saver:       saver,
		logger:      logger,
		validate:    validate,
		assessments: core.DefaultAssessments,
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

func (svc *service) Open(ctx context.Context, sess core.Session, nd NewDraft) (Draft, error) {
	initialData := nd.InitialData
	if initialData == "" && svc.loader != nil {
		data, err := svc.loader.FetchScheme(ctx, sess, nd.ClassID)
		if err != nil {
			return Draft{}, errors.Wrap(err, "fetching saved scheme")
		}
		initialData = data
	}

	names := nd.Assessments
	if len(names) == 0 {
		names = svc.assessments
	}
	s := Initialize(initialData, names)
	if s.Defaulted() && core.CleanString(initialData) != "" {
		_, err := Parse(initialData)
		svc.logger.Warn("malformed initial scheme, using defaults", map[string]interface{}{"class_id": nd.ClassID}, err, sess)
	}

	now := nowFunc().UTC()
	draft := Draft{
		ID:        uuid.NewString(),
		ClassID:   nd.ClassID,
		Entries:   s.Entries(),
		Defaulted: s.Defaulted(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateDraft(ctx, draft)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Draft, error) {
	return svc.repo.QueryDrafts(ctx, filter, ordering...)
}

func (svc *service) Get(ctx context.Context, id string) (Draft, error) {
	return svc.repo.GetDraftByID(ctx, id)
}

func (svc *service) AddEntry(ctx context.Context, id string) (Draft, error) {
	return svc.edit(ctx, id, func(s *Scheme) error {
		s.AddEntry()
		return nil
	})
}

func (svc *service) RemoveEntry(ctx context.Context, id string, index int) (Draft, error) {
	return svc.edit(ctx, id, func(s *Scheme) error {
		if s.Len() <= 1 {
			return core.NewValidationError(ErrLastEntry, core.FieldError{Field: "index", Error: ErrLastEntry.Error()})
		}
		return entryError(s.RemoveEntry(index))
	})
}

func (svc *service) UpdateEntry(ctx context.Context, id string, index int, ue UpdateEntry) (Draft, error) {
	return svc.edit(ctx, id, func(s *Scheme) error {
		return entryError(s.UpdateEntry(index, ue.Field, ue.Value.String()))
	})
}

func (svc *service) Preview(ctx context.Context, id string) (Persistable, error) {
	draft, err := svc.repo.GetDraftByID(ctx, id)
	if err != nil {
		return Persistable{}, errors.Wrap(err, "finding draft by ID")
	}
	return draft.Scheme().ToPersistable(), nil
}

// Save hands the normalized draft off to the Saver, then forgets the draft.
// The draft is kept when the hand-off fails so that it can be saved again.
func (svc *service) Save(ctx context.Context, sess core.Session, id string) (Persistable, error) {
	draft, err := svc.repo.GetDraftByID(ctx, id)
	if err != nil {
		return Persistable{}, errors.Wrap(err, "finding draft by ID")
	}

	s := draft.Scheme()
	if s.Total() == 0 {
		return Persistable{}, core.NewValidationError(ErrZeroTotal, core.FieldError{Field: "schemes", Error: ErrZeroTotal.Error()})
	}
	p := s.ToPersistable()
	if err = p.Validate(svc.validate); err != nil {
		return Persistable{}, err
	}

	if err = svc.saver.SaveScheme(ctx, sess, draft.ClassID, p); err != nil {
		return Persistable{}, errors.Wrap(err, "handing scheme off")
	}
	svc.logger.Info("grading scheme saved", map[string]interface{}{"class_id": draft.ClassID, "draft_id": draft.ID}, sess)

	if err = svc.repo.DeleteDraftsByID(ctx, draft.ID); err != nil {
		svc.logger.Error("deleting saved draft", errors.Wrap(err, "deleting draft"), map[string]interface{}{"draft_id": draft.ID})
	}
	return p, nil
}

func (svc *service) Discard(ctx context.Context, id string) error {
	if _, err := svc.repo.GetDraftByID(ctx, id); err != nil {
		return errors.Wrap(err, "finding draft by ID")
	}
	return svc.repo.DeleteDraftsByID(ctx, id)
}

// edit applies fn to the scheme of a draft and stores the result. Last write wins.
func (svc *service) edit(ctx context.Context, id string, fn func(s *Scheme) error) (Draft, error) {
	draft, err := svc.repo.GetDraftByID(ctx, id)
	if err != nil {
		return Draft{}, errors.Wrap(err, "finding draft by ID")
	}
	s := draft.Scheme()
	if err = fn(s); err != nil {
		return Draft{}, err
	}
	draft.Entries = s.Entries()
	draft.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateDraft(ctx, draft)
}

// entryError turns the errors of Scheme edits into validation errors.
func entryError(err error) error {
	var field string
	switch err {
	case nil:
		return nil
	case ErrIndexOutOfRange:
		field = "index"
	case ErrUnknownField:
		field = "field"
	case ErrInvalidWeight:
		field = "value"
	default:
		return err
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}
