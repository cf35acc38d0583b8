package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo-grading/apps/api/echo"
	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/scheme"
	"github.com/trezcool/masomo-grading/services/gradebook"
	"github.com/trezcool/masomo-grading/tests"
)

func schemePath(parts ...string) string {
	p := "/v1/schemes"
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func decodeView(t *testing.T, data []byte) scheme.DraftView {
	var view scheme.DraftView
	require.NoError(t, json.Unmarshal(data, &view))
	return view
}

func Test_home(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo Grading API!", rec.Body.String())
}

func Test_schemeApi_open(t *testing.T) {
	resetDB(t)
	third := 100.0 / 3
	defaults := []scheme.WeightEntry{{Name: "Quizzes", Weight: third}, {Name: "Midterm Exam", Weight: third}, {Name: "Final Exam", Weight: third}}

	tests := []struct {
		name          string
		body          string
		wantCode      int
		wantEntries   []scheme.WeightEntry
		wantDefaulted bool
		wantErr       map[string]string
	}{
		{name: "class required", body: `{}`, wantCode: http.StatusBadRequest, wantErr: map[string]string{"class_id": "this field is required"}},
		{name: "blank class", body: `{"class_id":"  "}`, wantCode: http.StatusBadRequest, wantErr: map[string]string{"class_id": "this field is required"}},
		{
			name: "blank assessment", body: `{"class_id":"6A","assessments":["Labs"," "]}`,
			wantCode: http.StatusBadRequest, wantErr: map[string]string{"assessments[1]": "this field cannot be blank"},
		},
		{name: "defaults", body: `{"class_id":"6A"}`, wantCode: http.StatusCreated, wantEntries: defaults, wantDefaulted: true},
		{
			name: "custom assessments", body: `{"class_id":"6A","assessments":["Labs","Exam"]}`,
			wantCode: http.StatusCreated, wantEntries: []scheme.WeightEntry{{Name: "Labs", Weight: 50}, {Name: "Exam", Weight: 50}}, wantDefaulted: true,
		},
		{
			name: "initial data", body: `{"class_id":"6A","initial_data":"[{\"name\":\"Quiz\",\"weight\":30},{\"name\":\"Exam\",\"weight\":70}]"}`,
			wantCode: http.StatusCreated, wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 30}, {Name: "Exam", Weight: 70}},
		},
		{
			name: "malformed initial data", body: `{"class_id":"6A","initial_data":"not valid json"}`,
			wantCode: http.StatusCreated, wantEntries: defaults, wantDefaulted: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, schemePath(), []byte(tt.body))
			app.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantErr != nil {
				assert.JSONEq(t, string(marshalObj(t, tt.wantErr)), rec.Body.String())
				return
			}
			view := decodeView(t, rec.Body.Bytes())
			assert.NotEmpty(t, view.ID)
			assert.Equal(t, "6A", view.ClassID)
			assert.Equal(t, tt.wantEntries, view.Entries)
			assert.Equal(t, tt.wantDefaulted, view.Defaulted)
			assert.InDelta(t, 100, view.Total, scheme.SumTolerance)

			stored, err := draftRepo.GetDraftByID(ctxBg, view.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEntries, stored.Entries)
		})
	}
}

func Test_schemeApi_query(t *testing.T) {
	resetDB(t)

	path := func(classID, ordering string) string {
		v := make(url.Values)
		if classID != "" {
			v.Add("class_id", classID)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		return schemePath() + "?" + v.Encode()
	}

	now := time.Now()
	d1 := testutil.CreateDraft(t, draftRepo, "6B", nil, now.Add(1*time.Hour))
	d2 := testutil.CreateDraft(t, draftRepo, "6A", nil, now.Add(2*time.Hour))
	d3 := testutil.CreateDraft(t, draftRepo, "6A", []scheme.WeightEntry{{Name: "Quiz", Weight: 40}}, now.Add(3*time.Hour))

	tests := []httpTest{
		{name: "Get all", path: schemePath(), wantData: marshalViews(t, d3, d2, d1)},
		{name: "class_id (unknown)", path: path("7C", ""), wantData: []byte(`[]`)},
		{name: "class_id", path: path(" 6A ", ""), wantData: marshalViews(t, d3, d2)},
		{name: "order by created_at", path: path("", "created_at"), wantData: marshalViews(t, d1, d2, d3)},
		{name: "order by class_id,-created_at", path: path("", "class_id,-created_at"), wantData: marshalViews(t, d3, d2, d1)},
		{name: "class_id & ordering", path: path("6A", "created_at"), wantData: marshalViews(t, d2, d3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}

func Test_schemeApi_retrieve(t *testing.T) {
	resetDB(t)
	draft := testutil.CreateDraft(t, draftRepo, "6A", []scheme.WeightEntry{{Name: "Quiz", Weight: 40}, {Name: "Exam", Weight: 40}})

	tests := []httpTest{
		{name: "unknown", path: schemePath("unknown"), wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound)},
		{name: "found", path: schemePath(draft.ID), wantData: marshalObj(t, scheme.NewDraftView(draft))},
		{name: "total", path: schemePath(draft.ID, "total"), wantData: marshalObj(t, TotalResponse{Total: 80})},
		{name: "total (unknown)", path: schemePath("unknown", "total"), wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound)},
		{
			name:     "persistable",
			path:     schemePath(draft.ID, "persistable"),
			wantData: []byte(`{"schemes":[{"name":"Quiz","weight":50},{"name":"Exam","weight":50}]}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}

	// previews do not touch the draft
	stored, err := draftRepo.GetDraftByID(ctxBg, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft, stored)
}

func Test_schemeApi_entries(t *testing.T) {
	resetDB(t)
	draft := testutil.CreateDraft(t, draftRepo, "6A", []scheme.WeightEntry{{Name: "Quiz", Weight: 40}, {Name: "Exam", Weight: 60}})
	single := testutil.CreateDraft(t, draftRepo, "6B", []scheme.WeightEntry{{Name: "Exam", Weight: 100}})

	entries := func(t *testing.T, id string) []scheme.WeightEntry {
		d, err := draftRepo.GetDraftByID(ctxBg, id)
		require.NoError(t, err)
		return d.Entries
	}
	fieldErr := func(field string, err error) []byte {
		return marshalObj(t, map[string]string{field: err.Error()})
	}

	tests := []struct {
		httpTest
		wantEntries []scheme.WeightEntry
	}{
		{
			httpTest:    httpTest{name: "add", method: http.MethodPost, path: schemePath(draft.ID, "entries")},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 40}, {Name: "Exam", Weight: 60}, {}},
		},
		{
			httpTest: httpTest{
				name: "rename new entry", method: http.MethodPatch, path: schemePath(draft.ID, "entries", "2"),
				body: []byte(`{"field":"name","value":"Homework"}`),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 40}, {Name: "Exam", Weight: 60}, {Name: "Homework"}},
		},
		{
			httpTest: httpTest{
				name: "weigh new entry", method: http.MethodPatch, path: schemePath(draft.ID, "entries", "2"),
				body: []byte(`{"field":"Weight","value":"25"}`),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 40}, {Name: "Exam", Weight: 60}, {Name: "Homework", Weight: 25}},
		},
		{
			httpTest: httpTest{
				name: "numeric value", method: http.MethodPatch, path: schemePath(draft.ID, "entries", "0"),
				body: []byte(`{"field":"weight","value":15}`),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 15}, {Name: "Exam", Weight: 60}, {Name: "Homework", Weight: 25}},
		},
		{
			httpTest: httpTest{
				name: "invalid weight", method: http.MethodPatch, path: schemePath(draft.ID, "entries", "0"),
				body: []byte(`{"field":"weight","value":"abc"}`), wantCode: http.StatusBadRequest, wantData: fieldErr("value", scheme.ErrInvalidWeight),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 15}, {Name: "Exam", Weight: 60}, {Name: "Homework", Weight: 25}},
		},
		{
			httpTest: httpTest{
				name: "unknown field", method: http.MethodPatch, path: schemePath(draft.ID, "entries", "0"),
				body: []byte(`{"field":"points","value":"1"}`), wantCode: http.StatusBadRequest,
				wantData: marshalObj(t, map[string]string{"field": `must be one of "name" or "weight"`}),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 15}, {Name: "Exam", Weight: 60}, {Name: "Homework", Weight: 25}},
		},
		{
			httpTest: httpTest{
				name: "index not an integer", method: http.MethodPatch, path: schemePath(draft.ID, "entries", "first"),
				body: []byte(`{"field":"name","value":"X"}`), wantCode: http.StatusBadRequest,
				wantData: marshalObj(t, map[string]string{"index": "must be an integer"}),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 15}, {Name: "Exam", Weight: 60}, {Name: "Homework", Weight: 25}},
		},
		{
			httpTest: httpTest{
				name: "index out of range", method: http.MethodPatch, path: schemePath(draft.ID, "entries", "3"),
				body: []byte(`{"field":"name","value":"X"}`), wantCode: http.StatusBadRequest, wantData: fieldErr("index", scheme.ErrIndexOutOfRange),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 15}, {Name: "Exam", Weight: 60}, {Name: "Homework", Weight: 25}},
		},
		{
			httpTest: httpTest{
				name: "remove", method: http.MethodDelete, path: schemePath(draft.ID, "entries", "1"),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 15}, {Name: "Homework", Weight: 25}},
		},
		{
			httpTest: httpTest{
				name: "remove out of range", method: http.MethodDelete, path: schemePath(draft.ID, "entries", "-1"),
				wantCode: http.StatusBadRequest, wantData: fieldErr("index", scheme.ErrIndexOutOfRange),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 15}, {Name: "Homework", Weight: 25}},
		},
		{
			httpTest: httpTest{
				name: "unknown draft", method: http.MethodPost, path: schemePath("unknown", "entries"),
				wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound),
			},
			wantEntries: []scheme.WeightEntry{{Name: "Quiz", Weight: 15}, {Name: "Homework", Weight: 25}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.httpTest)
			checkCodeAndData(t, tt.httpTest, rec)
			if rec.Code == http.StatusOK {
				assert.Equal(t, tt.wantEntries, decodeView(t, rec.Body.Bytes()).Entries)
			}
			assert.Equal(t, tt.wantEntries, entries(t, draft.ID))
		})
	}

	t.Run("last entry is kept", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodDelete, path: schemePath(single.ID, "entries", "0"),
			wantCode: http.StatusBadRequest, wantData: fieldErr("index", scheme.ErrLastEntry),
		}
		checkCodeAndData(t, tt, serve(app, tt))
		assert.Equal(t, []scheme.WeightEntry{{Name: "Exam", Weight: 100}}, entries(t, single.ID))
	})
}

func Test_schemeApi_save(t *testing.T) {
	resetDB(t)
	draft := testutil.CreateDraft(t, draftRepo, "6A", []scheme.WeightEntry{{Name: "Quiz", Weight: 1}, {Name: "Exam", Weight: 3}})
	zero := testutil.CreateDraft(t, draftRepo, "6B", []scheme.WeightEntry{{Name: "Quiz"}, {Name: "Exam"}})
	want := scheme.Persistable{Schemes: []scheme.WeightEntry{{Name: "Quiz", Weight: 25}, {Name: "Exam", Weight: 75}}}

	tests := []httpTest{
		{
			name: "zero total", method: http.MethodPost, path: schemePath(zero.ID, "save"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"schemes": scheme.ErrZeroTotal.Error()}),
		},
		{
			name: "unknown", method: http.MethodPost, path: schemePath("unknown", "save"),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound),
		},
		{name: "saved", method: http.MethodPost, path: schemePath(draft.ID, "save"), token: "token", wantData: marshalObj(t, want)},
		{
			name: "saved drafts are forgotten", method: http.MethodPost, path: schemePath(draft.ID, "save"),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}

	assert.Equal(t, []gradebooksvc.SavedScheme{{ClassID: "6A", Scheme: want}}, saver.Saved())
	_, err := draftRepo.GetDraftByID(ctxBg, zero.ID)
	assert.NoError(t, err, "drafts that fail to save are kept")
}

// failingSaver is a gradebook that refuses every scheme.
type failingSaver struct{}

func (failingSaver) SaveScheme(context.Context, core.Session, string, scheme.Persistable) error {
	return &gradebooksvc.StatusError{Op: "save scheme", StatusCode: http.StatusServiceUnavailable, Status: "503 Service Unavailable"}
}

func Test_schemeApi_save_gradebookDown(t *testing.T) {
	resetDB(t)
	draft := testutil.CreateDraft(t, draftRepo, "6A", []scheme.WeightEntry{{Name: "Quiz", Weight: 100}})

	downDeps := deps
	downDeps.SchemeSvc = scheme.NewService(draftRepo, failingSaver{}, deps.Logger, deps.Validate)
	srv := NewServer(downDeps)

	tt := httpTest{
		method: http.MethodPost, path: schemePath(draft.ID, "save"),
		wantCode: http.StatusBadGateway, wantData: marshalObj(t, httpErr{Error: "gradebook: save scheme: 503 Service Unavailable"}),
	}
	checkCodeAndData(t, tt, serve(srv, tt))

	stored, err := draftRepo.GetDraftByID(ctxBg, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft, stored)
}

func Test_schemeApi_discard(t *testing.T) {
	resetDB(t)
	draft := testutil.CreateDraft(t, draftRepo, "6A", nil)

	tests := []httpTest{
		{name: "discard", method: http.MethodDelete, path: schemePath(draft.ID), wantCode: http.StatusNoContent},
		{name: "already discarded", method: http.MethodDelete, path: schemePath(draft.ID), wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound)},
		{name: "gone", path: schemePath(draft.ID), wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}
