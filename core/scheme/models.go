package scheme

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-grading/core"
)

// Entry fields
const (
	FieldName   Field = "name"
	FieldWeight Field = "weight"
)

var Fields = []Field{FieldName, FieldWeight}

// Field names an editable attribute of a WeightEntry.
type Field string

// WeightEntry is one assessment category and its share of the final grade, in percent.
type WeightEntry struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight" validate:"finite"`
}

// Persistable is the payload handed to the gradebook on save.
type Persistable struct {
	Schemes []WeightEntry `json:"schemes" yaml:"schemes" validate:"required,min=1,dive"`
}

func (p Persistable) Validate(validate *validator.Validate) error { return validate.Struct(p) }

// Draft is a scheme being edited for a class. It lives until it is saved or discarded.
type Draft struct {
	ID        string        `json:"id"`
	ClassID   string        `json:"class_id"`
	Entries   []WeightEntry `json:"entries"`
	Defaulted bool          `json:"defaulted"`
	CreatedAt time.Time     `json:"created_at"` // UTC
	UpdatedAt time.Time     `json:"updated_at"` // UTC
}

func (d Draft) Scheme() *Scheme { return New(d.Entries...) }

func (d Draft) Total() float64 { return Total(d.Entries) }

// DraftView is a Draft along with its live total weight.
type DraftView struct {
	Draft
	Total float64 `json:"total"`
}

func NewDraftView(d Draft) DraftView {
	return DraftView{Draft: d, Total: d.Total()}
}

// NewDraft contains information needed to open a new Draft.
type NewDraft struct {
	ClassID     string   `json:"class_id" validate:"required,notblank"`
	InitialData string   `json:"initial_data"` // serialized scheme; fetched from the gradebook when empty
	Assessments []string `json:"assessments" validate:"omitempty,dive,notblank"`
}

func (nd *NewDraft) Validate(validate *validator.Validate) error {
	nd.ClassID = core.CleanString(nd.ClassID)
	for i, a := range nd.Assessments {
		nd.Assessments[i] = core.CleanString(a)
	}
	return validate.Struct(nd)
}

// UpdateEntry defines what may be provided to modify an entry of a Draft.
type UpdateEntry struct {
	Field Field      `json:"field" validate:"required,schemefield"`
	Value EntryValue `json:"value"`
}

func (ue *UpdateEntry) Validate(validate *validator.Validate) error {
	ue.Field = Field(core.CleanString(string(ue.Field), true /* lower */))
	return validate.Struct(ue)
}

// EntryValue is a form value. It accepts JSON strings and numbers alike.
type EntryValue string

func (v *EntryValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = EntryValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = EntryValue(n.String())
	return nil
}

func (v EntryValue) String() string { return string(v) }

type QueryFilter struct {
	ClassID string `query:"class_id"`
}

func (qf *QueryFilter) IsEmpty() bool { return qf.ClassID == "" }

func (qf *QueryFilter) Clean() {
	qf.ClassID = core.CleanString(qf.ClassID)
}

// OrderingFields are the Draft fields query results may be ordered by.
var OrderingFields = []string{"class_id", "created_at", "updated_at"}

// DefaultOrdering lists the most recently opened drafts first.
var DefaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}

// CleanOrdering drops orderings on unknown fields and falls back to DefaultOrdering.
func CleanOrdering(ordering []core.DBOrdering) []core.DBOrdering {
	cleaned := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		for _, f := range OrderingFields {
			if ord.Field == f {
				cleaned = append(cleaned, ord)
				break
			}
		}
	}
	if len(cleaned) == 0 {
		return DefaultOrdering
	}
	return cleaned
}
