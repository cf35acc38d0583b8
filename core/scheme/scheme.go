package scheme

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FullWeight is what the weights of a normalized scheme add up to.
const FullWeight = 100.0

var (
	ErrIndexOutOfRange = errors.New("entry index out of range")
	ErrUnknownField    = errors.New("unknown entry field")
	ErrInvalidWeight   = errors.New("weight must be a number")
	ErrEmptyScheme     = errors.New("scheme has no entries")
)

// Scheme is an editable, ordered list of weight entries.
// Order is kept for display only; names may repeat.
type Scheme struct {
	entries   []WeightEntry
	defaulted bool
}

// New returns a Scheme holding a copy of entries.
func New(entries ...WeightEntry) *Scheme {
	return &Scheme{entries: copyEntries(entries)}
}

// Parse decodes a serialized scheme: a JSON array of {"name", "weight"} objects.
// An empty array is rejected with ErrEmptyScheme, like blank data, since a scheme keeps at least one entry.
func Parse(data string) ([]WeightEntry, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, ErrEmptyScheme
	}
	var entries []WeightEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, errors.Wrap(err, "decoding scheme")
	}
	if len(entries) == 0 {
		return nil, ErrEmptyScheme
	}
	return entries, nil
}

// Defaults splits the full weight equally across names.
func Defaults(names []string) []WeightEntry {
	entries := make([]WeightEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, WeightEntry{Name: name, Weight: FullWeight / float64(len(names))})
	}
	return entries
}

// Initialize builds a Scheme from initialData when it parses, otherwise from the equal split of defaultNames.
// A malformed initialData is not an error; Defaulted reports that the fallback was used.
func Initialize(initialData string, defaultNames []string) *Scheme {
	entries, err := Parse(initialData)
	if err != nil {
		return &Scheme{entries: Defaults(defaultNames), defaulted: true}
	}
	return &Scheme{entries: entries}
}

// Defaulted reports whether the scheme was built from the default assessment names.
func (s *Scheme) Defaulted() bool { return s.defaulted }

func (s *Scheme) Len() int { return len(s.entries) }

// Entries returns a copy of the entries in display order.
func (s *Scheme) Entries() []WeightEntry { return copyEntries(s.entries) }

// AddEntry appends a blank entry.
func (s *Scheme) AddEntry() {
	s.entries = append(s.entries, WeightEntry{})
}

// RemoveEntry removes the entry at index, keeping the order of the others.
// Keeping at least one entry is up to the caller.
func (s *Scheme) RemoveEntry(index int) error {
	if index < 0 || index >= len(s.entries) {
		return ErrIndexOutOfRange
	}
	s.entries = append(s.entries[:index], s.entries[index+1:]...)
	return nil
}

// UpdateEntry sets the name (as is) or the weight (coerced to a number) of the entry at index.
// A blank weight coerces to 0. Weights are not clamped.
func (s *Scheme) UpdateEntry(index int, field Field, value string) error {
	if index < 0 || index >= len(s.entries) {
		return ErrIndexOutOfRange
	}
	switch field {
	case FieldName:
		s.entries[index].Name = value
	case FieldWeight:
		w, err := ParseWeight(value)
		if err != nil {
			return err
		}
		s.entries[index].Weight = w
	default:
		return ErrUnknownField
	}
	return nil
}

// Total is the sum of all weights.
func (s *Scheme) Total() float64 { return Total(s.entries) }

// Normalize returns the entries rescaled to sum to FullWeight. The scheme itself is left as is.
func (s *Scheme) Normalize() []WeightEntry { return Normalize(s.entries) }

// ToPersistable returns the normalized scheme in the shape the gradebook saves.
func (s *Scheme) ToPersistable() Persistable {
	return Persistable{Schemes: s.Normalize()}
}

// ParseWeight coerces a form value to a weight.
func ParseWeight(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	w, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, ErrInvalidWeight
	}
	return w, nil
}

func Total(entries []WeightEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Weight
	}
	return total
}

// Normalize rescales weights proportionally so they sum to FullWeight.
// Entries already summing to exactly FullWeight are returned unchanged,
// and so are entries summing to 0 which cannot be rescaled.
func Normalize(entries []WeightEntry) []WeightEntry {
	normalized := copyEntries(entries)
	total := Total(entries)
	if total == FullWeight || total == 0 {
		return normalized
	}
	for i := range normalized {
		normalized[i].Weight = normalized[i].Weight / total * FullWeight
	}
	return normalized
}

func copyEntries(entries []WeightEntry) []WeightEntry {
	c := make([]WeightEntry, len(entries))
	copy(c, entries)
	return c
}
