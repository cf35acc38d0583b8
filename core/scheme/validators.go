package scheme

import (
	"fmt"
	"math"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-grading/core"
)

// SumTolerance is how far the weights of a normalized scheme may drift from FullWeight.
const SumTolerance = 1e-9

var (
	schemeFieldTag  = "schemefield"
	schemeFieldText = fmt.Sprintf("must be one of %q or %q", FieldName, FieldWeight)

	weightSumTag  = "weightsum"
	weightSumText = fmt.Sprintf("weights must sum to %g", FullWeight)
)

// InitValidators registers the grading scheme validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(schemeFieldTag, schemeFieldValidation)
	core.RegisterCustomTranslation(validate, translator, schemeFieldTag, schemeFieldText)

	validate.RegisterStructValidation(persistableStructValidation, Persistable{})
	core.RegisterCustomTranslation(validate, translator, weightSumTag, weightSumText)
}

// Custom Validators

// schemeFieldValidation checks that the field is one of Fields
func schemeFieldValidation(fl validator.FieldLevel) bool {
	fld := Field(fl.Field().String())
	for _, f := range Fields {
		if fld == f {
			return true
		}
	}
	return false
}

// persistableStructValidation checks that the weights of a Persistable add up to FullWeight.
// Entries with invalid weights are reported by their own validation.
func persistableStructValidation(sl validator.StructLevel) {
	p, ok := sl.Current().Interface().(Persistable)
	if !ok || len(p.Schemes) == 0 {
		return
	}
	for _, e := range p.Schemes {
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return
		}
	}
	if !SumsToFull(p.Schemes) {
		sl.ReportError(p.Schemes, "schemes", "Schemes", weightSumTag, "")
	}
}

// SumsToFull reports whether the weights of entries add up to FullWeight, within SumTolerance.
func SumsToFull(entries []WeightEntry) bool {
	return math.Abs(Total(entries)-FullWeight) <= SumTolerance
}
