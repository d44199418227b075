package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Alias1177/ProfitPredictor/models"
	"github.com/hashicorp/go-multierror"
)

// Form holds the raw, string-typed fields of a prediction form
type Form struct {
	ModelType      string `json:"model_type"`
	RDSpend        string `json:"rd_spend"`
	AdminSpend     string `json:"admin_spend"`
	MarketingSpend string `json:"marketing_spend"`
	Region         string `json:"state"`
}

// Field names as they appear on the form
const (
	FieldModelType      = "model_type"
	FieldRDSpend        = "rd_spend"
	FieldAdminSpend     = "admin_spend"
	FieldMarketingSpend = "marketing_spend"
	FieldRegion         = "state"
)

// Reason classifies why a field was rejected
type Reason string

const (
	MissingField  Reason = "MissingField"
	NegativeValue Reason = "NegativeValue"
	InvalidNumber Reason = "InvalidNumber"
	InvalidChoice Reason = "InvalidChoice"
)

// MaxSpend bounds a single spend column so the summed spend stays finite
const MaxSpend = 1e15

// FieldError is a single field-scoped rejection
type FieldError struct {
	Field  string `json:"field"`
	Reason Reason `json:"reason"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationError carries every field error of one submission
type ValidationError struct {
	errs *multierror.Error
}

func (e *ValidationError) Error() string {
	return e.errs.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.errs
}

// Fields lists the rejected fields in form order
func (e *ValidationError) Fields() []*FieldError {
	out := make([]*FieldError, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		var fe *FieldError
		if errors.As(err, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

// Has reports whether field was rejected for reason
func (e *ValidationError) Has(field string, reason Reason) bool {
	for _, fe := range e.Fields() {
		if fe.Field == field && fe.Reason == reason {
			return true
		}
	}
	return false
}

// Validate turns a raw form into a PredictionInput. It never stops at the
// first problem: all field errors are returned together.
func Validate(form Form) (models.PredictionInput, error) {
	var result *multierror.Error
	reject := func(field string, reason Reason) {
		result = multierror.Append(result, &FieldError{Field: field, Reason: reason})
	}

	input := models.PredictionInput{Variant: models.VariantOptimized}

	if strings.TrimSpace(form.ModelType) != "" {
		variant, err := models.ParseModelVariant(form.ModelType)
		if err != nil {
			reject(FieldModelType, InvalidChoice)
		} else {
			input.Variant = variant
		}
	}

	if v, reason := parseSpend(form.RDSpend); reason != "" {
		reject(FieldRDSpend, reason)
	} else {
		input.RDSpend = v
	}

	// Administration and marketing only exist for the all-features model
	if input.Variant == models.VariantAllFeatures {
		if v, reason := parseSpend(form.AdminSpend); reason != "" {
			reject(FieldAdminSpend, reason)
		} else {
			input.AdminSpend = v
		}
		if v, reason := parseSpend(form.MarketingSpend); reason != "" {
			reject(FieldMarketingSpend, reason)
		} else {
			input.MarketingSpend = v
		}
	}

	input.Region = strings.TrimSpace(form.Region)
	if input.Region == "" {
		reject(FieldRegion, MissingField)
	}

	if result != nil {
		result.ErrorFormat = formatErrors
		return models.PredictionInput{}, &ValidationError{errs: result}
	}
	return input, nil
}

func parseSpend(raw string) (float64, Reason) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, MissingField
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, InvalidNumber
	}
	if v < 0 {
		return 0, NegativeValue
	}
	if v > MaxSpend {
		return 0, InvalidNumber
	}
	return v, ""
}

func formatErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return "invalid prediction form: " + strings.Join(parts, "; ")
}
