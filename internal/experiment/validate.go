package experiment

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/jsonlogic"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest runs every check that needs nothing but the request itself.
// It returns the base context as an object on success.
func ValidateRequest(req *CreateRequest) (map[string]any, error) {
	if req == nil {
		return nil, apperr.BadArgument("request cannot be empty")
	}

	if err := checkShape(req); err != nil {
		return nil, err
	}
	if err := CheckVariantTypes(req.Variants); err != nil {
		return nil, err
	}
	if err := CheckVariantIDs(req.Variants); err != nil {
		return nil, err
	}
	if err := CheckOverrideCoverage(req.Variants, req.OverrideKeys); err != nil {
		return nil, err
	}
	return CheckContext(req.Context)
}

func checkShape(req *CreateRequest) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.Wrap(apperr.KindBadArgument, err, "invalid request")
	}

	issues := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		issues[i] = describeFieldError(fe)
	}
	return apperr.Validation("invalid request: %s", strings.Join(issues, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "CreateRequest.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// CheckVariantTypes requires exactly one CONTROL and at least one EXPERIMENTAL variant.
func CheckVariantTypes(variants []Variant) error {
	var control, experimental int
	for _, v := range variants {
		switch v.VariantType {
		case VariantControl:
			control++
		case VariantExperimental:
			experimental++
		}
	}

	if control != 1 {
		return apperr.Validation("experiment should have exactly 1 control variant, got %d", control)
	}
	if experimental < 1 {
		return apperr.Validation("experiment should have at least 1 experimental variant")
	}
	return nil
}

// CheckVariantIDs rejects two variants sharing an id, since ids become targeting values.
func CheckVariantIDs(variants []Variant) error {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if _, dup := seen[v.ID]; dup {
			return apperr.Validation("variant id %q is used more than once", v.ID)
		}
		seen[v.ID] = struct{}{}
	}
	return nil
}

// CheckOverrideCoverage requires every variant to override at least overrideKeys.
// Extra keys are allowed.
func CheckOverrideCoverage(variants []Variant, overrideKeys []string) error {
	for _, v := range variants {
		if missing := MissingKeys(v.Overrides, overrideKeys); len(missing) > 0 {
			return apperr.Validation("variant %q does not override keys %v mentioned in override_keys", v.ID, missing)
		}
	}
	return nil
}

// MissingKeys returns, sorted and de-duplicated, the keys absent from overrides.
func MissingKeys(overrides map[string]any, keys []string) []string {
	var missing []string
	for _, k := range keys {
		if _, ok := overrides[k]; !ok {
			missing = append(missing, k)
		}
	}
	slices.Sort(missing)
	return slices.Compact(missing)
}

// CheckContext requires the base context to be a JSON object that decomposes
// into dimensions. An empty object targets everyone.
func CheckContext(context any) (map[string]any, error) {
	root, ok := context.(map[string]any)
	if !ok {
		return nil, apperr.BadArgument("context should be map of key value pairs")
	}
	if len(root) == 0 {
		return root, nil
	}
	if _, err := jsonlogic.Extract(root); err != nil {
		return nil, err
	}
	return root, nil
}
