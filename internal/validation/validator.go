package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"roledash.org/internal/auth"
)

// FieldError is one failed rule, in the shape sent to clients.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors lists every failed rule of a struct. It unwraps to auth.ErrValidation.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) Unwrap() error { return auth.ErrValidation }

// Validator checks structs tagged with the rules in this package.
type Validator struct {
	v *validator.Validate
}

// New registers every rule and alias on a fresh go-playground validator.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	for _, r := range rules {
		pred := r.pred
		// Registration only fails for empty tags or nil funcs.
		_ = v.RegisterValidation(r.tag, func(fl validator.FieldLevel) bool {
			return pred(fl.Field().String())
		})
	}
	for alias, tags := range aliases {
		v.RegisterAlias(alias, tags)
	}
	return &Validator{v: v}
}

// Validate returns nil or Errors.
func (val *Validator) Validate(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Field: "", Message: err.Error()}}
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	if m, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	if m, ok := messages[fe.Tag()]; ok {
		return m
	}
	return "is invalid"
}
