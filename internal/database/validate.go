package database

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/koustreak/dbpool/internal/errs"
)

// poolRules mirrors poolDocument with the constraints a pool constructor
// needs. Field names are reported using their document keys.
type poolRules struct {
	MinIdleConnections int    `yaml:"minIdleConnections" validate:"gte=0,ltefield=MaxIdleConnections"`
	MaxIdleConnections int    `yaml:"maxIdleConnections" validate:"ltefield=MaxConnections"`
	MaxConnections     int    `yaml:"maxConnections"     validate:"gte=1"`
	ValidationQuery    string `yaml:"validationQuery"    validate:"required"`
}

var poolValidator = newPoolValidator()

func newPoolValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidatePool checks the ordering constraints between pool fields:
//
//	0 <= minIdleConnections <= maxIdleConnections <= maxConnections, maxConnections >= 1
//
// and that validationQuery is set. PoolSettings itself accepts anything; pool
// constructors call ValidatePool before building a pool. The returned error
// is of kind invalid_input and lists every violated rule.
func ValidatePool(p PoolSettings) error {
	rules := poolRules{
		MinIdleConnections: p.minIdleConnections,
		MaxIdleConnections: p.maxIdleConnections,
		MaxConnections:     p.maxConnections,
		ValidationQuery:    p.validationQuery,
	}

	err := poolValidator.Struct(rules)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid pool settings", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return errs.New(errs.ErrKindInvalidInput, "invalid pool settings: "+strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "ltefield":
		return fmt.Sprintf("%s must be <= %s, got %v", fe.Field(), lowerFirst(fe.Param()), fe.Value())
	case "required":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	default:
		return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
