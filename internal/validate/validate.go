package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ferremas/internal/domain"
)

var (
	reID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	v = newValidator()
)

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match what the client sent.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = val.RegisterValidation("resid", func(fl validator.FieldLevel) bool {
		return reID.MatchString(fl.Field().String())
	})
	_ = val.RegisterValidation("movtype", func(fl validator.FieldLevel) bool {
		return domain.MovementType(fl.Field().String()).Valid()
	})
	_ = val.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
		return domain.OrderStatus(fl.Field().String()).Valid()
	})
	return val
}

// Struct validates a request DTO and returns a domain validation error
// describing the first failing field.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return domain.Validationf("invalid request: %v", err)
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return domain.Validationf("%s is required", fe.Field())
	case "gt", "gte", "min":
		return domain.Validationf("%s must be at least %s", fe.Field(), minOf(fe))
	case "max", "lte":
		return domain.Validationf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return domain.Validationf("%s must be one of: %s", fe.Field(), fe.Param())
	case "movtype":
		return domain.Validationf("unknown movement type %q", fmt.Sprint(fe.Value()))
	case "orderstatus":
		return domain.Validationf("unknown order status %q", fmt.Sprint(fe.Value()))
	case "resid":
		return domain.Validationf("%s is not a valid identifier", fe.Field())
	}
	return domain.Validationf("%s failed %s validation", fe.Field(), fe.Tag())
}

func minOf(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		if n, err := strconv.Atoi(fe.Param()); err == nil {
			return strconv.Itoa(n + 1)
		}
	}
	return fe.Param()
}

// ID validates a simple resource identifier (product/branch/record ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Date parses a query date as RFC3339 or YYYY-MM-DD. Empty input yields nil.
// A bare date used as an upper bound covers the whole day.
func Date(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, domain.Validationf("invalid date %q, use YYYY-MM-DD or RFC3339", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// PositiveInt parses a paging parameter, returning def when absent or invalid.
func PositiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}
