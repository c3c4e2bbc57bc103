// Package validation checks request bodies for each form the API accepts and
// reports failures as a field -> message map.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// report fields under their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})

	return v
}

// ParseDate accepts the date formats browsers and clients commonly send
// ("2020-01-31", "01/31/2020", RFC 3339, ...). Zone-less dates are UTC.
func ParseDate(s string) (time.Time, error) {
	return dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
}

// messages maps field -> validator tag -> human message.
type messages map[string]map[string]string

func check(in interface{}, msgs messages) (map[string]string, bool) {
	errs := map[string]string{}

	err := validate.Struct(in)
	if err == nil {
		return errs, true
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["form"] = err.Error()
		return errs, false
	}

	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := errs[field]; seen {
			continue
		}
		if msg, ok := msgs[field][fe.Tag()]; ok {
			errs[field] = msg
			continue
		}
		errs[field] = fmt.Sprintf("%s is invalid", field)
	}
	return errs, len(errs) == 0
}

// isEmpty reports whether s has no content once trimmed.
func isEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
