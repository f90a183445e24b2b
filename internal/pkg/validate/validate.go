package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/pkg/id"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())

	// report json names so clients see the field they sent
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = val.RegisterValidation("decision", func(fl validator.FieldLevel) bool {
		_, ok := enums.ParseDecision(fl.Field().String())
		return ok
	})
	_ = val.RegisterValidation("ulid", func(fl validator.FieldLevel) bool {
		return id.Valid(fl.Field().String())
	})

	return val
}

// Struct validates s by its validate tags and flattens failures into one
// readable error.
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
