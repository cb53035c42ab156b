package services

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sjperalta/fintera-ledger/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("trigger", func(fl validator.FieldLevel) bool {
		return models.IsValidTrigger(fl.Field().String())
	})
	_ = v.RegisterValidation("schedule", func(fl validator.FieldLevel) bool {
		return models.IsValidSchedule(fl.Field().String())
	})
	_ = v.RegisterValidation("account_type", func(fl validator.FieldLevel) bool {
		return models.IsValidAccountType(fl.Field().String())
	})
	return v
}

// validateStruct runs the struct tags of in and reports failures as a
// ValidationError keyed by the namespaced field (e.g. "AccountMappings.DebitAccount").
func validateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.StructNamespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[ns] = rule
	}
	return &ValidationError{Fields: fields}
}
