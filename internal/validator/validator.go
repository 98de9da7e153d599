package validator

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func NewValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func GetValidator() *validator.Validate {
	return NewValidator()
}

// ValidateRequest runs struct tags on req and returns an ErrValidation-marked
// error listing the offending fields.
func ValidateRequest(req any) error {
	if err := GetValidator().Struct(req); err != nil {
		details := make(map[string]any)
		fields := make([]string, 0)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fe := range validateErrs {
				details[fe.Field()] = fe.Tag()
				fields = append(fields, fe.Field())
			}
		}
		return ierr.WithError(err).
			WithHintf("invalid fields: %s", strings.Join(fields, ", ")).
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
