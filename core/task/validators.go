package task

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/trackademic/core"
)

var (
	typeTag  = "tasktype"
	typeText = "must be one of: assignment, homework, project, exam, quiz"

	priorityTag  = "taskpriority"
	priorityText = "must be one of: high, medium, low"

	statusTag  = "taskstatus"
	statusText = "must be one of: pending, in_progress, completed"
)

// InitValidators registers the task validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(typeTag, oneOfValidation(Types))
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)

	_ = validate.RegisterValidation(priorityTag, oneOfValidation(Priorities))
	core.RegisterCustomTranslation(validate, translator, priorityTag, priorityText)

	_ = validate.RegisterValidation(statusTag, oneOfValidation(Statuses))
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}
}
