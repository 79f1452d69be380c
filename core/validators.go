package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	orderingTag   = "ordering"
	orderingText  = "must be a comma-separated list of field names, each optionally prefixed with '-'"
	orderingRegex = regexp.MustCompile(`^\s*-?[\w.]+\s*(,\s*-?[\w.]+\s*)*$`)

	fieldNameTag   = "fieldname"
	fieldNameText  = "only letters, digits, underscores and dots are allowed"
	fieldNameRegex = regexp.MustCompile(`^[\w.]+$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	// register custom validators
	_ = validate.RegisterValidation(orderingTag, orderingValidation)
	RegisterCustomTranslation(validate, translator, orderingTag, orderingText)

	_ = validate.RegisterValidation(fieldNameTag, fieldNameValidation)
	RegisterCustomTranslation(validate, translator, fieldNameTag, fieldNameText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateErrors maps validation errors to {field: message}.
func TranslateErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		fldErrs[vErr.Field()] = vErr.Translate(translator)
	}
	return fldErrs
}

// Custom Global Validators

// orderingValidation allows "name", "-name" or "-joining_date,name".
func orderingValidation(fl validator.FieldLevel) bool {
	return orderingRegex.MatchString(fl.Field().String())
}

// fieldNameValidation allows (dotted) record field names.
func fieldNameValidation(fl validator.FieldLevel) bool {
	return fieldNameRegex.MatchString(fl.Field().String())
}
