package services

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"galapa/internal/common"
	"galapa/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator, configured to report json field names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateProviderInput trims every text field of in and checks it.
// It returns nil or a *common.ValidationError with one message per bad field.
func ValidateProviderInput(in *models.ProviderInput) error {
	in.Company = strings.TrimSpace(in.Company)
	in.Contact = strings.TrimSpace(in.Contact)
	in.Type = strings.TrimSpace(in.Type)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	if !common.TrimStringPtr(in.Status) {
		in.Status = nil
	}
	if !common.TrimStringPtr(in.LastPurchaseDate) {
		in.LastPurchaseDate = nil
	}

	fields := make(map[string]string)

	if err := Validator().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	if in.LastPurchaseDate != nil {
		if _, err := common.ValidateDateFormat(*in.LastPurchaseDate, "last_purchase_date"); err != nil {
			fields["last_purchase_date"] = err.Error()
		}
	}

	if verr := common.NewValidationError(fields); verr != nil {
		return verr
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
