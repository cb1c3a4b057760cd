package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/sokomart/marketplace-api/internal/domain"
)

var currencyRgx = regexp.MustCompile(`^[A-Z]{3}$`)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("payment_method", validatePaymentMethod)
	validator.RegisterValidation("currency_code", validateCurrencyCode)

	return validator
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	return domain.PaymentMethod(fl.Field().String()).Valid()
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyRgx.MatchString(fl.Field().String())
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "uuid4":
		return "must be a valid UUID"
	case "payment_method":
		return "must be one of: mobile_money, card, wallet, cash_on_delivery"
	case "currency_code":
		return "must be a three-letter currency code"
	default:
		return "is invalid"
	}
}
