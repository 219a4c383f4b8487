package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type ShippingAddress struct {
	FullName   string `json:"fullName" validate:"min=2"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"min=10,phone"`
	Address    string `json:"address" validate:"min=5"`
	City       string `json:"city" validate:"min=2"`
	State      string `json:"state" validate:"min=2"`
	PostalCode string `json:"postalCode" validate:"min=5"`
	Country    string `json:"country" validate:"min=2"`
}

// FieldErrors maps a json field name to a user-facing message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

var messages = map[string]string{
	"fullName":   "Full name must be at least 2 characters.",
	"email":      "Please enter a valid email address.",
	"phone":      "Please enter a valid phone number.",
	"address":    "Address must be at least 5 characters.",
	"city":       "City must be at least 2 characters.",
	"state":      "State must be at least 2 characters.",
	"postalCode": "Postal code must be at least 5 characters.",
	"country":    "Country must be at least 2 characters.",
}

var phoneChars = regexp.MustCompile(`^[0-9+\-() ]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			return jsonName(f.Tag.Get("json"))
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phoneChars.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Validate trims every field and checks the form rules. Errors are FieldErrors.
func (s *ShippingAddress) Validate() error {
	s.normalize()
	err := formValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate shipping: %w", err)
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		out[fe.Field()] = messages[fe.Field()]
	}
	return out
}

func (s *ShippingAddress) normalize() {
	for _, f := range []*string{&s.FullName, &s.Email, &s.Phone, &s.Address, &s.City, &s.State, &s.PostalCode, &s.Country} {
		*f = strings.TrimSpace(*f)
	}
}

// fieldPath drops the root type from a validator namespace:
// "Product.category.id" -> "category.id".
func fieldPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

func jsonName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}
