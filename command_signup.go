package authclient

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// SignupMessage carries the account-creation payload sent to the backend
// user registry. Creating an account never creates a session: the caller is
// expected to sign in explicitly afterwards.
type SignupMessage struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password,omitempty"`
	Company     string `json:"company,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Preferences string `json:"preferences,omitempty"`
}

func (m SignupMessage) Type() string { return "authclient.signup" }

// Validate checks the payload before it leaves the client, so the backend
// only sees well-formed registrations.
func (m SignupMessage) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Length(8, 128)),
		validation.Field(&m.Phone, validation.By(validatePhone)),
	)
	if err != nil {
		return wrapWithSource(ErrInvalidSignup, err, map[string]any{
			"email": m.Email,
		})
	}
	return nil
}

// validatePhone accepts an empty phone and otherwise requires a number that
// parses and validates internationally (region-less, so it must carry a
// country code).
func validatePhone(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "unparseable phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return errors.New("invalid phone number", errors.CategoryValidation)
	}
	return nil
}
