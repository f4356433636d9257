// Package contact normalises customer and team contact fields.
package contact

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/codr1/courtbook/internal/apperr"
)

type Contact struct {
	Name  string `json:"name" db:"name"`
	Phone string `json:"phone" db:"phone"`
	Email string `json:"email,omitempty" db:"email"`
}

func (c Contact) IsZero() bool {
	return c == Contact{}
}

// Normalize trims every field, requires name and phone and rewrites the
// phone in E.164 form. Numbers without a country code are parsed against
// region.
func Normalize(c Contact, region string) (Contact, error) {
	return NormalizeField(c, region, "")
}

// NormalizeField is Normalize with field names prefixed, e.g. "team2.phone".
func NormalizeField(c Contact, region, prefix string) (Contact, error) {
	name := strings.TrimSpace(c.Name)
	phone := strings.TrimSpace(c.Phone)
	email := strings.TrimSpace(c.Email)

	if name == "" {
		return Contact{}, apperr.Field(prefix+"name", "is required")
	}
	if phone == "" {
		return Contact{}, apperr.Field(prefix+"phone", "is required")
	}

	normalized, err := NormalizePhone(phone, region)
	if err != nil {
		return Contact{}, apperr.Field(prefix+"phone", "is not a valid phone number")
	}

	if email != "" {
		at := strings.Index(email, "@")
		if at <= 0 || at == len(email)-1 {
			return Contact{}, apperr.Field(prefix+"email", "is not a valid email address")
		}
		email = strings.ToLower(email)
	}

	return Contact{Name: name, Phone: normalized, Email: email}, nil
}

func NormalizePhone(raw, region string) (string, error) {
	parsed, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", apperr.Invalid("phone number %q is not valid", raw)
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
