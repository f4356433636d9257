package apiutil

import "github.com/codr1/courtbook/internal/contact"

// ContactBody is the customer or team block of a submission. Phone
// normalization happens in the contact package.
type ContactBody struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"required,max=32"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

func (c ContactBody) Contact() contact.Contact {
	return contact.Contact{Name: c.Name, Phone: c.Phone, Email: c.Email}
}
