package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	phoneStrip   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

const DefaultCountry = "India"

type Address struct {
	FullName   string `json:"fullName"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Normalize trims every field, derives FullName from first and last name when missing,
// defaults the country and validates the result.
func (a Address) Normalize() (Address, error) {
	a.FullName = strings.TrimSpace(a.FullName)
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)

	if a.FullName == "" {
		a.FullName = strings.TrimSpace(a.FirstName + " " + a.LastName)
	}
	if a.Country == "" {
		a.Country = DefaultCountry
	}

	return a, a.Validate()
}

func (a Address) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"fullName", a.FullName},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required: %w", r.field, ErrInvalidAddress)
		}
	}

	if a.Email != "" && !emailPattern.MatchString(a.Email) {
		return fmt.Errorf("email[%s] is not valid: %w", a.Email, ErrInvalidAddress)
	}

	if a.Phone != "" && !phonePattern.MatchString(phoneStrip.Replace(a.Phone)) {
		return fmt.Errorf("phone[%s] is not valid: %w", a.Phone, ErrInvalidAddress)
	}

	return nil
}
