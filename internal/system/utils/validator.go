package utils

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/waterreg/registry-server/internal/system/constants"
)

// ValidatePagination validates page and page size
func ValidatePagination(page, pageSize int) error {
	if pageSize < 1 || pageSize > constants.MaxPageSize {
		return fmt.Errorf("pageSize must be between 1 and %d", constants.MaxPageSize)
	}
	if page < 1 {
		return fmt.Errorf("page must be positive")
	}
	return nil
}

// ValidateUUID validates UUID format
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid UUID format: %s", id)
	}
	return nil
}

// ValidateEmail accepts an empty value or a single address.
func ValidateEmail(value string) error {
	if value == "" {
		return nil
	}
	if _, err := mail.ParseAddress(value); err != nil {
		return fmt.Errorf("invalid email: %s", value)
	}
	return nil
}

// SanitizeComment trims a free-text comment and drops control characters.
func SanitizeComment(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
}
