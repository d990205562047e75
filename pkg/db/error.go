package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Raw driver messages for unique violations, one per supported engine
// (postgres 23505, mysql 1062, sqlite 2067). Checked as substrings
// because the drivers wrap them differently.
var duplicateKeyMessages = []string{
	"duplicate key value violates unique constraint",
	"Error 1062",
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr reports whether err is a unique-constraint violation.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	for _, fragment := range duplicateKeyMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
