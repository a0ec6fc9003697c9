package db

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Postgres class 23 integrity-constraint violation for duplicate keys.
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation. The
// message fallback covers drivers that do not surface a *pq.Error, sqlite in
// tests included.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
