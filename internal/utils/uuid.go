// Package utils holds small cross-cutting helpers; its current caller
// is the session ledger in internal/database.
package utils

import "github.com/google/uuid"

// NewUUID generates a random v4 identifier, used as the primary key of
// session ledger rows — never for the session ID itself, which is
// always client-supplied.
func NewUUID() string {
	return uuid.New().String()
}
