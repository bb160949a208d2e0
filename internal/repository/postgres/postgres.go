// Package postgres implements the repositories on PostgreSQL through lib/pq.
package postgres

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/repository"
)

func NewSet(db *database.DB) repository.Set {
	return repository.Set{
		Profiles:      NewProfileRepository(db),
		Messages:      NewMessageRepository(db),
		Groups:        NewGroupRepository(db),
		GroupMessages: NewGroupMessageRepository(db),
	}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns free text into an ILIKE pattern that matches it literally.
func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}
