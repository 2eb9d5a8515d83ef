package database

import "errors"

// ErrNotFound is returned when a requested user, word, record, session or
// progress row does not exist. Callers check it with errors.Is.
var ErrNotFound = errors.New("not found")
