package database

import "errors"

// ErrAlertNotFound is returned when an operation references an alert ID that
// does not exist in the store.
var ErrAlertNotFound = errors.New("alert not found")
