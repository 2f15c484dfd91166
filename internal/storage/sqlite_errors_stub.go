//go:build !cgo
// +build !cgo

package storage

import "strings"

// Without cgo the sqlite driver is a stub and never returns constraint errors;
// match on the message so the dialect still compiles.
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
