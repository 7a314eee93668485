// Package repository holds the hand written SQL data access layer.  Errors
// defined here let handlers tell failure scenarios apart without looking at
// driver specifics: ErrForbidden maps to 403, the *NotFound values to 404
// and ErrConflict and the duplicate errors to 409.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrForbidden is returned when the caller may not touch a resource
	// that exists in their organization.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the current state of a row rules out
	// the requested change.
	ErrConflict = errors.New("conflict")

	ErrLeadNotFound      = errors.New("lead not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrOTPNotFound       = errors.New("otp not found")
	ErrEmailExists       = errors.New("email already exists")
	ErrPhoneExists       = errors.New("phone already exists")
	ErrAlreadyCheckedIn  = errors.New("already checked in")
	ErrNotCheckedIn      = errors.New("not checked in")
	ErrAlreadyCheckedOut = errors.New("already checked out")
)

const mysqlDuplicateEntry = 1062

// duplicateKey reports whether err is a MySQL duplicate-key violation and
// returns the offending index name when the driver includes it.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	// Duplicate entry 'x' for key 'users.uq_users_email'
	msg := me.Message
	if i := strings.LastIndex(msg, "for key '"); i >= 0 {
		key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
		if j := strings.LastIndex(key, "."); j >= 0 {
			key = key[j+1:]
		}
		return key, true
	}
	return "", true
}
