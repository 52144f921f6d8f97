/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package dberr contains the error kinds surfaced by the storage and query
core. Every kind maps to a stable numeric code so that external
collaborators (HTTP, CLI, RPC layers) can format it without inspecting
Go error values.
*/
package dberr

import "fmt"

/*
Kind is one of the error kinds the core surfaces.
*/
type Kind int

const (
	// KindNotFound is returned when an atom/key/page lookup misses.
	KindNotFound Kind = iota + 1
	// KindInvalidInput is returned for malformed triples, patterns or
	// unbound variables in a patch DELETE/INSERT.
	KindInvalidInput
	// KindStorageFull is returned when a file extension or atom chunk
	// append fails.
	KindStorageFull
	// KindCorruption is returned on magic mismatch, impossible entry
	// counts or checksum failures.
	KindCorruption
	// KindPatchFailed is returned when a patch batch was rolled back.
	KindPatchFailed
	// KindCancelled is returned on cooperative cancellation.
	KindCancelled
	// KindBusy is returned on writer contention timeout.
	KindBusy
)

/*
String returns the human-readable name of a Kind.
*/
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidInput:
		return "InvalidInput"
	case KindStorageFull:
		return "StorageFull"
	case KindCorruption:
		return "Corruption"
	case KindPatchFailed:
		return "PatchFailed"
	case KindCancelled:
		return "Cancelled"
	case KindBusy:
		return "Busy"
	}
	return "Unknown"
}

/*
Code returns the stable numeric code for a Kind.
*/
func (k Kind) Code() int {
	return int(k)
}

/*
Recoverable returns whether a caller can reasonably retry or recover from
this kind of error.
*/
func (k Kind) Recoverable() bool {
	switch k {
	case KindStorageFull, KindCorruption:
		return false
	default:
		return true
	}
}

/*
Error is a typed error carrying a Kind and a detail string, modeled on
EliasDB's GraphError.
*/
type Error struct {
	Kind   Kind
	Detail string
}

/*
New creates a new typed Error.
*/
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

/*
Errorf creates a new typed Error with a formatted detail string.
*/
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

/*
Error returns a human-readable string representation of this error.
*/
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Detail)
	}
	return e.Kind.String()
}

/*
Code returns the stable numeric code of the wrapped Kind.
*/
func (e *Error) Code() int {
	return e.Kind.Code()
}

/*
Is reports whether err carries the given Kind. It is a direct type
assertion on *Error: a *Error wrapped inside another error is not
unwrapped and reports false.
*/
func Is(err error, kind Kind) bool {
	de, ok := err.(*Error)
	return ok && de.Kind == kind
}
