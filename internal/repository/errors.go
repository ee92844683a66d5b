// Package repository defines the transactional store consumed by the
// service layer and its MySQL and in-memory implementations.  The
// sentinel errors below allow higher layers to distinguish failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist (or is not
// visible to the caller, e.g. a ticket owned by someone else).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrPhoneExists is returned when a phone number is already used by
// another account.
var ErrPhoneExists = errors.New("phone number already exists")

// ErrConflict is returned when a write violates a uniqueness constraint
// other than the email, such as linking an already linked external account.
var ErrConflict = errors.New("conflict")

// ErrInvariant reports a broken data invariant, such as a ticket without
// its payment.  It is never expected and callers should abort the request.
var ErrInvariant = errors.New("data invariant violated")
