// Package apperr defines the domain errors returned by the service layer.
// Each error carries a stable numeric code and the HTTP status the API
// answers with; the echo error handler renders them as
// {"error_code": ..., "error_message": ...}.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for callers that do not care about the exact
// code.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindRetryableExternal
	KindExpired
)

// Error is a domain error.  Two Errors match under errors.Is when their
// codes are equal, so formatted variants still match the catalogue entry.
type Error struct {
	Kind    Kind
	Status  int
	Code    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%d: %s", e.Code, e.Message) }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Withf returns a copy of e whose message is formatted with args.
func (e *Error) Withf(args ...interface{}) *Error {
	c := *e
	c.Message = fmt.Sprintf(e.Message, args...)
	return &c
}

// As extracts the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// KindOf returns the kind of err, or 0 for non-domain errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}

func newErr(kind Kind, status, code int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Code: code, Message: msg}
}

var (
	WrongCredentials = newErr(KindBadRequest, http.StatusBadRequest, 1, "Wrong email or password!")
	WrongMFACode     = newErr(KindBadRequest, http.StatusBadRequest, 3, "Invalid two-factor authentication code.")
	WrongPassword    = newErr(KindBadRequest, http.StatusBadRequest, 4, "Wrong password.")
	WrongMFAKey      = newErr(KindBadRequest, http.StatusBadRequest, 5, "Invalid two-factor authentication key.")

	UnknownEvent  = newErr(KindNotFound, http.StatusNotFound, 6, "Unknown event.")
	UnknownTicket = newErr(KindNotFound, http.StatusNotFound, 7, "Unknown ticket.")
	UnknownPlan   = newErr(KindNotFound, http.StatusNotFound, 8, "Unknown event plan.")
	UnknownUser   = newErr(KindNotFound, http.StatusNotFound, 9, "Unknown user.")

	InvalidTicket = newErr(KindBadRequest, http.StatusBadRequest, 12, "Invalid ticket.")
	InvalidToken  = newErr(KindUnauthorized, http.StatusUnauthorized, 13, "Invalid token.")
	InvalidAmount = newErr(KindBadRequest, http.StatusBadRequest, 14, "Invalid amount.")

	UserExists                    = newErr(KindConflict, http.StatusBadRequest, 17, "User with this email already exists!")
	UserBanned                    = newErr(KindForbidden, http.StatusForbidden, 18, "Your account is banned!")
	PhoneNumberUsed               = newErr(KindConflict, http.StatusBadRequest, 19, "This phone number is already used.")
	NeedPassword                  = newErr(KindBadRequest, http.StatusBadRequest, 20, "You need to enter your password.")
	MFAAlreadyEnabled             = newErr(KindConflict, http.StatusBadRequest, 21, "Two-factory authentication is already enabled.")
	MFAAlreadyDisabled            = newErr(KindConflict, http.StatusBadRequest, 22, "Two-factory authentication is already disabled.")
	GoogleAlreadyConnected        = newErr(KindConflict, http.StatusBadRequest, 23, "You already have connected google account.")
	GoogleAlreadyConnectedToOther = newErr(KindConflict, http.StatusBadRequest, 24, "This account is already connected.")

	AlreadyVerified         = newErr(KindConflict, http.StatusBadRequest, 25, "Already verified.")
	TicketsNotAvailable     = newErr(KindConflict, http.StatusBadRequest, 26, "%d tickets not available. Try lowering tickets amount.")
	CannotCancel            = newErr(KindConflict, http.StatusBadRequest, 27, "This ticket cannot be cancelled.")
	PaymentNotReceived      = newErr(KindRetryableExternal, http.StatusBadRequest, 28, "Payment not received yet.")
	PaymentNotReceivedToken = newErr(KindForbidden, http.StatusForbidden, 29, "Payment is not received for this ticket.")
	TicketAnotherEvent      = newErr(KindBadRequest, http.StatusBadRequest, 32, "Ticket is issued for another event.")
	InsufficientPermissions = newErr(KindForbidden, http.StatusForbidden, 33, "Insufficient permissions.")

	ReservationExpired = newErr(KindExpired, http.StatusGone, 35, "Reservation has expired.")
	GatewayUnavailable = newErr(KindRetryableExternal, http.StatusServiceUnavailable, 36, "Payment gateway is unavailable. Try again later.")
	AlreadyRedeemed    = newErr(KindConflict, http.StatusConflict, 37, "Ticket has already been used.")
	ExternalAuthFailed = newErr(KindRetryableExternal, http.StatusBadGateway, 38, "Failed to authorize with the external service.")
)
