package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain-rule violation. Every kind carries a stable machine code
// and an HTTP-like status class so the API layer can map it mechanically.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Authentication and session errors.
var (
	ErrInvalidCredentials = &Error{Code: "INVALID_CREDENTIALS", Status: http.StatusUnauthorized,
		Message: "invalid credentials"}
	ErrUnauthenticated = &Error{Code: "UNAUTHENTICATED", Status: http.StatusUnauthorized,
		Message: "missing or unknown session token"}
	ErrSessionExpired = &Error{Code: "SESSION_EXPIRED", Status: http.StatusUnauthorized,
		Message: "session has ended or expired"}
	ErrUserInactive = &Error{Code: "USER_INACTIVE", Status: http.StatusForbidden,
		Message: "user account is inactive"}
	ErrDeviceNotRegistered = &Error{Code: "DEVICE_NOT_REGISTERED", Status: http.StatusUnauthorized,
		Message: "device is not registered"}
	ErrDeviceInactive = &Error{Code: "DEVICE_INACTIVE", Status: http.StatusUnauthorized,
		Message: "device is inactive"}
	ErrDeviceMunicipalityMismatch = &Error{Code: "DISPOSITIVO_MUNICIPIO_MISMATCH", Status: http.StatusForbidden,
		Message: "device is not assigned to the user's municipality"}
	ErrDuplicateSession = &Error{Code: "SESION_DUPLICADA", Status: http.StatusForbidden,
		Message: "user already has an active session on another device"}
)

// Dispatch and fleet errors.
var (
	ErrBusNotAvailable = &Error{Code: "BUS_NOT_AVAILABLE", Status: http.StatusBadRequest,
		Message: "bus is not available for dispatch"}
	ErrRouteInactive = &Error{Code: "ROUTE_INACTIVE", Status: http.StatusBadRequest,
		Message: "route is not active"}
	ErrSecondDriverRequired = &Error{Code: "SECOND_DRIVER_REQUIRED", Status: http.StatusBadRequest,
		Message: "routes over the long-haul distance threshold require a distinct auxiliary driver"}
	ErrInvalidTransition = &Error{Code: "INVALID_TRANSITION", Status: http.StatusConflict,
		Message: "bus state does not allow this transition"}
	ErrBusNotFound = &Error{Code: "BUS_NOT_FOUND", Status: http.StatusNotFound,
		Message: "bus does not exist"}
	ErrMunicipalityNotFound = &Error{Code: "MUNICIPALITY_NOT_FOUND", Status: http.StatusNotFound,
		Message: "municipality does not exist"}
)

// Ticket sale errors.
var (
	ErrManifestNotFound = &Error{Code: "PLANILLA_NO_ENCONTRADA", Status: http.StatusNotFound,
		Message: "dispatch manifest does not exist"}
	ErrRouteNotFound = &Error{Code: "RUTA_NO_ENCONTRADA", Status: http.StatusNotFound,
		Message: "route does not exist or is not active"}
	ErrBusHasNoDriver = &Error{Code: "BUS_SIN_CONDUCTOR", Status: http.StatusBadRequest,
		Message: "bus has no assigned driver"}
	ErrBusNotDispatched = &Error{Code: "BUS_NO_DESPACHADO", Status: http.StatusBadRequest,
		Message: "tickets can only be sold while the bus is in DISPATCHED state"}
	ErrCapacityExceeded = &Error{Code: "CAPACIDAD_EXCEDIDA", Status: http.StatusBadRequest,
		Message: "bus has reached its seating capacity"}
	ErrInvalidTicketState = &Error{Code: "INVALID_TICKET_STATE", Status: http.StatusConflict,
		Message: "ticket is not in a state that allows this operation"}
	ErrTicketNotFound = &Error{Code: "TICKET_NOT_FOUND", Status: http.StatusNotFound,
		Message: "ticket does not exist"}
)

// Money transfer errors.
var (
	ErrTransferNotFound = &Error{Code: "TRANSFER_NOT_FOUND", Status: http.StatusNotFound,
		Message: "money transfer does not exist"}
	ErrInvalidTransferState = &Error{Code: "INVALID_TRANSFER_STATE", Status: http.StatusConflict,
		Message: "transfer is not in a state that allows this operation"}
	ErrBusNotCarrying = &Error{Code: "BUS_NOT_CARRYING", Status: http.StatusBadRequest,
		Message: "transfers can only be created for a dispatched or en-route bus"}
)

// InvalidTicketAmountError reports a fare mismatch with both amounts so the
// seller can show the expected fare.
type InvalidTicketAmountError struct {
	Paid     int64
	Expected int64
}

func (e *InvalidTicketAmountError) Error() string {
	return fmt.Sprintf("ticket amount %d does not match the route fare %d", e.Paid, e.Expected)
}

func (e *InvalidTicketAmountError) Code() string { return "VALOR_TICKET_INVALIDO" }

// SeatUnavailableError reports a seat that is out of range or already held by
// an active ticket on the manifest.
type SeatUnavailableError struct {
	Seat int
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat %d is not available", e.Seat)
}

func (e *SeatUnavailableError) Code() string { return "ASIENTO_NO_DISPONIBLE" }

// DriverNotAssociatedError reports a driver that is not in the bus's
// associated set or is inactive.
type DriverNotAssociatedError struct {
	DriverID string
}

func (e *DriverNotAssociatedError) Error() string {
	return fmt.Sprintf("driver %s is not associated with the bus or is inactive", e.DriverID)
}

func (e *DriverNotAssociatedError) Code() string { return "DRIVER_NOT_ASSOCIATED" }

// InfraError wraps storage or connectivity failures. It is deliberately a
// separate category: infrastructure faults must never surface as domain-rule
// violations, and the core does not retry them.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

// Infra wraps err as an infrastructure failure, passing domain errors through
// untouched.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return &InfraError{Op: op, Err: err}
}

// ErrorCode returns the stable machine code for a domain error, or empty for
// anything else.
func ErrorCode(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	var amountErr *InvalidTicketAmountError
	if errors.As(err, &amountErr) {
		return amountErr.Code()
	}
	var seatErr *SeatUnavailableError
	if errors.As(err, &seatErr) {
		return seatErr.Code()
	}
	var driverErr *DriverNotAssociatedError
	if errors.As(err, &driverErr) {
		return driverErr.Code()
	}
	return ""
}

// HTTPStatus returns the status class for an error: the kind's own class for
// domain errors, 503 for infrastructure failures, 500 otherwise.
func HTTPStatus(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Status
	}
	switch err.(type) {
	case *InvalidTicketAmountError, *SeatUnavailableError, *DriverNotAssociatedError:
		return http.StatusBadRequest
	}
	if IsInfra(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// IsDomain reports whether err is a domain-rule violation of any kind.
func IsDomain(err error) bool {
	return ErrorCode(err) != ""
}

// IsInfra reports whether err is an infrastructure failure.
func IsInfra(err error) bool {
	var ie *InfraError
	return errors.As(err, &ie)
}
