package review

import "fmt"

// Error codes surfaced by the review workflow. Handlers map them to HTTP
// statuses; messages are written for the operator blocked by the check, so
// they name the current and the required state instead of a generic failure.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidAction     = "INVALID_ACTION"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidAssignment = "INVALID_ASSIGNMENT"
	CodeMissingDriver     = "MISSING_DRIVER"
	CodeInvalidState      = "INVALID_STATE"
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errNotFound(guid string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("la alarma %s no existe", guid)}
}

func errInvalidAction(action string) *Error {
	return &Error{
		Code:    CodeInvalidAction,
		Message: fmt.Sprintf("la acción %q no es válida, debe ser %q o %q", action, ActionConfirm, ActionReject),
	}
}

func errInvalidTransition(current, required string) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("la alarma está en estado %q, la operación requiere estado %q", current, required),
	}
}

func errInvalidState(current, required string) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("la alarma está en estado %q, la operación requiere estado %q", current, required),
	}
}

func errDriverNotFound(driverID int64) *Error {
	return &Error{
		Code:    CodeInvalidAssignment,
		Message: fmt.Sprintf("el chofer con ID %d no existe", driverID),
	}
}

func errCompanyMismatch(driverName, alarmCompany string) *Error {
	if alarmCompany == "" {
		alarmCompany = "desconocida"
	}
	return &Error{
		Code:    CodeInvalidAssignment,
		Message: fmt.Sprintf("el chofer %s no pertenece a la empresa %s de la alarma", driverName, alarmCompany),
	}
}

func errMissingDriver() *Error {
	return &Error{
		Code:    CodeMissingDriver,
		Message: "la selección de un chofer es obligatoria para confirmar la alarma",
	}
}
