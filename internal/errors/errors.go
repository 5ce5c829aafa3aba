package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on code, so errors.Is(err, ErrStorageWrite) holds for wrapped
// instances that carry a cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrValidation = &AppError{Code: "VALID_001", Message: "invalid input"}

	ErrPermissionDenied = &AppError{Code: "PERM_001", Message: "notification permission not granted"}

	ErrStorageRead  = &AppError{Code: "STORE_001", Message: "storage read failed"}
	ErrStorageWrite = &AppError{Code: "STORE_002", Message: "storage write failed"}

	ErrMedicineNotFound    = &AppError{Code: "MED_001", Message: "medicine not found"}
	ErrAppointmentNotFound = &AppError{Code: "APPT_001", Message: "appointment not found"}

	ErrTriggerNotFound = &AppError{Code: "TRIG_001", Message: "trigger not found"}

	ErrNotFound = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrInternal = &AppError{Code: "GEN_002", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
