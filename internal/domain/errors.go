package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeInsufficientStock       Code = "INSUFFICIENT_STOCK"
	CodeAlreadyCompleted        Code = "ALREADY_COMPLETED"
	CodeCannotModifyCompleted   Code = "CANNOT_MODIFY_COMPLETED"
	CodeCannotDeleteNonDraft    Code = "CANNOT_DELETE_NON_DRAFT"
	CodeInvalidAmount           Code = "INVALID_AMOUNT"
	CodeExceedsRemainingBalance Code = "EXCEEDS_REMAINING_BALANCE"
	CodeNotCompleted            Code = "NOT_COMPLETED"
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeAlreadyResolved         Code = "ALREADY_RESOLVED"
	CodeInvalidTransition       Code = "INVALID_TRANSITION"
	CodeForbidden               Code = "FORBIDDEN"
)

type Category string

const (
	CategoryNotFound   Category = "not-found"
	CategoryConflict   Category = "conflict"
	CategoryBadRequest Category = "bad-request"
	CategoryForbidden  Category = "forbidden"
)

func (c Code) Category() Category {
	switch c {
	case CodeNotFound:
		return CategoryNotFound
	case CodeInsufficientStock,
		CodeAlreadyCompleted,
		CodeCannotModifyCompleted,
		CodeCannotDeleteNonDraft,
		CodeNotCompleted,
		CodeAlreadyResolved,
		CodeInvalidTransition:
		return CategoryConflict
	case CodeForbidden:
		return CategoryForbidden
	default:
		return CategoryBadRequest
	}
}

// Error is a business failure with a stable code. Two errors match under
// errors.Is when their codes are equal, so the sentinels below work as
// targets regardless of message.
type Error struct {
	Code    Code
	Message string
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

var (
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrInsufficientStock       = &Error{Code: CodeInsufficientStock}
	ErrAlreadyCompleted        = &Error{Code: CodeAlreadyCompleted}
	ErrCannotModifyCompleted   = &Error{Code: CodeCannotModifyCompleted}
	ErrCannotDeleteNonDraft    = &Error{Code: CodeCannotDeleteNonDraft}
	ErrInvalidAmount           = &Error{Code: CodeInvalidAmount}
	ErrExceedsRemainingBalance = &Error{Code: CodeExceedsRemainingBalance}
	ErrNotCompleted            = &Error{Code: CodeNotCompleted}
	ErrValidation              = &Error{Code: CodeValidation}
	ErrAlreadyResolved         = &Error{Code: CodeAlreadyResolved}
	ErrInvalidTransition       = &Error{Code: CodeInvalidTransition}
	ErrForbidden               = &Error{Code: CodeForbidden}
)

// InsufficientStockError reports an OUT movement larger than what is on hand.
type InsufficientStockError struct {
	ItemID    int64
	ItemName  string
	Available int
	Required  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d, Required: %d", e.ItemName, e.Available, e.Required)
}

func (e *InsufficientStockError) Is(target error) bool {
	var other *Error
	return errors.As(target, &other) && other.Code == CodeInsufficientStock
}

// CodeOf extracts the business code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var stock *InsufficientStockError
	if errors.As(err, &stock) {
		return CodeInsufficientStock, true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
