package services

import (
	"errors"
	"fmt"
)

// Таксономия ошибок сервисного слоя. Четыре вида: валидация (предусловие не
// выполнено), права, "не найдено", конфликт уникальности. Всё остальное —
// неожиданная ошибка, отдаётся вызывающему как есть для логирования.
// Транспортный слой мапит виды на HTTP-статусы в handlers/helpers.go.

// ValidationError — нарушено бизнес-предусловие; Reason показывается
// пользователю как есть.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PermissionError — у актора нет нужной способности или отношения владения.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string { return e.Reason }

func NewPermissionError(format string, args ...interface{}) *PermissionError {
	return &PermissionError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError — сущность, на которую ссылается запрос, не существует.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ConflictError — нарушение уникальности (повторная регистрация и т.п.).
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// Общие экземпляры "не найдено" — чтобы сервисы не плодили дубликаты текста.
var (
	ErrUserNotFound         = &NotFoundError{Resource: "user"}
	ErrTeamNotFound         = &NotFoundError{Resource: "team"}
	ErrGameNotFound         = &NotFoundError{Resource: "game"}
	ErrTournamentNotFound   = &NotFoundError{Resource: "tournament"}
	ErrRegistrationNotFound = &NotFoundError{Resource: "registration"}
	ErrMatchNotFound        = &NotFoundError{Resource: "match"}
	ErrInviteNotFound       = &NotFoundError{Resource: "invite"}
	ErrStaffRoleNotFound    = &NotFoundError{Resource: "staff role"}
)

// Ошибки аутентификации (отдельные sentinel-ошибки, как и раньше).
var (
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
)
