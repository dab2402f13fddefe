package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds returned by every workflow. Callers match them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrClassClosed         = errors.New("class closed")
	ErrClassAlreadyStarted = errors.New("class already started")
	ErrAlreadyEnrolled     = errors.New("already enrolled")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrAttendDateInFuture  = errors.New("attendance date in future")
	ErrAttendDateTooOld    = errors.New("attendance date too old")
	ErrForeignEnrollment   = errors.New("foreign enrollment")
	ErrStorage             = errors.New("storage error")

	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateAccount   = errors.New("duplicate account")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type kindInfo struct {
	code    string
	status  int
	message string
}

// kinds is ordered; the first match wins when an error wraps several kinds.
var kinds = []struct {
	err error
	kindInfo
}{
	{ErrNotFound, kindInfo{"not_found", http.StatusNotFound, "요청한 항목을 찾을 수 없습니다."}},
	{ErrUnauthenticated, kindInfo{"unauthenticated", http.StatusUnauthorized, "로그인이 필요합니다."}},
	{ErrUnauthorized, kindInfo{"unauthorized", http.StatusForbidden, "권한이 없습니다."}},
	{ErrClassClosed, kindInfo{"class_closed", http.StatusConflict, "이미 종료된 모임입니다."}},
	{ErrClassAlreadyStarted, kindInfo{"class_already_started", http.StatusConflict, "이미 시작된 모임입니다."}},
	{ErrAlreadyEnrolled, kindInfo{"already_enrolled", http.StatusConflict, "이미 수강신청한 모임입니다."}},
	{ErrCapacityExceeded, kindInfo{"capacity_exceeded", http.StatusConflict, "수강 인원이 마감되었습니다."}},
	{ErrAttendDateInFuture, kindInfo{"attend_date_in_future", http.StatusUnprocessableEntity, "미래 날짜의 출석은 기록할 수 없습니다."}},
	{ErrAttendDateTooOld, kindInfo{"attend_date_too_old", http.StatusUnprocessableEntity, "출석 기록 가능 기간이 지났습니다."}},
	{ErrForeignEnrollment, kindInfo{"foreign_enrollment", http.StatusUnprocessableEntity, "이 모임의 수강생이 아닌 항목이 포함되어 있습니다."}},
	{ErrInvalidCredentials, kindInfo{"invalid_credentials", http.StatusUnauthorized, "아이디 또는 비밀번호가 올바르지 않습니다."}},
	{ErrDuplicateAccount, kindInfo{"duplicate_account", http.StatusConflict, "이미 사용 중인 계정 정보입니다."}},
	{ErrInvalidInput, kindInfo{"invalid_input", http.StatusBadRequest, "입력값이 올바르지 않습니다."}},
	{ErrStorage, kindInfo{"storage_error", http.StatusServiceUnavailable, "일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요."}},
}

var unknown = kindInfo{"internal", http.StatusInternalServerError, "알 수 없는 오류가 발생했습니다."}

func lookup(err error) kindInfo {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kindInfo
		}
	}
	return unknown
}

// Kind returns the stable code of err, e.g. "capacity_exceeded".
func Kind(err error) string { return lookup(err).code }

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int { return lookup(err).status }

// Message returns the user-facing text for err. Invalid input keeps its field detail.
func Message(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	return lookup(err).message
}

// Known reports whether err belongs to the taxonomy.
func Known(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return true
		}
	}
	return false
}

// AsStorage passes taxonomy errors through and wraps anything else as ErrStorage.
func AsStorage(err error) error {
	if err == nil || Known(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout: %v", ErrStorage, err)
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// ValidationError is an ErrInvalidInput carrying the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
