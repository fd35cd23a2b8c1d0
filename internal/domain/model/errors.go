package model

import (
	"errors"
	"fmt"
)

// エラーの種類
type ErrorKind string

const (
	KindValidation     ErrorKind = "VALIDATION"
	KindNetwork        ErrorKind = "NETWORK"
	KindAuthExpired    ErrorKind = "AUTH_EXPIRED"
	KindServerRejected ErrorKind = "SERVER_REJECTED"
	KindPersistence    ErrorKind = "PERSISTENCE"
	KindNotFound       ErrorKind = "NOT_FOUND"
)

// errors.Is で比較する用
var (
	ErrValidation     = errors.New("validation error")
	ErrNetwork        = errors.New("network error")
	ErrAuthExpired    = errors.New("auth expired")
	ErrServerRejected = errors.New("server rejected")
	ErrPersistence    = errors.New("persistence error")
	ErrNotFound       = errors.New("not found")
)

// CartError はカート同期で返すエラー。Kindで分岐する。
type CartError struct {
	Kind    ErrorKind
	Status  int // HTTPステータス（無ければ0）
	Message string
	Err     error
}

func (e *CartError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s(%d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CartError) Unwrap() error {
	return e.Err
}

// errors.Is(err, ErrNetwork) などを効かせる
func (e *CartError) Is(target error) bool {
	return kindSentinel(e.Kind) == target
}

func kindSentinel(k ErrorKind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNetwork:
		return ErrNetwork
	case KindAuthExpired:
		return ErrAuthExpired
	case KindServerRejected:
		return ErrServerRejected
	case KindPersistence:
		return ErrPersistence
	case KindNotFound:
		return ErrNotFound
	}
	return nil
}

func NewValidationError(message string) error {
	return &CartError{Kind: KindValidation, Message: message}
}

func NewNetworkError(op string, err error) error {
	return &CartError{Kind: KindNetwork, Message: op + " failed", Err: err}
}

func NewAuthExpiredError(message string) error {
	return &CartError{Kind: KindAuthExpired, Status: 401, Message: message}
}

func NewServerRejectedError(status int, message string) error {
	return &CartError{Kind: KindServerRejected, Status: status, Message: message}
}

func NewPersistenceError(err error) error {
	return &CartError{Kind: KindPersistence, Message: "local cart write failed", Err: err}
}

func NewNotFoundError(resource string) error {
	return &CartError{Kind: KindNotFound, Status: 404, Message: resource + " not found"}
}

func AsCartError(err error) (*CartError, bool) {
	var ce *CartError
	ok := errors.As(err, &ce)
	return ce, ok
}

// KindOf は CartError 以外を NETWORK 扱いにする。
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if ce, ok := AsCartError(err); ok {
		return ce.Kind
	}
	return KindNetwork
}

func IsKind(err error, k ErrorKind) bool {
	return err != nil && KindOf(err) == k
}
