package common

import (
	"errors"
	"fmt"
)

// AppError 应用级错误结构
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or "" when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// MessageOf returns the user-facing message of the outermost AppError,
// falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// 错误码常量
const (
	ErrCodeGitHubAPI    = "GITHUB_API_ERROR"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeAuthRequired = "AUTH_REQUIRED"
	ErrCodeCloneFailed  = "CLONE_FAILED"
	ErrCodeBuildFailed  = "BUILD_FAILED"
	ErrCodeFSContention = "FS_CONTENTION"
	ErrCodeSandboxBusy  = "SANDBOX_BUSY"
	ErrCodeScoring      = "SCORING_ERROR"
	ErrCodeDatabase     = "DATABASE_ERROR"
	ErrCodeNotification = "NOTIFICATION_ERROR"
	ErrCodeJob          = "JOB_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
)
