package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 验证错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"

	// 检索错误
	ErrCodeIndexNotLoaded ErrorCode = "INDEX_NOT_LOADED"
	ErrCodeIndexEmpty     ErrorCode = "INDEX_EMPTY"

	// 生成错误
	ErrCodeGeneratorUnavailable   ErrorCode = "GENERATOR_UNAVAILABLE"
	ErrCodeMalformedUpstreamChunk ErrorCode = "MALFORMED_UPSTREAM_CHUNK"
	ErrCodeTimeout                ErrorCode = "TIMEOUT"

	// 会话错误
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewIndexNotLoadedError 索引尚未构建（需要先运行摄取任务）
func NewIndexNotLoadedError() *AppError {
	return &AppError{
		Code:     ErrCodeIndexNotLoaded,
		Message:  "vector index not loaded, run the ingest job first",
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusServiceUnavailable,
	}
}

// NewIndexEmptyError 索引已加载但没有任何向量
func NewIndexEmptyError() *AppError {
	return &AppError{
		Code:     ErrCodeIndexEmpty,
		Message:  "vector index is empty",
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusServiceUnavailable,
	}
}

// NewGeneratorUnavailableError 生成模型服务不可用（网络或超时），可恢复
func NewGeneratorUnavailableError(cause error) *AppError {
	return &AppError{
		Code:     ErrCodeGeneratorUnavailable,
		Message:  "generator service unavailable",
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// IsCode 判断err链上是否存在指定错误码的AppError
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}
