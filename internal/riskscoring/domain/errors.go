package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrVendorNotRegistered 供应商未注册，拒绝评分
	ErrVendorNotRegistered = errors.New("vendor not registered")
	// ErrAlertNotFound 告警不存在
	ErrAlertNotFound = errors.New("alert not found")
	// ErrDuplicateSubmission 幂等键已被其他请求占用
	ErrDuplicateSubmission = errors.New("duplicate submission key")
	// ErrStaleStatus 状态已被并发修改
	ErrStaleStatus = errors.New("alert status changed concurrently")
)

// ValidationError 请求参数不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError 创建校验错误
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError 存储读写失败，整个请求失败且不提交任何数据
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence 包装存储错误；nil 原样返回
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
