// Package apperr 定义贯穿音频处理流水线与 HTTP 层的错误分类。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
type Kind int

const (
	Internal Kind = iota
	InvalidAudioFormat
	DurationExceeded
	TranscriptionFailed
	EmptyInput
	SummarizationFailed
	StorageFailed
	FolderNotFound
	PersistenceFailed

	// HTTP 层使用的通用类别
	InvalidRequest
	Unauthorized
	Forbidden
	NotFound
	Conflict
)

var kindNames = map[Kind]string{
	Internal:            "Internal",
	InvalidAudioFormat:  "InvalidAudioFormat",
	DurationExceeded:    "DurationExceeded",
	TranscriptionFailed: "TranscriptionFailed",
	EmptyInput:          "EmptyInput",
	SummarizationFailed: "SummarizationFailed",
	StorageFailed:       "StorageFailed",
	FolderNotFound:      "FolderNotFound",
	PersistenceFailed:   "PersistenceFailed",
	InvalidRequest:      "InvalidRequest",
	Unauthorized:        "Unauthorized",
	Forbidden:           "Forbidden",
	NotFound:            "NotFound",
	Conflict:            "Conflict",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error 带类别的错误，Op 描述失败的操作
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New 创建带类别的错误
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf 以格式化消息作为原因创建错误
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf 返回错误链中第一个 *Error 的类别，没有则为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is 判断错误链中是否含有指定类别
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus 将错误类别映射为 HTTP 状态码：调用方可修正的输入问题为 4xx，上游或内部失败为 5xx
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidAudioFormat, DurationExceeded, EmptyInput, InvalidRequest:
		return http.StatusBadRequest
	case FolderNotFound, NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
