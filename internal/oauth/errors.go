package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 为错误分类，供传输层映射状态码。
type Kind int

const (
	KindServerError Kind = iota
	KindNotFound
	KindUnmet
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnmet:
		return "unmet"
	case KindUnsupported:
		return "unsupported"
	default:
		return "server_error"
	}
}

// 标准错误码。
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnknownClient  = "unknown_client"
	CodeServerError    = "server_error"
)

// Error 是带机器可读错误码与描述的 OAuth 错误。
// Param 在 Unsupported 类错误中记录出错的参数名。
type Error struct {
	Kind        Kind
	Status      int
	Code        string
	Description string
	Param       string
	Headers     map[string]string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// Data 返回标准的 JSON 错误体。
func (e *Error) Data() map[string]any {
	return map[string]any{
		"error":             e.Code,
		"error_description": e.Description,
	}
}

// Unmet 表示调用方提供的数据不满足前置条件。
func Unmet(description string) *Error {
	return &Error{
		Kind:        KindUnmet,
		Status:      http.StatusBadRequest,
		Code:        CodeInvalidRequest,
		Description: description,
	}
}

// Unsupported 表示参数取值不在 Discovery 声明的支持列表中。
func Unsupported(param string) *Error {
	return &Error{
		Kind:        KindUnsupported,
		Status:      http.StatusBadRequest,
		Code:        CodeInvalidRequest,
		Description: fmt.Sprintf("Value for parameter %s is unsupported.", param),
		Param:       param,
	}
}

// UnknownClient 表示按 id 查找客户端未命中。
func UnknownClient(id string) *Error {
	return &Error{
		Kind:        KindNotFound,
		Status:      http.StatusNotFound,
		Code:        CodeUnknownClient,
		Description: fmt.Sprintf("Client not found by id %s.", id),
		Headers: map[string]string{
			"Cache-Control": "no-store",
			"Pragma":        "no-cache",
		},
	}
}

// ServerError 包装下游 I/O 失败（网络、存储）。
func ServerError(description string, cause error) *Error {
	return &Error{
		Kind:        KindServerError,
		Status:      http.StatusInternalServerError,
		Code:        CodeServerError,
		Description: description,
		cause:       cause,
	}
}

// DescInternal 是未分类内部错误对外展示的描述。
const DescInternal = "Internal server error."

// From 将任意错误转换为 *Error；非 OAuth 错误视为 server_error，
// 描述固定为 DescInternal，原始错误只保留在 cause 中供日志使用。
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return ServerError(DescInternal, err)
}

// IsKind 判断错误链中是否存在指定分类的 OAuth 错误。
func IsKind(err error, kind Kind) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == kind
}
