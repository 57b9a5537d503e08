// 文件路径: internal/decode/errors.go
// 模块说明: 这是 internal 模块里的 errors 逻辑，定义解码失败的错误类型。
package decode

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognized is returned for input that no decoder accepts.
	ErrUnrecognized = errors.New("unrecognized proxy link / 无法识别的代理链接")
	// ErrNotEncodable is returned when a node kind has no share-link form.
	ErrNotEncodable = errors.New("node kind has no share link / 该协议没有分享链接格式")
)

// Error 描述某个 scheme 的解码或编码失败。
type Error struct {
	Scheme string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Scheme, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Scheme, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

func fail(scheme, reason string, cause error) *Error {
	return &Error{Scheme: scheme, Reason: reason, Cause: cause}
}
