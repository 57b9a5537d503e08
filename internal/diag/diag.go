// 文件路径: internal/diag/diag.go
// 模块说明: 这是 internal 模块里的 diag 逻辑，收集渲染过程中的非致命问题，替代静默吞掉的异常。
package diag

import (
	"context"
	"fmt"
	"log/slog"
)

// Kind classifies a diagnostic.
type Kind int

const (
	DecodeFailure Kind = iota + 1
	DanglingReference
	MalformedCustomBase
	InvalidRegex
	UnsupportedNode
)

func (k Kind) String() string {
	switch k {
	case DecodeFailure:
		return "decode_failure"
	case DanglingReference:
		return "dangling_reference"
	case MalformedCustomBase:
		return "malformed_custom_base"
	case InvalidRegex:
		return "invalid_regex"
	case UnsupportedNode:
		return "unsupported_node"
	default:
		return "unknown"
	}
}

// Diagnostic 描述一次被跳过或降级处理的问题。
type Diagnostic struct {
	Kind    Kind
	Subject string
	Message string
	Err     error
}

func (d Diagnostic) String() string {
	if d.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", d.Kind, d.Subject, d.Message, d.Err)
	}
	return fmt.Sprintf("%s %s: %s", d.Kind, d.Subject, d.Message)
}

// List accumulates diagnostics for one render. The zero value is ready to use.
type List struct {
	entries []Diagnostic
}

// Add records a diagnostic.
func (l *List) Add(kind Kind, subject, message string, err error) {
	if l == nil {
		return
	}
	l.entries = append(l.entries, Diagnostic{Kind: kind, Subject: subject, Message: message, Err: err})
}

// Addf records a diagnostic with a formatted message.
func (l *List) Addf(kind Kind, subject, format string, args ...any) {
	l.Add(kind, subject, fmt.Sprintf(format, args...), nil)
}

// Merge appends all entries of other.
func (l *List) Merge(other *List) {
	if l == nil || other == nil {
		return
	}
	l.entries = append(l.entries, other.entries...)
}

// Entries returns a copy of the recorded diagnostics.
func (l *List) Entries() []Diagnostic {
	if l == nil {
		return nil
	}
	return append([]Diagnostic(nil), l.entries...)
}

// Len returns the number of diagnostics.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Count returns how many diagnostics have the given kind.
func (l *List) Count(kind Kind) int {
	n := 0
	for _, d := range l.Entries() {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Log writes every diagnostic at warn level.
func (l *List) Log(ctx context.Context, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, d := range l.Entries() {
		attrs := []any{"kind", d.Kind.String(), "subject", d.Subject}
		if d.Err != nil {
			attrs = append(attrs, "error", d.Err)
		}
		logger.WarnContext(ctx, d.Message, attrs...)
	}
}
