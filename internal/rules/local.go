// 文件路径: internal/rules/local.go
// 模块说明: 这是 internal 模块里的 rules 逻辑，按规则库名称定位本地缓存的规则文件。
package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrRuleNotFound is returned when no cached file exists for a rule name.
var ErrRuleNotFound = errors.New("local rule file not found / 本地规则文件不存在")

// LocalResolver 根据规则名称返回本地规则文件路径。
type LocalResolver interface {
	ResolveLocal(name string) (string, error)
}

// DirResolver looks rule files up in a single directory.
type DirResolver struct {
	Dir string
}

var localExtensions = []string{"", ".yaml", ".yml", ".list", ".txt"}

// ResolveLocal 依次尝试原名与常见扩展名，拒绝包含路径分隔符的名称。
func (r DirResolver) ResolveLocal(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid rule name %q: %w", name, ErrRuleNotFound)
	}
	if r.Dir == "" {
		return "", fmt.Errorf("no local rule directory: %w", ErrRuleNotFound)
	}
	for _, ext := range localExtensions {
		path := filepath.Join(r.Dir, name+ext)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("rule %q: %w", name, ErrRuleNotFound)
}
