// 文件路径: internal/decode/decode.go
// 模块说明: 这是 internal 模块里的 decode 逻辑，按 scheme 分派到各协议解码器，并处理对象格式与多行内容。
package decode

import (
	"encoding/base64"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/thsrite/configflow/internal/model"
)

type decodeFunc func(body string) (model.Node, error)

type encodeFunc func(node model.Node) (string, error)

var (
	decoders = map[string]decodeFunc{}
	encoders = map[model.NodeKind]encodeFunc{}
)

// register 在各协议文件的 init 中调用。
func register(kind model.NodeKind, schemes []string, dec decodeFunc, enc encodeFunc) {
	for _, scheme := range schemes {
		decoders[scheme] = dec
	}
	if enc != nil {
		encoders[kind] = enc
	}
}

// Schemes returns the registered link schemes.
func Schemes() []string {
	out := make([]string, 0, len(decoders))
	for scheme := range decoders {
		out = append(out, scheme)
	}
	return out
}

// Decode 解析单个代理链接或对象文本，返回第一个节点。
func Decode(raw string) (model.Node, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return model.Node{}, fail("", "empty input", ErrUnrecognized)
	}
	if looksLikeObject(content) {
		if node, err := decodeObject(content); err == nil {
			return node, nil
		}
	}
	if looksLikeList(content) {
		nodes, err := decodeObjectList(content)
		if err == nil && len(nodes) > 0 {
			return nodes[0], nil
		}
	}
	return decodeLine(content)
}

// DecodeAll 解析多行内容，无法解析的行被跳过并以错误形式返回。
func DecodeAll(content string) ([]model.Node, []error) {
	content = strings.TrimSpace(strings.TrimPrefix(content, "\ufeff"))
	if content == "" {
		return nil, nil
	}
	if looksLikeObject(content) {
		if node, err := decodeObject(content); err == nil {
			return []model.Node{node}, nil
		}
	}
	if looksLikeList(content) {
		if nodes, err := decodeObjectList(content); err == nil {
			return nodes, nil
		}
	}

	var (
		nodes []model.Node
		errs  []error
	)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "- "))
		node, err := decodeLine(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, errs
}

func decodeLine(line string) (model.Node, error) {
	if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
		return decodeObject(line)
	}
	scheme, body, ok := strings.Cut(line, "://")
	if !ok {
		return model.Node{}, fail("", "missing scheme", ErrUnrecognized)
	}
	dec, ok := decoders[strings.ToLower(scheme)]
	if !ok {
		return model.Node{}, fail(scheme, "unsupported scheme", ErrUnrecognized)
	}
	return dec(body)
}

func looksLikeObject(content string) bool {
	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "name:") || strings.HasPrefix(content, "type:") {
		return true
	}
	head := content
	if len(head) > 50 {
		head = head[:50]
	}
	return strings.Contains(head, "name:")
}

func looksLikeList(content string) bool {
	return strings.HasPrefix(content, "- name:") || strings.HasPrefix(content, "- type:")
}

// Encode 生成节点的分享链接。
func Encode(node model.Node) (string, error) {
	enc, ok := encoders[node.Kind()]
	if !ok {
		return "", fail(node.TypeName(), "encode", ErrNotEncodable)
	}
	return enc(node)
}

// decodeBase64 依次尝试标准与 URL 安全字母表，兼容缺失的填充。
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(s)
	trimmed := strings.TrimRight(s, "=")
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding} {
		out, err := enc.DecodeString(trimmed)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// DecodeBase64 decodes standard or URL-safe base64, with or without padding.
func DecodeBase64(s string) ([]byte, error) {
	return decodeBase64(s)
}

// IsBase64 reports whether s decodes as base64 to printable text.
func IsBase64(s string) bool {
	out, err := decodeBase64(s)
	if err != nil || len(out) == 0 {
		return false
	}
	for _, r := range string(out) {
		if r == utf8.RuneError {
			return false
		}
	}
	return true
}

func encodeBase64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// splitFragment 拆出 #name，名称做 URL 反转义，缺省使用 fallback。
func splitFragment(body, fallback string) (string, string) {
	rest, frag, ok := strings.Cut(body, "#")
	if !ok {
		return body, fallback
	}
	name, err := url.PathUnescape(frag)
	if err != nil {
		name = frag
	}
	if strings.TrimSpace(name) == "" {
		name = fallback
	}
	return rest, name
}

// splitQuery 拆出 ?query，并去掉 authority 末尾的 /。
func splitQuery(body string) (string, url.Values) {
	rest, query, ok := strings.Cut(body, "?")
	rest = strings.TrimSuffix(rest, "/")
	if !ok {
		return rest, url.Values{}
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return rest, url.Values{}
	}
	return rest, values
}

// splitHostPort 兼容 [v6]:port 与未加括号的 v6 地址。
func splitHostPort(hostport string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		idx := strings.LastIndex(hostport, ":")
		if idx <= 0 {
			return "", 0, err
		}
		host, portStr = strings.Trim(hostport[:idx], "[]"), hostport[idx+1:]
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		return "", 0, strconv.ErrSyntax
	}
	return host, port, nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func unescape(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func fragment(name string) string {
	if name == "" {
		return ""
	}
	return "#" + url.PathEscape(name)
}

// escapeUserinfo 转义 userinfo 中的保留字符，空格写成 %20 以便 PathUnescape 还原。
func escapeUserinfo(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
