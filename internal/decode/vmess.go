// 文件路径: internal/decode/vmess.go
// 模块说明: 这是 internal 模块里的 vmess 逻辑，解析与生成 vmess://base64(json) 链接。
package decode

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/thsrite/configflow/internal/model"
)

const defaultVMessName = "VMess Node"

func init() {
	register(model.KindVMess, []string{"vmess"}, decodeVMess, encodeVMess)
}

// vmessLink 是 v2rayN 分享格式，port/aid 可能是数字也可能是字符串。
type vmessLink struct {
	V    string `json:"v,omitempty"`
	PS   string `json:"ps,omitempty"`
	Add  string `json:"add,omitempty"`
	Port any    `json:"port,omitempty"`
	ID   string `json:"id,omitempty"`
	Aid  any    `json:"aid,omitempty"`
	Scy  string `json:"scy,omitempty"`
	Net  string `json:"net,omitempty"`
	Type string `json:"type,omitempty"`
	Host string `json:"host,omitempty"`
	Path string `json:"path,omitempty"`
	TLS  string `json:"tls,omitempty"`
	SNI  string `json:"sni,omitempty"`
}

func decodeVMess(body string) (model.Node, error) {
	body, _ = splitFragment(body, "")
	decoded, err := decodeBase64(body)
	if err != nil {
		return model.Node{}, fail("vmess", "decode base64 body", err)
	}
	var link vmessLink
	if err := json.Unmarshal(trimJSON(decoded), &link); err != nil {
		return model.Node{}, fail("vmess", "parse json", err)
	}
	port, ok := model.ToInt(link.Port)
	if !ok && link.Port != nil {
		return model.Node{}, fail("vmess", "invalid port", strconv.ErrSyntax)
	}
	aid, _ := model.ToInt(link.Aid)

	name := link.PS
	if name == "" {
		name = defaultVMessName
	}
	network := link.Net
	if network == "" {
		network = "tcp"
	}
	cipher := link.Scy
	if cipher == "" {
		cipher = "auto"
	}
	fields := map[string]any{
		"uuid":    link.ID,
		"alterId": aid,
		"cipher":  cipher,
		"network": network,
		"tls":     strings.EqualFold(link.TLS, "tls"),
	}
	if link.SNI != "" {
		fields["servername"] = link.SNI
	}
	switch network {
	case "ws":
		path := link.Path
		if path == "" {
			path = "/"
		}
		opts := map[string]any{"path": path}
		if link.Host != "" {
			opts["headers"] = map[string]any{"Host": link.Host}
		}
		fields["ws-opts"] = opts
	case "grpc":
		if link.Path != "" {
			fields["grpc-opts"] = map[string]any{"grpc-service-name": link.Path}
		}
	}
	return model.Node{
		Name:    name,
		Server:  link.Add,
		Port:    port,
		Enabled: true,
		Params:  model.BuildParams("vmess", fields),
	}, nil
}

func trimJSON(b []byte) []byte {
	s := strings.IndexByte(string(b), '{')
	e := strings.LastIndexByte(string(b), '}')
	if s == -1 || e == -1 || e < s {
		return b
	}
	return b[s : e+1]
}

func encodeVMess(node model.Node) (string, error) {
	p, ok := node.Params.(*model.VMess)
	if !ok {
		return "", fail("vmess", "params mismatch", ErrNotEncodable)
	}
	link := vmessLink{
		V:    "2",
		PS:   node.Name,
		Add:  node.Server,
		Port: strconv.Itoa(node.Port),
		ID:   p.UUID,
		Aid:  strconv.Itoa(p.AlterID),
		Scy:  p.Cipher,
		Net:  p.Network,
		Type: "none",
		SNI:  p.Servername,
	}
	if p.TLS {
		link.TLS = "tls"
	}
	switch p.Network {
	case "ws":
		link.Path = model.FieldString(p.WSOpts, "path")
		link.Host = model.FieldString(p.WSOpts, "headers.Host")
	case "grpc":
		link.Path = model.FieldString(p.GRPCOpts, "grpc-service-name")
	}
	data, err := json.Marshal(link)
	if err != nil {
		return "", fail("vmess", "marshal json", err)
	}
	return "vmess://" + encodeBase64(string(data)), nil
}
