// 文件路径: internal/api/handler/response.go
// 模块说明: 这是 internal 模块里的 response 逻辑，统一 JSON 错误体与文档正文的输出方式。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Helper to respond with JSON
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response JSON", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

// respondDocument writes a rendered document inline so clients display instead of download it.
func respondDocument(w http.ResponseWriter, contentType string, body []byte, headers map[string]string) {
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline")
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// baseURL prefers the ?base_url= query, then the configured default, then the request's own origin.
func baseURL(r *http.Request, fallback string) string {
	if v := strings.TrimSpace(r.URL.Query().Get("base_url")); v != "" {
		return v
	}
	if fallback != "" {
		return fallback
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + r.Host
}
