// 文件路径: internal/api/middleware/token.go
// 模块说明: 这是 internal 模块里的 token 逻辑，每个请求加载一次配置快照，并校验 ?token= 是否等于 config_token。
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thsrite/configflow/internal/api/requestctx"
	"github.com/thsrite/configflow/internal/model"
)

// SnapshotGuard loads the snapshot for the request and enforces the config token.
// Without a configured token every request passes.
func SnapshotGuard(source model.SnapshotSource, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if source == nil {
				writeError(w, http.StatusServiceUnavailable, "snapshot source unavailable / 配置源不可用")
				return
			}
			snap, err := source.Snapshot(r.Context())
			if err != nil {
				logger.Error("load snapshot failed", "error", err)
				writeError(w, http.StatusInternalServerError, "load snapshot failed / 加载配置失败")
				return
			}
			expected := snap.SystemConfig.ConfigToken
			if expected != "" {
				token := strings.TrimSpace(r.URL.Query().Get("token"))
				if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
					writeError(w, http.StatusUnauthorized, "Invalid or missing token")
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithSnapshot(r.Context(), snap)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
