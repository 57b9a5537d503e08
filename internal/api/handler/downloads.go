// 文件路径: internal/api/handler/downloads.go
// 模块说明: 这是 internal 模块里的 downloads 逻辑，列出客户端需要的 provider 与规则集下载项，可选预取正文。
package handler

import (
	"net/http"
	"strconv"

	"github.com/thsrite/configflow/internal/api/requestctx"
	"github.com/thsrite/configflow/internal/prefetch"
	"github.com/thsrite/configflow/internal/provider"
)

// DownloadsResponse is the JSON body of GET /api/downloads.
type DownloadsResponse struct {
	Success    bool                `json:"success"`
	Providers  []provider.Download `json:"providers"`
	Rulesets   []provider.Download `json:"rulesets"`
	Prefetched int                 `json:"prefetched"`
}

// DownloadsHandler lists provider and ruleset downloads.
type DownloadsHandler struct {
	BaseURL    string
	Prefetcher *prefetch.Prefetcher
}

func NewDownloadsHandler(base string, prefetcher *prefetch.Prefetcher) *DownloadsHandler {
	return &DownloadsHandler{BaseURL: base, Prefetcher: prefetcher}
}

// List handles GET /api/downloads[?prefetch=1].
func (h *DownloadsHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := requestctx.SnapshotFromContext(r.Context())
	if snap == nil {
		respondError(w, http.StatusInternalServerError, "snapshot missing / 缺少配置快照")
		return
	}
	base := baseURL(r, h.BaseURL)
	resp := DownloadsResponse{
		Success:   true,
		Providers: ensureSlice(provider.ListProviderDownloads(snap, base)),
		Rulesets:  ensureSlice(provider.ListRulesetDownloads(snap, base)),
	}
	if wantPrefetch(r) && h.Prefetcher != nil {
		p := h.Prefetcher.WithBase(snap.EffectiveBase(base))
		resp.Prefetched = p.Fill(r.Context(), resp.Providers)
		resp.Prefetched += p.Fill(r.Context(), resp.Rulesets)
	}
	respondJSON(w, http.StatusOK, resp)
}

func wantPrefetch(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("prefetch"))
	return ok
}

func ensureSlice(items []provider.Download) []provider.Download {
	if items == nil {
		return []provider.Download{}
	}
	return items
}
