package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/thsrite/configflow/internal/rules"
)

// RulesHandler serves cached rule-library files referenced as /api/rules/local/{name}.
type RulesHandler struct {
	Resolver rules.LocalResolver
	Logger   *slog.Logger
}

func NewRulesHandler(resolver rules.LocalResolver, logger *slog.Logger) *RulesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RulesHandler{Resolver: resolver, Logger: logger}
}

func (h *RulesHandler) Local(w http.ResponseWriter, r *http.Request) {
	if h.Resolver == nil {
		respondError(w, http.StatusNotFound, rules.ErrRuleNotFound.Error())
		return
	}
	path, err := h.Resolver.ResolveLocal(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body, err := os.ReadFile(path)
	if err != nil {
		h.Logger.Error("read local rule failed", "path", path, "error", err)
		respondError(w, http.StatusInternalServerError, "read rule file failed / 读取规则文件失败")
		return
	}
	contentType := textContentType
	if rules.IsYAMLSource(path) {
		contentType = yamlContentType
	}
	respondDocument(w, contentType, body, nil)
}
