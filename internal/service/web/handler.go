package web

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"hellod/internal/core/stats"
	"hellod/internal/shared/logger"
)

// StatsProvider 是 web 层读取统计数据的接口，用于与 stats 包解耦。
type StatsProvider interface {
	Snapshot() stats.Snapshot
}

type Handler struct {
	stats StatsProvider
	log   zerolog.Logger
}

func NewHandler(st StatsProvider) *Handler {
	return &Handler{stats: st, log: logger.WithComponent("web")}
}

// HandleStatus 处理 GET /api/status 请求
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.stats.Snapshot()); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode status response")
	}
}
