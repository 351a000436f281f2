package http

import (
	"encoding/json"
	"net/http"

	"mentalmaze-quiz-service/internal/app"
	"mentalmaze-quiz-service/internal/perf"
)

// RESTHandler serves the read-only views: the active-quiz listing,
// leaderboards, and observer aggregates.
type RESTHandler struct {
	lifecycle *app.Lifecycle
	board     *app.LeaderboardEngine
	obs       *perf.Observer
}

func NewRESTHandler(lifecycle *app.Lifecycle, board *app.LeaderboardEngine, obs *perf.Observer) *RESTHandler {
	return &RESTHandler{lifecycle: lifecycle, board: board, obs: obs}
}

func (h *RESTHandler) ActiveQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.lifecycle.ActiveQuizzes(r.Context())
	if err != nil {
		http.Error(w, "active quizzes unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, quizzes)
}

func (h *RESTHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	board, err := h.board.Rank(r.Context(), quizID)
	if err != nil {
		http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, board)
}

func (h *RESTHandler) Stats(w http.ResponseWriter, r *http.Request) {
	type opStats struct {
		Count  int64  `json:"count"`
		Errors int64  `json:"errors"`
		Slow   int64  `json:"slow"`
		AvgMS  int64  `json:"avgMs"`
		MaxMS  int64  `json:"maxMs"`
		Op     string `json:"op"`
	}
	stats := h.obs.Stats()
	out := make([]opStats, 0, len(stats))
	for op, s := range stats {
		out = append(out, opStats{
			Op:     op,
			Count:  s.Count,
			Errors: s.Errors,
			Slow:   s.Slow,
			AvgMS:  s.Avg().Milliseconds(),
			MaxMS:  s.MaxDur.Milliseconds(),
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
