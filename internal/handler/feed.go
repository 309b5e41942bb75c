package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/fitfinder/internal/locations"
	"github.com/mmeshcher/fitfinder/internal/realtime"
)

// GymsFeed подписывает клиента на новые академии штата и города.
func (h *Handler) GymsFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := realtime.Filter{State: q.Get("state"), City: q.Get("city")}
	if st, ok := locations.StateByAbbr(f.State); ok {
		f.State = st.Name
	}
	h.serveFeed(w, r, f)
}

// GymFeed подписывает клиента на новые оценки и комментарии академии.
func (h *Handler) GymFeed(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, realtime.Filter{GymID: chi.URLParam(r, "id")})
}

func (h *Handler) serveFeed(w http.ResponseWriter, r *http.Request, f realtime.Filter) {
	if h.feed == nil {
		writeStatus(w, http.StatusServiceUnavailable)
		return
	}
	// При ошибке рукопожатия ответ уже отправлен.
	if err := h.feed.Serve(w, r, f); err != nil {
		h.logger.Debug("websocket handshake failed", zap.Error(err))
	}
}
