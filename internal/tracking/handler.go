package tracking

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the open-pixel and click-redirect endpoints. Both must
// return a usable response no matter what happens internally: broken images
// and dead links in delivered mail are worse than a lost tracking event.
type Handler struct {
	svc *Service
}

// NewHandler creates a tracking HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the tracking endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/open/{token}", h.HandleOpen)
	r.Get("/click/{token}", h.HandleClick)
	return r
}

// HandleOpen redeems an open token and always serves the tracking pixel.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.svc.RedeemOpen(r.Context(), token); err != nil {
		logger.Warn("open redemption failed", "error", err)
	}
	h.servePixel(w)
}

// HandleClick redeems a click token and redirects to the destination URL.
// A missing url parameter is the only client error; redemption failures
// still redirect so the recipient lands somewhere.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	dest := r.URL.Query().Get("url")
	if dest == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	target, err := h.svc.RedeemClick(r.Context(), token, dest)
	if err != nil {
		logger.Warn("click redemption failed", "error", err)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}
