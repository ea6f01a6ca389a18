package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/coloc-game/backend/internal/relay"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func serveJSON(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

// JoinQR renders the participant join link for a session code as a QR
// PNG, so the GM can put it on a projector.
func JoinQR(rl *relay.Relay, publicURL string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan relay.View, 1)
		rl.Inbox() <- relay.GetState{Reply: reply}
		view := <-reply

		found := false
		for _, sess := range view.State.Sessions {
			if sess.SessionCode == code {
				found = true
				break
			}
		}
		if !found {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		joinURL := fmt.Sprintf("%s/?code=%s", publicURL, code)
		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			log.Error("qr encode failed", zap.String("code", code), zap.Error(err))
			http.Error(w, "failed to render qr", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
