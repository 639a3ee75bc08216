package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/name-guess-backend/internal/app"
	"github.com/DoyleJ11/name-guess-backend/internal/hub"
	"github.com/DoyleJ11/name-guess-backend/internal/ws"
)

type RouteOptions struct {
	PublicURL string
	WS        ws.Options
}

func SetupRoutes(h *hub.Hub, svc *app.Service, log *zap.Logger, opts RouteOptions) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/rooms", ListRooms(h, log))
	r.Get("/rooms/{id}/qr", RoomQR(h, opts.PublicURL))
	r.Get("/ws", ws.Handler(svc, log, opts.WS))
	return r
}
