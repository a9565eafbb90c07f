package rpc

import (
	"net/rpc"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
)

// Dependency injection container.
func Container(dm *downloads.Manager) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("Service", &Service{dm: dm}); err != nil {
		return nil, err
	}
	return server, nil
}

func ApplyRouter(server *rpc.Server, hub *Hub, dm *downloads.Manager) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/ws", WebSocket(hub, dm))
		r.Post("/http", Post(server))
	}
}
