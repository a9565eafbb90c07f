package rpc

import (
	"io"
	"log/slog"
	"net/http"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1 << 10,
	WriteBufferSize: 1 << 12,
}

// WebSocket streams every progress update as a JSON message. The current
// state is sent first so a late client does not wait for the next chunk.
func WebSocket(hub *Hub, dm *downloads.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", slog.Any("err", err))
			return
		}
		defer c.Close()

		updates, release := hub.subscribe(64)
		defer release()

		if d, err := dm.Current(); err == nil {
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteJSON(d.Session().Snapshot().Update); err != nil {
				return
			}
		}

		// the client only ever sends control frames
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := c.NextReader(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case u, ok := <-updates:
				if !ok {
					c.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
					return
				}
				c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteJSON(u); err != nil {
					slog.Debug("websocket write failed", slog.Any("err", err))
					return
				}
			case <-ticker.C:
				if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}
}

type rpcRequest struct {
	r  io.Reader
	rw io.Writer
}

func (r *rpcRequest) Read(p []byte) (n int, err error)  { return r.r.Read(p) }
func (r *rpcRequest) Write(p []byte) (n int, err error) { return r.rw.Write(p) }
func (r *rpcRequest) Close() error                      { return nil }

// Post serves a single JSON-RPC call per request.
func Post(server *rpc.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.Header().Set("Content-Type", "application/json")

		codec := jsonrpc.NewServerCodec(&rpcRequest{r: r.Body, rw: w})
		if err := server.ServeRequest(codec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
}
