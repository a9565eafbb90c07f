package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
	"gopkg.in/yaml.v3"
)

type Handler struct {
	service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) Lookup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req LookupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		info, err := h.service.Lookup(r.Context(), req.URL)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(info); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func (h *Handler) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req downloads.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.URL == "" {
			http.Error(w, "missing url", http.StatusBadRequest)
			return
		}

		id, err := h.service.Start(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(StartResponse{ID: id.String()}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func (h *Handler) Stop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status, err := h.service.Stop(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(status); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func (h *Handler) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status, err := h.service.Status(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(status); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func (h *Handler) Observations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		obs, err := h.service.Observations(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(obs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// Report answers in JSON unless ?format=yaml is given.
func (h *Handler) Report() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := h.service.Report(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		switch r.URL.Query().Get("format") {
		case "yaml", "yml":
			w.Header().Set("Content-Type", "application/yaml")
			enc := yaml.NewEncoder(w)
			defer enc.Close()
			err = enc.Encode(report)
		default:
			w.Header().Set("Content-Type", "application/json")
			err = json.NewEncoder(w).Encode(report)
		}

		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// File sends the completed download as an attachment. With ?cleanup=true the
// server side copy is removed once it has been sent.
func (h *Handler) File() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := h.service.File(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		fd, err := os.Open(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		info, err := fd.Stat()
		if err != nil {
			fd.Close()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filepath.Base(path)))
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeContent(w, r, filepath.Base(path), info.ModTime(), fd)
		fd.Close()

		if cleanup, _ := strconv.ParseBool(r.URL.Query().Get("cleanup")); cleanup {
			if err := h.service.Cleanup(r.Context()); err != nil {
				slog.Error("failed to remove downloaded file", slog.String("path", path), slog.Any("err", err))
			}
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusCode(err))
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, source.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrUnavailable),
		errors.Is(err, downloads.ErrNoDownload):
		return http.StatusNotFound
	case errors.Is(err, source.ErrNoMatchingVariant),
		errors.Is(err, downloads.ErrNotActive),
		errors.Is(err, downloads.ErrNotCompleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
