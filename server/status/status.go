// Package status reports the health of the download directory and the
// current download.
package status

import (
	"encoding/json"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/transport"
)

type Status struct {
	DownloadPath   string `json:"download_path"`
	FreeSpace      string `json:"free_space,omitempty"`
	FreeSpaceBytes uint64 `json:"free_space_bytes,omitempty"`
	State          string `json:"state"`
	Downloading    bool   `json:"downloading"`
}

type Service struct {
	dm  *downloads.Manager
	dir string
}

func New(dm *downloads.Manager, dir string) *Service {
	return &Service{dm: dm, dir: dir}
}

func (s *Service) Status() Status {
	st := Status{DownloadPath: s.dir, State: "idle"}

	if free, err := transport.FreeSpace(s.dir); err == nil {
		st.FreeSpaceBytes = free
		st.FreeSpace = humanize.Bytes(free)
	}

	if d, err := s.dm.Current(); err == nil {
		state := d.Session().State()
		st.State = state.String()
		st.Downloading = !state.Terminal()
	}

	return st
}

func ApplyRouter(dm *downloads.Manager, dir string) func(chi.Router) {
	s := New(dm, dir)

	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		})
	}
}
