package rest

import (
	"github.com/go-chi/chi/v5"
)

func Container(args *ContainerArgs) *Handler {
	return ProvideHandler(ProvideService(args))
}

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := Container(args)
	return h.routes
}

func (h *Handler) routes(r chi.Router) {
	r.Post("/lookup", h.Lookup())

	r.Route("/download", func(r chi.Router) {
		r.Get("/", h.Status())
		r.Post("/", h.Start())
		r.Post("/stop", h.Stop())
		r.Get("/observations", h.Observations())
		r.Get("/report", h.Report())
		r.Get("/file", h.File())
	})
}
