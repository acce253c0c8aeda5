package rest

import (
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/piratechad/media-grab/server/internal/stream"
)

var (
	service *Service
	handler *Handler

	serviceOnce sync.Once
	handlerOnce sync.Once
)

func ProvideService(args *ContainerArgs) *Service {
	serviceOnce.Do(func() {
		service = NewService(args.Config, args.Tools)
	})
	return service
}

func ProvideHandler(args *ContainerArgs, svc *Service) *Handler {
	handlerOnce.Do(func() {
		handler = &Handler{
			service: svc,
			dispatcher: &stream.Dispatcher{
				Tools:   args.Tools,
				Timeout: args.Config.RequestTimeout(),
			},
			label: args.Tools.Extractor.Label,
		}
	})
	return handler
}

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := ProvideHandler(args, ProvideService(args))

	return func(r chi.Router) {
		r.Post("/extract", h.Extract)
		r.Get("/download", h.Download)
		r.Get("/health", h.Health)
	}
}
