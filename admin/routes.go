package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/maxpert/logcursor/telemetry"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the admin HTTP routes
func NewRouter(handlers *AdminHandlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handlers.handleHealth)

	if metrics := telemetry.GetMetricsHandler(); metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/topics/{topic}", func(r chi.Router) {
		r.Use(AuthMiddleware)

		r.Get("/offsets/next", handlers.wrapWithTopic(handlers.handleNextOffsets))
		r.Get("/cursors/latest", handlers.wrapWithTopic(handlers.handleLatestCursors))
		r.Get("/cursors/watched", handlers.wrapWithTopic(handlers.handleWatchedMarks))
		r.Get("/config", handlers.wrapWithTopic(handlers.handleTopicConfig))

		r.Post("/messages", handlers.wrapWithTopic(handlers.handleWriteKeyedMessage))
		r.Post("/partitions/{partition}/messages", handlers.wrapWithPartition(handlers.handleWriteMessage))
		r.Get("/partitions/{partition}/records", handlers.wrapWithPartition(handlers.handleReadAfter))
	})

	log.Debug().Msg("Admin endpoints registered at /topics/{topic}/*")
	return r
}

// Wrapper helpers that extract URL params and call the handlers

func (h *AdminHandlers) wrapWithTopic(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := chi.URLParam(r, "topic")
		if topic == "" {
			writeErrorResponse(w, http.StatusBadRequest, "topic name is required")
			return
		}
		fn(w, r, topic)
	}
}

func (h *AdminHandlers) wrapWithPartition(fn func(http.ResponseWriter, *http.Request, string, string)) http.HandlerFunc {
	return h.wrapWithTopic(func(w http.ResponseWriter, r *http.Request, topic string) {
		partition := chi.URLParam(r, "partition")
		if partition == "" {
			writeErrorResponse(w, http.StatusBadRequest, "partition is required")
			return
		}
		fn(w, r, topic, partition)
	})
}
