package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/portal_scribe/internal/relay"
	"github.com/dgnsrekt/portal_scribe/internal/scripts"
	"github.com/dgnsrekt/portal_scribe/internal/session"
	"github.com/dgnsrekt/portal_scribe/internal/types"
)

// Service is the session surface the API exposes.
type Service interface {
	ListRecords(ctx context.Context) ([]types.CapturedRequestRecord, error)
	GetRecord(ctx context.Context, id string) (types.CapturedRequestRecord, error)
	RenderRecord(ctx context.Context, id string) (string, error)
	ExportAll(ctx context.Context, description string) (scripts.Meta, string, error)
	ListExports(ctx context.Context) ([]scripts.Meta, error)
	GetExport(ctx context.Context, id string) (scripts.Meta, string, error)
	DeleteExport(ctx context.Context, id string) error
	Rules(ctx context.Context) ([]session.RuleInfo, error)
	Stats(ctx context.Context) (session.Stats, error)
}

func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Portal Scribe API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/api/v1/stream", relay.SSEHandler(broker))

	registerRecordHandlers(api, svc)
	registerExportHandlers(api, svc)
	registerMiscHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *session.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case session.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case session.CodeRecordNotFound, session.CodeExportNotFound:
			return huma.Error404NotFound(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
