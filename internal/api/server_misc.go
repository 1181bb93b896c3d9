package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/portal_scribe/internal/session"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type rulesOutput struct {
		Body struct {
			Rules []session.RuleInfo `json:"rules"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-rules", Method: http.MethodGet, Path: "/api/v1/rules", Summary: "List the loaded mapping rules in match order", Tags: []string{"Rules"}},
		func(ctx context.Context, input *struct{}) (*rulesOutput, error) {
			rules, err := svc.Rules(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &rulesOutput{}
			out.Body.Rules = rules
			return out, nil
		})

	type statsOutput struct {
		Body session.Stats
	}
	huma.Register(api, huma.Operation{OperationID: "session-stats", Method: http.MethodGet, Path: "/api/v1/stats", Summary: "Session capture counters", Tags: []string{"Stats"}},
		func(ctx context.Context, input *struct{}) (*statsOutput, error) {
			stats, err := svc.Stats(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statsOutput{Body: stats}, nil
		})
}
