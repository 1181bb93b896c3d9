package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/portal_scribe/internal/scripts"
)

type exportIDInput struct {
	ExportID string `path:"export_id" doc:"Stored export script ID"`
}

func registerExportHandlers(api huma.API, svc Service) {
	type exportOutput struct {
		Body struct {
			Meta   scripts.Meta `json:"meta"`
			Script string       `json:"script"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "export-session", Method: http.MethodPost, Path: "/api/v1/exports", Summary: "Export the session history as one script", Tags: []string{"Exports"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Description string `json:"description,omitempty" doc:"Optional export description"`
			}
		}) (*exportOutput, error) {
			meta, text, err := svc.ExportAll(ctx, input.Body.Description)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &exportOutput{}
			out.Body.Meta = meta
			out.Body.Script = text
			return out, nil
		})

	type exportListOutput struct {
		Body struct {
			Exports []scripts.Meta `json:"exports"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-exports", Method: http.MethodGet, Path: "/api/v1/exports", Summary: "List stored export scripts", Tags: []string{"Exports"}},
		func(ctx context.Context, input *struct{}) (*exportListOutput, error) {
			metas, err := svc.ListExports(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &exportListOutput{}
			out.Body.Exports = metas
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-export", Method: http.MethodGet, Path: "/api/v1/exports/{export_id}", Summary: "Get a stored export with its script text", Tags: []string{"Exports"}},
		func(ctx context.Context, input *exportIDInput) (*exportOutput, error) {
			meta, text, err := svc.GetExport(ctx, input.ExportID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &exportOutput{}
			out.Body.Meta = meta
			out.Body.Script = text
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-export", Method: http.MethodDelete, Path: "/api/v1/exports/{export_id}", Summary: "Delete a stored export", Tags: []string{"Exports"}},
		func(ctx context.Context, input *exportIDInput) (*struct{}, error) {
			if err := svc.DeleteExport(ctx, input.ExportID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})
}
