package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/portal_scribe/internal/types"
)

type recordIDInput struct {
	RecordID string `path:"record_id" doc:"Captured-request record ID"`
}

func registerRecordHandlers(api huma.API, svc Service) {
	type recordListOutput struct {
		Body struct {
			Records []types.CapturedRequestRecord `json:"records"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-records", Method: http.MethodGet, Path: "/api/v1/records", Summary: "List captured-request records, newest first", Tags: []string{"Records"}},
		func(ctx context.Context, input *struct{}) (*recordListOutput, error) {
			recs, err := svc.ListRecords(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &recordListOutput{}
			out.Body.Records = recs
			return out, nil
		})

	type recordOutput struct {
		Body types.CapturedRequestRecord
	}
	huma.Register(api, huma.Operation{OperationID: "get-record", Method: http.MethodGet, Path: "/api/v1/records/{record_id}", Summary: "Get one captured-request record", Tags: []string{"Records"}},
		func(ctx context.Context, input *recordIDInput) (*recordOutput, error) {
			rec, err := svc.GetRecord(ctx, input.RecordID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &recordOutput{Body: rec}, nil
		})

	type scriptOutput struct {
		Body struct {
			RecordID string `json:"record_id"`
			Script   string `json:"script"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-record-script", Method: http.MethodGet, Path: "/api/v1/records/{record_id}/script", Summary: "Render a record as a script snippet", Tags: []string{"Records"}},
		func(ctx context.Context, input *recordIDInput) (*scriptOutput, error) {
			script, err := svc.RenderRecord(ctx, input.RecordID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &scriptOutput{}
			out.Body.RecordID = input.RecordID
			out.Body.Script = script
			return out, nil
		})
}
