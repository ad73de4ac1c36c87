package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/snapbooth/snapbooth/internal/models"
	"github.com/snapbooth/snapbooth/internal/repository"
)

// CapturesHandler serves capture history.
type CapturesHandler struct {
	records repository.CaptureRepository
}

// NewCapturesHandler creates a capture history handler.
func NewCapturesHandler(records repository.CaptureRepository) *CapturesHandler {
	return &CapturesHandler{records: records}
}

// ListCapturesInput is the input for the capture history endpoint.
type ListCapturesInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum number of records"`
}

// ListCapturesOutput is the output for the capture history endpoint.
type ListCapturesOutput struct {
	Body struct {
		Captures []*models.CaptureRecord `json:"captures"`
		Total    int64                   `json:"total"`
	}
}

// Register registers the capture history route with the API.
func (h *CapturesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listCaptures",
		Method:      "GET",
		Path:        "/api/v1/captures",
		Summary:     "List capture history",
		Tags:        []string{"Capture"},
	}, h.List)
}

// List returns recent capture records, newest first.
func (h *CapturesHandler) List(ctx context.Context, input *ListCapturesInput) (*ListCapturesOutput, error) {
	records, err := h.records.List(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list captures", err)
	}
	total, err := h.records.Count(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count captures", err)
	}
	out := &ListCapturesOutput{}
	out.Body.Captures = records
	out.Body.Total = total
	return out, nil
}
