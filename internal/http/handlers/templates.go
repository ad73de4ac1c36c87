package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/snapbooth/snapbooth/internal/template"
)

// TemplateHandler lists templates and switches the active selection.
type TemplateHandler struct {
	catalog TemplateCatalog
}

// NewTemplateHandler creates a template handler.
func NewTemplateHandler(catalog TemplateCatalog) *TemplateHandler {
	return &TemplateHandler{catalog: catalog}
}

// ListTemplatesInput is the input for the template listing endpoint.
type ListTemplatesInput struct{}

// ListTemplatesOutput is the output for the template listing endpoint.
type ListTemplatesOutput struct {
	Body struct {
		Templates []template.Summary `json:"templates"`
		Active    string             `json:"active"`
	}
}

// SelectTemplateInput is the input for the template selection endpoint.
type SelectTemplateInput struct {
	Name string `path:"name" doc:"Template name"`
}

// SelectTemplateOutput is the output for the template selection endpoint.
type SelectTemplateOutput struct {
	Body struct {
		Active string `json:"active"`
	}
}

// Register registers the template routes with the API.
func (h *TemplateHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listTemplates",
		Method:      "GET",
		Path:        "/api/v1/templates",
		Summary:     "List templates",
		Tags:        []string{"Templates"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "selectTemplate",
		Method:      "POST",
		Path:        "/api/v1/templates/{name}/select",
		Summary:     "Select the active template",
		Tags:        []string{"Templates"},
	}, h.Select)
}

// List returns all loaded templates.
func (h *TemplateHandler) List(ctx context.Context, input *ListTemplatesInput) (*ListTemplatesOutput, error) {
	out := &ListTemplatesOutput{}
	out.Body.Templates = h.catalog.List()
	_, out.Body.Active = h.catalog.Active()
	return out, nil
}

// Select switches the active template.
func (h *TemplateHandler) Select(ctx context.Context, input *SelectTemplateInput) (*SelectTemplateOutput, error) {
	if err := h.catalog.Select(input.Name); err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("template %s not found", input.Name), err)
	}
	out := &SelectTemplateOutput{}
	out.Body.Active = input.Name
	return out, nil
}
