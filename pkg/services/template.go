package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// ErrTemplateNotFound is returned when a template is not found.
var ErrTemplateNotFound = persistence.ErrTemplateNotFound

// Template handles template management and instantiation.
type Template struct {
	persistence persistence.Persistence
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewTemplate creates a new template service.
func NewTemplate(persistence persistence.Persistence, logger *slog.Logger) *Template {
	return &Template{
		persistence: persistence,
		validator:   validator.New(),
		logger:      logger.With("module", "template"),
	}
}

// CreateTemplateRequest represents the request to create a template.
type CreateTemplateRequest struct {
	Name              string                    `json:"name"`
	Description       string                    `json:"description"`
	Category          string                    `json:"category"`
	Definition        models.WorkflowDefinition `json:"definition"`
	OrchestrationType models.WorkflowType       `json:"orchestration_type"`
}

// Create stores a new template after validating its definition.
func (t *Template) Create(ctx context.Context, req *CreateTemplateRequest) (*models.WorkflowTemplate, error) {
	now := time.Now().UTC()

	template := &models.WorkflowTemplate{
		ID:                models.NewTemplateID(req.Name),
		Name:              strings.TrimSpace(req.Name),
		Description:       req.Description,
		Category:          req.Category,
		Definition:        req.Definition,
		OrchestrationType: req.OrchestrationType,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if template.OrchestrationType == "" {
		template.OrchestrationType = models.WorkflowTypeAgent
	}

	err := t.validator.Struct(template)
	if err != nil {
		return nil, NewValidationError("Create", "INVALID_TEMPLATE", err.Error(), ErrInvalidRequest)
	}

	err = template.Definition.Validate()
	if err != nil {
		return nil, NewValidationError("Create", "INVALID_DEFINITION", err.Error(), ErrInvalidDefinition)
	}

	err = t.persistence.TemplateRepository().Save(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	return template, nil
}

// FetchByID returns a template by id.
func (t *Template) FetchByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	template, err := t.persistence.TemplateRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if template == nil {
		return nil, ErrTemplateNotFound
	}

	return template, nil
}

// List returns all templates.
func (t *Template) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	templates, err := t.persistence.TemplateRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	return templates, nil
}

// InstantiateCustomizations overlays parts of the template's definition on
// the new workflow. Definition keys replace whole top-level fields (shallow
// merge); OrchestrationMode overrides the template's mode.
type InstantiateCustomizations struct {
	Definition        map[string]any           `json:"definition,omitempty"`
	OrchestrationMode models.OrchestrationMode `json:"orchestration_mode,omitempty"`
}

// InstantiateRequest customizes the workflow created from a template.
type InstantiateRequest struct {
	Name           string                     `json:"name"`
	Description    string                     `json:"description"`
	UserID         string                     `json:"user_id,omitempty"`
	Variables      map[string]any             `json:"variables,omitempty"`
	Customizations *InstantiateCustomizations `json:"customizations,omitempty"`
}

// Instantiate creates an independent workflow from the template's
// definition. The usage counter is bumped only after the workflow is
// stored; a failed instantiation leaves it untouched.
func (t *Template) Instantiate(ctx context.Context, templateID string, req *InstantiateRequest) (*models.Workflow, error) {
	template, err := t.FetchByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	definition, err := template.Definition.DeepCopy()
	if err != nil {
		return nil, fmt.Errorf("failed to copy template definition: %w", err)
	}

	if req.Customizations != nil {
		definition, err = overlayDefinition(definition, req.Customizations.Definition)
		if err != nil {
			return nil, NewValidationError("Instantiate", "INVALID_CUSTOMIZATION", err.Error(), ErrInvalidRequest)
		}

		if mode := req.Customizations.OrchestrationMode; mode != "" {
			if definition.Settings == nil {
				definition.Settings = &models.OrchestrationSettings{}
			}

			definition.Settings.Mode = mode
		}
	}

	for key, value := range req.Variables {
		if definition.Variables == nil {
			definition.Variables = make(map[string]any)
		}

		definition.Variables[key] = value
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = template.Name
	}

	description := req.Description
	if description == "" {
		description = template.Description
	}

	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:                 models.NewWorkflowID(name),
		Name:               name,
		Description:        description,
		WorkflowType:       template.OrchestrationType,
		Status:             models.WorkflowStatusDraft,
		WorkflowDefinition: *definition,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = t.validator.Struct(workflow)
	if err != nil {
		return nil, NewValidationError("Instantiate", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	err = workflow.WorkflowDefinition.Validate()
	if err != nil {
		return nil, NewValidationError("Instantiate", "INVALID_DEFINITION", err.Error(), ErrInvalidDefinition)
	}

	err = t.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to save instantiated workflow: %w", err)
	}

	err = t.persistence.TemplateRepository().IncrementUsage(ctx, template.ID)
	if err != nil {
		// the workflow exists either way; the counter is best-effort
		t.logger.ErrorContext(ctx, "failed to increment template usage",
			"template_id", template.ID, "error", err)
	}

	return workflow, nil
}

// overlayDefinition replaces top-level definition fields with the overlay's
// values via a JSON round-trip, so callers can swap e.g. the whole variables
// block or settings without hand-editing the node graph.
func overlayDefinition(definition *models.WorkflowDefinition, overlay map[string]any) (*models.WorkflowDefinition, error) {
	if len(overlay) == 0 {
		return definition, nil
	}

	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize definition: %w", err)
	}

	fields := make(map[string]any)

	err = json.Unmarshal(raw, &fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}

	for key, value := range overlay {
		fields[key] = value
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize merged definition: %w", err)
	}

	out := &models.WorkflowDefinition{}

	err = json.Unmarshal(merged, out)
	if err != nil {
		return nil, fmt.Errorf("invalid definition customization: %w", err)
	}

	return out, nil
}
