package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// TemplateRepository handles template-record database operations.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

// Save upserts the template.
func (r *TemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	definition, err := json.Marshal(template.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal template definition: %w", err)
	}

	query := `
		INSERT INTO workflow_templates (id, name, description, category, definition, orchestration_type, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , category = EXCLUDED.category
		  , definition = EXCLUDED.definition
		  , orchestration_type = EXCLUDED.orchestration_type
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		template.ID,
		template.Name,
		template.Description,
		template.Category,
		definition,
		template.OrchestrationType,
		template.UsageCount,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	return nil
}

// GetByID returns a template by its ID, or (nil, nil) when absent.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , category
		  , definition
		  , orchestration_type
		  , usage_count
		  , created_at
		  , updated_at
		FROM workflow_templates
		WHERE id = $1
	`

	template, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}

	return template, nil
}

// List returns all templates sorted by name.
func (r *TemplateRepository) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , category
		  , definition
		  , orchestration_type
		  , usage_count
		  , created_at
		  , updated_at
		FROM workflow_templates
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	templates := make([]*models.WorkflowTemplate, 0)

	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}

		templates = append(templates, template)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// IncrementUsage bumps usage_count atomically in the database.
func (r *TemplateRepository) IncrementUsage(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflow_templates SET usage_count = usage_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment usage for template %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrTemplateNotFound
	}

	return nil
}

func scanTemplate(row rowScanner) (*models.WorkflowTemplate, error) {
	template := &models.WorkflowTemplate{}

	var definition []byte

	err := row.Scan(
		&template.ID,
		&template.Name,
		&template.Description,
		&template.Category,
		&definition,
		&template.OrchestrationType,
		&template.UsageCount,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(definition, &template.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal template definition: %w", err)
	}

	return template, nil
}
