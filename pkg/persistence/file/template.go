package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// TemplateRepository handles template-record file operations.
type TemplateRepository struct {
	root string
	mu   sync.Mutex
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(root string) *TemplateRepository {
	return &TemplateRepository{root: root}
}

func (tr *TemplateRepository) dir() string {
	return filepath.Join(tr.root, "workflow_templates")
}

// Save writes the template to disk.
func (tr *TemplateRepository) Save(_ context.Context, template *models.WorkflowTemplate) error {
	if err := validateID(template.ID); err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	return writeRecord(tr.dir(), template.ID, template)
}

// GetByID loads a template by id. Returns (nil, nil) when absent.
func (tr *TemplateRepository) GetByID(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	template := &models.WorkflowTemplate{}

	err := readRecord(tr.dir(), id, template)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return template, nil
}

// List returns all templates sorted by name.
func (tr *TemplateRepository) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	ids, err := listRecordIDs(tr.dir())
	if err != nil {
		return nil, err
	}

	templates := make([]*models.WorkflowTemplate, 0, len(ids))

	for _, id := range ids {
		template, err := tr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if template != nil {
			templates = append(templates, template)
		}
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})

	return templates, nil
}

// IncrementUsage bumps the template's usage counter by one. The read and
// write happen under the repository mutex so concurrent instantiations do
// not lose increments.
func (tr *TemplateRepository) IncrementUsage(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	template := &models.WorkflowTemplate{}

	err := readRecord(tr.dir(), id, template)
	if errors.Is(err, os.ErrNotExist) {
		return persistence.ErrTemplateNotFound
	}

	if err != nil {
		return err
	}

	template.UsageCount++

	return writeRecord(filepath.Join(tr.root, "workflow_templates"), id, template)
}
