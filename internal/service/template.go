package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/RahulSriwastaw/backend/internal/model"
	"github.com/RahulSriwastaw/backend/internal/repository"
)

// TemplateService serves the template catalog. Reads go to the store; if
// the store is unreachable the service falls back to a bundled JSON file
// so the catalog stays browsable during a database outage.
type TemplateService struct {
	templates    repository.TemplateRepository
	fallbackPath string // "" disables the fallback
	logger       *slog.Logger
}

// NewTemplateService creates a TemplateService. fallbackPath may be empty.
func NewTemplateService(templates repository.TemplateRepository, fallbackPath string, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		templates:    templates,
		fallbackPath: fallbackPath,
		logger:       logger,
	}
}

// ListApproved returns the approved, active templates.
func (s *TemplateService) ListApproved(ctx context.Context) ([]model.Template, error) {
	templates, err := s.templates.ListApproved(ctx)
	if err == nil {
		return templates, nil
	}

	fallback, ferr := s.loadFallback()
	if ferr != nil {
		s.logger.Error("template store and fallback both failed",
			slog.String("storeError", err.Error()),
			slog.String("fallbackError", ferr.Error()),
		)
		return nil, fmt.Errorf("service/template: listing templates: %w", err)
	}

	s.logger.Warn("template store unavailable, serving fallback file",
		slog.String("error", err.Error()),
		slog.Int("count", len(fallback)),
	)
	return fallback, nil
}

// GetByID returns one approved template.
func (s *TemplateService) GetByID(ctx context.Context, id string) (*model.Template, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/template: fetching template %s: %w", id, err)
	}
	return template, nil
}

func (s *TemplateService) loadFallback() ([]model.Template, error) {
	if s.fallbackPath == "" {
		return nil, fmt.Errorf("no fallback file configured")
	}

	data, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		return nil, fmt.Errorf("reading fallback file: %w", err)
	}

	var templates []model.Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parsing fallback file: %w", err)
	}
	return templates, nil
}
