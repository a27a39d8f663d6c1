package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/RahulSriwastaw/backend/internal/apperror"
	"github.com/RahulSriwastaw/backend/internal/model"
	"github.com/RahulSriwastaw/backend/internal/repository"
)

// compile-time check that *DB implements repository.TemplateRepository
var _ repository.TemplateRepository = (*DB)(nil)

const templateColumns = `id, title, description, demo_image, category,
	creator_id, creator_name, is_free, points_cost, usage_count, status,
	is_active, created_at`

// ListApproved returns the approved, active catalog entries, newest first.
// Unapproved and deactivated templates are invisible to clients.
func (db *DB) ListApproved(ctx context.Context) ([]model.Template, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE status = ? AND is_active = 1
		 ORDER BY created_at DESC`,
		string(model.TemplateApproved),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing templates: %w", err)
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning template: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: listing templates: %w", err)
	}

	return templates, nil
}

// GetByID returns a single approved, active template.
// Anything else — absent, pending, rejected, deactivated — is NotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Template, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE id = ? AND status = ? AND is_active = 1`,
		id, string(model.TemplateApproved),
	)

	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("template", id)
		}
		return nil, fmt.Errorf("sqlite: getting template %s: %w", id, err)
	}
	return t, nil
}

// CreateTemplate inserts a catalog entry. Used by seeding and tests; the
// public API surface is read-only.
func (db *DB) CreateTemplate(ctx context.Context, t *model.Template) error {
	if t.ID == "" {
		t.ID = xid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO templates (`+templateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Title,
		t.Description,
		t.DemoImage,
		t.Category,
		t.CreatorID,
		t.CreatorName,
		t.IsFree,
		t.PointsCost,
		t.UsageCount,
		string(t.Status),
		t.IsActive,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting template %s: %w", t.Title, err)
	}
	return nil
}

func scanTemplate(row scanner) (*model.Template, error) {
	var (
		t      model.Template
		status string
	)
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.DemoImage,
		&t.Category,
		&t.CreatorID,
		&t.CreatorName,
		&t.IsFree,
		&t.PointsCost,
		&t.UsageCount,
		&status,
		&t.IsActive,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.TemplateStatus(status)
	return &t, nil
}
