package model

import "time"

// TemplateStatus mirrors the moderation state of a catalog entry.
// Only approved templates are served to clients.
type TemplateStatus string

const (
	TemplateApproved TemplateStatus = "approved"
	TemplatePending  TemplateStatus = "pending"
	TemplateRejected TemplateStatus = "rejected"
)

// Template is a catalog entry served by the read-through template routes.
type Template struct {
	ID          string         `json:"id"          db:"id"`
	Title       string         `json:"title"       db:"title"`
	Description string         `json:"description" db:"description"`
	DemoImage   string         `json:"demoImage"   db:"demo_image"`
	Category    string         `json:"category"    db:"category"`
	CreatorID   string         `json:"creatorId"   db:"creator_id"`
	CreatorName string         `json:"creatorName" db:"creator_name"`
	IsFree      bool           `json:"isFree"      db:"is_free"`
	PointsCost  int            `json:"pointsCost"  db:"points_cost"`
	UsageCount  int            `json:"usageCount"  db:"usage_count"`
	Status      TemplateStatus `json:"status"      db:"status"`
	IsActive    bool           `json:"isActive"    db:"is_active"`
	CreatedAt   time.Time      `json:"createdAt"   db:"created_at"`
}
