// Package audit records and lists the immutable trail of student mutations.
package audit

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/segmentio/ksuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"student-records/internal/access"
	"student-records/internal/diff"
	"student-records/internal/models"
	"student-records/internal/util"
)

const (
	DefaultPageSize = 20
	EntityStudent   = "Student"
)

// Entry is one mutation handed to the recorder after it committed.
// Before is nil for creates and After is nil for deletes.
type Entry struct {
	Actor      *access.Principal
	Action     string
	EntityType string
	EntityID   string
	Before     diff.Fields
	After      diff.Fields
	Origin     access.Origin
}

// Filter narrows an audit listing. Empty fields do not constrain.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Start      time.Time
	End        time.Time
}

// Item is an audit entry with its actor resolved for display.
type Item struct {
	ID         string              `json:"id"`
	Action     string              `json:"action"`
	EntityType string              `json:"entityType"`
	EntityID   string              `json:"entityId"`
	Actor      string              `json:"actor"`
	ActorRole  string              `json:"actorRole,omitempty"`
	Changes    models.AuditChanges `json:"changes"`
	IP         string              `json:"ip"`
	UserAgent  string              `json:"userAgent"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// Page is one page of audit items.
type Page struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"limit"`
	Total      int64  `json:"total"`
	TotalPages int    `json:"totalPages"`
}

// Recorder persists audit entries. It never touches student rows.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record stores e with its field-level delta and returns the stored row.
func (r *Recorder) Record(ctx context.Context, e Entry) (models.AuditLog, error) {
	now := r.now()
	id, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return models.AuditLog{}, util.Upstream("generate audit id", err)
	}

	row := models.AuditLog{
		ID:         id.String(),
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Changes: datatypes.NewJSONType(models.AuditChanges{
			Before: e.Before,
			After:  e.After,
			Delta:  diff.Diff(e.Before, e.After),
		}),
		IP:        truncate(e.Origin.IP, 64),
		UserAgent: truncate(e.Origin.UserAgent, 255),
		CreatedAt: now,
	}
	if e.Actor != nil && e.Actor.UserID != 0 {
		uid := e.Actor.UserID
		row.ActorID = &uid
	}

	if err := r.db.WithContext(ctx).Omit("Actor").Create(&row).Error; err != nil {
		return models.AuditLog{}, util.Upstream("write audit entry", err)
	}
	return row, nil
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, f Filter, page, pageSize int) (Page, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	base := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if a := strings.ToUpper(strings.TrimSpace(f.Action)); a != "" {
		base = base.Where("action = ?", a)
	}
	if f.EntityType != "" {
		base = base.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		base = base.Where("entity_id = ?", f.EntityID)
	}
	if !f.Start.IsZero() {
		base = base.Where("created_at >= ?", f.Start.UTC())
	}
	if !f.End.IsZero() {
		base = base.Where("created_at < ?", f.End.UTC())
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page{}, util.Upstream("count audit entries", err)
	}

	var rows []models.AuditLog
	if err := base.Session(&gorm.Session{}).
		Preload("Actor").
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error; err != nil {
		return Page{}, util.Upstream("list audit entries", err)
	}

	items := make([]Item, 0, len(rows))
	for i := range rows {
		items = append(items, toItem(&rows[i]))
	}
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page{Items: items, Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}, nil
}

func toItem(l *models.AuditLog) Item {
	it := Item{
		ID:         l.ID,
		Action:     l.Action,
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		Actor:      "system",
		Changes:    l.Changes.Data(),
		IP:         l.IP,
		UserAgent:  l.UserAgent,
		CreatedAt:  l.CreatedAt.UTC(),
	}
	switch {
	case l.Actor != nil:
		it.Actor = l.Actor.Email
		it.ActorRole = l.Actor.Role
	case l.ActorID != nil:
		// account deleted after the fact
		it.Actor = "deleted user"
	}
	return it
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
