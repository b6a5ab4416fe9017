package domain

import "time"

// Idempotency records the outcome of a previously processed unsafe request,
// keyed by (principal, scope, key). Scope is the route the key was used on,
// so the same key can be reused across unrelated endpoints. A replay returns
// the stored resource instead of executing side effects again.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Principal  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_principal_scope_key,priority:1"`
	Scope      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_principal_scope_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_principal_scope_key,priority:3"`
	ResourceID string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
