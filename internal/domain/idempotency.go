package domain

import "time"

// Idempotency records the response of a console write, keyed by
// (operator, scope, key), so a replayed request returns the stored response
// instead of issuing a second remote write. Scope is "METHOD route".
// A record with Status 0 is a reservation for a write still running.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Operator  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_operator_scope_key,priority:1"`
	Scope     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_operator_scope_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_operator_scope_key,priority:3"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	Body      []byte    `gorm:"type:BLOB"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Pending reports whether the write holding this key has not finished yet.
func (i *Idempotency) Pending() bool { return i.Status == 0 }
