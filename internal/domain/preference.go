package domain

import "time"

// Preference keys persisted by the session store.
const (
	PrefAuth     = "auth"
	PrefLanguage = "language"
	PrefTheme    = "theme"
)

// Preference is one keyed, JSON-encoded value of the persisted session.
// Writes are last-write-wins per key.
type Preference struct {
	Key       string    `json:"key"        gorm:"type:varchar(64);primaryKey"`
	Value     string    `json:"value"      gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the database table name for Preference.
func (Preference) TableName() string { return "preferences" }
