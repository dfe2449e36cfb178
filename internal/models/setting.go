package models

import (
	"encoding/json"
	"time"
)

// Setting is a runtime tunable such as an alert threshold or the reconcile
// interval. Values are JSON so integers and future structured values share
// one table.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`
	Value     json.RawMessage `gorm:"type:jsonb"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"`
}
