package models

import "time"

type Complaint struct {
	ComplaintID string `gorm:"primaryKey"`
	ReporterID  string `gorm:"index"`
	TargetID    string `gorm:"index"`
	SessionID   string
	Reason      string
	Severity    string // "Low", "Medium", "Critical"
	Status      string // "new", "processed"
	CreatedAt   time.Time
}
