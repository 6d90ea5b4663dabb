package entities

import (
	"time"

	"github.com/google/uuid"
)

// LongRunningJob records the progress of a background job.
type LongRunningJob struct {
	ID        uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string     `gorm:"size:200;index;not null" json:"name"`
	Step      string     `gorm:"size:500" json:"step"`
	Progress  float64    `json:"progress"`
	StartTime time.Time  `gorm:"index;not null" json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Succeeded bool       `json:"succeeded"`
	Exception string     `gorm:"type:text" json:"exception,omitempty"`
}

// TableName returns the table name for GORM.
func (LongRunningJob) TableName() string {
	return "long_running_jobs"
}
