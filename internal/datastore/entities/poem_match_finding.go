package entities

import (
	"time"

	"github.com/google/uuid"
)

// PoemMatchFinding is a batch job matching a book's pages against the poems
// of a Ganjoor category. A (GanjoorCatID, BookID) pair is registered once.
type PoemMatchFinding struct {
	ID                  uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	GanjoorCatID        int        `gorm:"uniqueIndex:idx_poem_match_cat_book;not null" json:"ganjoorCatId"`
	GanjoorCatFullTitle string     `gorm:"size:1000" json:"ganjoorCatFullTitle"`
	GanjoorCatFullURL   string     `gorm:"size:2048" json:"ganjoorCatFullUrl"`
	GanjoorPoemID       int        `json:"ganjoorPoemId"`
	BookID              uint       `gorm:"uniqueIndex:idx_poem_match_cat_book;not null" json:"bookId"`
	BookTitle           string     `gorm:"size:500" json:"bookTitle"`
	PageNumber          int        `json:"pageNumber"`
	Threshold           float64    `json:"threshold"`
	QueueTime           time.Time  `gorm:"not null" json:"queueTime"`
	QueuedByID          string     `gorm:"size:64" json:"queuedById"`
	Started             bool       `gorm:"index;not null;default:false" json:"started"`
	StartTime           *time.Time `json:"startTime,omitempty"`
	LastUpdate          *time.Time `json:"lastUpdate,omitempty"`
	LastUpdatedByID     *string    `gorm:"size:64" json:"lastUpdatedById,omitempty"`
	CurrentPoemID       int        `json:"currentPoemId"`
	CurrentPageNumber   int        `json:"currentPageNumber"`
	Progress            int        `json:"progress"`
	Finished            bool       `gorm:"index;not null;default:false" json:"finished"`
	FinishTime          *time.Time `json:"finishTime,omitempty"`
}

// TableName returns the table name for GORM.
func (PoemMatchFinding) TableName() string {
	return "ganjoor_poem_match_findings"
}
