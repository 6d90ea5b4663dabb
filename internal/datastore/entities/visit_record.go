package entities

import "time"

// VisitRecord is one reader interaction: opening a book or page, or a search.
type VisitRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           *string   `gorm:"size:64;index" json:"userId,omitempty"`
	DateTime         time.Time `gorm:"index;not null" json:"dateTime"`
	BookID           *uint     `gorm:"index" json:"bookId,omitempty"`
	PageNumber       *int      `json:"pageNumber,omitempty"`
	SearchTerm       string    `gorm:"size:500" json:"searchTerm,omitempty"`
	IsFullTextSearch bool      `json:"isFullTextSearch"`
	Skip             *int      `json:"skip,omitempty"`
	Take             *int      `json:"take,omitempty"`
}

// TableName returns the table name for GORM.
func (VisitRecord) TableName() string {
	return "pdf_visit_records"
}
