package entities

import (
	"time"

	"github.com/google/uuid"
)

// Bookmark marks a book, or a page of it, for a user.
type Bookmark struct {
	ID       uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	UserID   string    `gorm:"size:64;index:idx_pdf_bookmarks_user_book;not null" json:"userId"`
	BookID   uint      `gorm:"index:idx_pdf_bookmarks_user_book;not null" json:"bookId"`
	PageID   *uint     `json:"pageId,omitempty"`
	Note     string    `gorm:"type:text" json:"note"`
	DateTime time.Time `gorm:"index;not null" json:"dateTime"`
}

// TableName returns the table name for GORM.
func (Bookmark) TableName() string {
	return "pdf_bookmarks"
}
