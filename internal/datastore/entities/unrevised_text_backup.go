package entities

import "time"

// UnrevisedTextBackup holds the text a page carried immediately before an AI
// revision replaced it. Rows are append-only.
type UnrevisedTextBackup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PageID    uint      `gorm:"index;not null" json:"pageId"`
	PageText  string    `gorm:"type:text" json:"pageText"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`

	// Relationship
	Page *Page `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for GORM.
func (UnrevisedTextBackup) TableName() string {
	return "pdf_page_unrevised_texts"
}
