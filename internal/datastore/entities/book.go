package entities

import "time"

// BookStatus is the publication state of a Book.
type BookStatus int

const (
	// BookStatusDraft books are hidden from readers and the processing queues.
	BookStatusDraft BookStatus = 0
	// BookStatusPublished books are visible and eligible for processing.
	BookStatusPublished BookStatus = 1
)

// Book is a scanned PDF publication.
// OCRed, OCRTime, AIRevised and BookText are only mutated by the processing
// pipelines.
type Book struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:500;not null" json:"title"`
	AuthorsLine   string     `gorm:"size:1000" json:"authorsLine"`
	Status        BookStatus `gorm:"index;not null;default:0" json:"status"`
	CoverImageURL string     `gorm:"size:2048" json:"coverImageUrl"`
	OCRed         bool       `gorm:"column:ocred;index;not null;default:false" json:"ocred"`
	OCRTime       *time.Time `gorm:"column:ocr_time" json:"ocrTime,omitempty"`
	AIRevised     bool       `gorm:"column:ai_revised;index;not null;default:false" json:"aiRevised"`
	BookText      string     `gorm:"type:longtext" json:"bookText,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	// Relationship
	Pages []Page `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"pages,omitempty"`
}

// TableName returns the table name for GORM.
func (Book) TableName() string {
	return "pdf_books"
}
