package entities

import "time"

// Page is one scanned page of a Book. PageNumber is unique within a Book.
type Page struct {
	ID                        uint       `gorm:"primaryKey" json:"id"`
	BookID                    uint       `gorm:"uniqueIndex:idx_pdf_pages_book_page;not null" json:"bookId"`
	PageNumber                int        `gorm:"uniqueIndex:idx_pdf_pages_book_page;not null" json:"pageNumber"`
	PageText                  string     `gorm:"type:text" json:"pageText"`
	OCRed                     bool       `gorm:"column:ocred;not null;default:false" json:"ocred"`
	OCRTime                   *time.Time `gorm:"column:ocr_time" json:"ocrTime,omitempty"`
	AIRevised                 bool       `gorm:"column:ai_revised;not null;default:false" json:"aiRevised"`
	FullResolutionImageWidth  int        `json:"fullResolutionImageWidth"`
	FullResolutionImageHeight int        `json:"fullResolutionImageHeight"`
	ThumbnailImageURL         string     `gorm:"size:2048" json:"thumbnailImageUrl"`

	// Relationship
	Tags []TagValue `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
}

// TableName returns the table name for GORM.
func (Page) TableName() string {
	return "pdf_pages"
}
