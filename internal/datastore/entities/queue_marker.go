package entities

import "time"

// QueueMarker records that a queue handed out BookID. Only the maximum BookID
// of a queue table is ever consulted.
type QueueMarker struct {
	ID        uint      `gorm:"primaryKey"`
	BookID    uint      `gorm:"index;not null"`
	ClaimedAt time.Time `gorm:"autoCreateTime"`
}

// OCRQueueMarker is a claim in the OCR queue.
type OCRQueueMarker struct {
	QueueMarker
}

// TableName returns the table name for GORM.
func (OCRQueueMarker) TableName() string {
	return "ocr_queue"
}

// AIQueueMarker is a claim in the AI revision queue.
type AIQueueMarker struct {
	QueueMarker
}

// TableName returns the table name for GORM.
func (AIQueueMarker) TableName() string {
	return "ai_queue"
}
