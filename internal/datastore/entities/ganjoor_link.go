package entities

import (
	"time"

	"github.com/google/uuid"
)

// ReviewResult is the moderation state of a suggestion.
type ReviewResult int

const (
	ReviewAwaiting ReviewResult = 0
	ReviewApproved ReviewResult = 1
	ReviewRejected ReviewResult = 2
)

// String returns the review result name.
func (r ReviewResult) String() string {
	switch r {
	case ReviewAwaiting:
		return "awaiting"
	case ReviewApproved:
		return "approved"
	case ReviewRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// GanjoorLink is a suggested cross-reference between a scanned page and a
// Ganjoor poem. At most one non-rejected link exists per
// (GanjoorPostID, BookID, PageNumber).
//
// Title and ExternalThumbnailImageURL are captured when the link is suggested
// and are never recomputed.
type GanjoorLink struct {
	ID                        uuid.UUID    `gorm:"type:char(36);primaryKey" json:"id"`
	GanjoorPostID             int          `gorm:"index:idx_ganjoor_links_target;not null" json:"ganjoorPostId"`
	GanjoorURL                string       `gorm:"size:2048" json:"ganjoorUrl"`
	GanjoorTitle              string       `gorm:"size:1000" json:"ganjoorTitle"`
	BookID                    uint         `gorm:"index:idx_ganjoor_links_target;not null" json:"bookId"`
	PageNumber                int          `gorm:"index:idx_ganjoor_links_target;not null" json:"pageNumber"`
	SuggestedByID             string       `gorm:"size:64;not null" json:"suggestedById"`
	SuggestionDate            time.Time    `gorm:"index;not null" json:"suggestionDate"`
	ReviewResult              ReviewResult `gorm:"index;not null;default:0" json:"reviewResult"`
	ReviewerID                *string      `gorm:"size:64" json:"reviewerId,omitempty"`
	ReviewDate                *time.Time   `json:"reviewDate,omitempty"`
	Synchronized              bool         `gorm:"not null;default:false" json:"synchronized"`
	SuggestedByMachine        bool         `gorm:"not null;default:false" json:"suggestedByMachine"`
	IsTextOriginalSource      bool         `gorm:"not null;default:false" json:"isTextOriginalSource"`
	Title                     string       `gorm:"size:1000" json:"title"`
	ExternalThumbnailImageURL string       `gorm:"size:2048" json:"externalThumbnailImageUrl"`
}

// TableName returns the table name for GORM.
func (GanjoorLink) TableName() string {
	return "ganjoor_links"
}
