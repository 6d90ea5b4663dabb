package entities

// Well-known tag names used by the link workflow and the table of contents.
const (
	TagGanjoorLink = "Ganjoor Link"
	TagTitleInTOC  = "Title in TOC"
)

// Tag is a named page attribute.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:200;uniqueIndex;not null" json:"name"`
}

// TableName returns the table name for GORM.
func (Tag) TableName() string {
	return "tags"
}

// TagValue attaches a Tag to a Page.
// ValueSupplement carries a URL for link tags and the heading level for
// table-of-contents tags. Order is the position among values of the same tag
// on the page.
type TagValue struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	PageID          uint   `gorm:"index;not null" json:"pageId"`
	TagID           uint   `gorm:"index;not null" json:"tagId"`
	Value           string `gorm:"size:1000" json:"value"`
	ValueSupplement string `gorm:"size:2048" json:"valueSupplement"`
	Order           int    `gorm:"column:value_order" json:"order"`

	// Relationship
	Tag *Tag `gorm:"foreignKey:TagID" json:"tag,omitempty"`
}

// TableName returns the table name for GORM.
func (TagValue) TableName() string {
	return "page_tag_values"
}
