package repository

// Table name constants used where a query cannot be driven by an entity type.
const (
	tableBooks        = "pdf_books"
	tablePages        = "pdf_pages"
	tableTagValues    = "page_tag_values"
	tableOCRQueue     = "ocr_queue"
	tableAIQueue      = "ai_queue"
	tableGanjoorLinks = "ganjoor_links"
	tableVisits       = "pdf_visit_records"
)
