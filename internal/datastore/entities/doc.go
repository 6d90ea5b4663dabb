// Package entities defines the GORM entity models for the naskban library
// schema.
//
// # Library Entities
//
//   - Book: a scanned PDF publication with its aggregated text
//   - Page: one scanned page of a Book carrying OCR text and processing flags
//   - Tag, TagValue: page metadata such as table-of-contents titles
//
// # Pipeline Entities
//
//   - UnrevisedTextBackup: append-only log of page text replaced by AI revision
//   - OCRQueueMarker, AIQueueMarker: claim markers for the processing queues
//   - GanjoorLink: suggested cross-reference between a page and a Ganjoor poem
//   - PoemMatchFinding: batch poem-matching work item
//   - LongRunningJob: progress record for background jobs
//
// # Reader Entities
//
//   - Bookmark: per-user bookmark on a book or page
//   - VisitRecord: reading and search activity
package entities
