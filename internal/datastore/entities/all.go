package entities

// All returns every entity in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&Book{},
		&Page{},
		&Tag{},
		&TagValue{},
		&UnrevisedTextBackup{},
		&OCRQueueMarker{},
		&AIQueueMarker{},
		&GanjoorLink{},
		&PoemMatchFinding{},
		&LongRunningJob{},
		&Bookmark{},
		&VisitRecord{},
	}
}
