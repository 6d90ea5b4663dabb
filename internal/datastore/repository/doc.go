// Package repository provides repository interfaces and GORM implementations
// for the naskban library schema.
//
// # Transactions
//
// Every constructor takes a *gorm.DB. Services run multi-step operations by
// building repositories on the transaction handle:
//
//	err := db.Transaction(func(tx *gorm.DB) error {
//	    pages := repository.NewPageRepository(tx)
//	    books := repository.NewBookRepository(tx)
//	    ...
//	})
//
// # Error Handling
//
// All repositories return sentinel errors (ErrBookNotFound, ErrDuplicateKey,
// etc.) instead of leaking GORM or driver errors. Callers translate them into
// categorized errors at the service boundary.
//
// # Required Schema Constraints
//
//   - pdf_pages: UNIQUE(book_id, page_number)
//   - tags: UNIQUE(name)
//   - ganjoor_poem_match_findings: UNIQUE(ganjoor_cat_id, book_id)
//
// The uniqueness of non-rejected Ganjoor links cannot be expressed as a
// portable unique index; the link workflow checks it inside its transaction.
package repository
