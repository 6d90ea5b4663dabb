package repository

import (
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrBookNotFound indicates the requested book does not exist.
	ErrBookNotFound = errors.NewStd("book not found")

	// ErrPageNotFound indicates the requested page does not exist.
	ErrPageNotFound = errors.NewStd("page not found")

	// ErrTagNotFound indicates the requested tag does not exist.
	ErrTagNotFound = errors.NewStd("tag not found")

	// ErrLinkNotFound indicates the requested Ganjoor link does not exist.
	ErrLinkNotFound = errors.NewStd("ganjoor link not found")

	// ErrFindingNotFound indicates the requested poem-match finding does not exist.
	ErrFindingNotFound = errors.NewStd("poem match finding not found")

	// ErrJobNotFound indicates the requested long-running job does not exist.
	ErrJobNotFound = errors.NewStd("job not found")

	// ErrBookmarkNotFound indicates no bookmark matches.
	ErrBookmarkNotFound = errors.NewStd("bookmark not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.NewStd("duplicate key")
)

// mysqlDuplicateEntry is the MySQL server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique constraint violation from
// either supported driver.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translate maps GORM's not-found error to the given sentinel and unique
// violations to ErrDuplicateKey. Other errors pass through.
func translate(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case isDuplicateKey(err):
		return ErrDuplicateKey
	default:
		return err
	}
}
