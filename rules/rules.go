//go:build ruleguard

// Package gorules holds the project lint rules run by golangci-lint's
// gocritic ruleguard checker.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// StdLogInInternal flags the standard log package in internal packages.
// Everything under internal/ logs through internal/logger so module levels
// and file outputs apply.
//
//	log.Printf("queue reset: %d", n)                        // flagged
//	q.opts.log.Info("queue reset", logger.Int64("removed", n)) // preferred
func StdLogInInternal(m dsl.Matcher) {
	m.Import("log")

	m.Match(
		`log.Print($*_)`,
		`log.Printf($*_)`,
		`log.Println($*_)`,
		`log.Fatal($*_)`,
		`log.Fatalf($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use internal/logger instead of the standard log package")
}

// PrintInInternal flags printing to stdout from internal packages. Only
// cmd/ and tools/ own the terminal.
func PrintInInternal(m dsl.Matcher) {
	m.Match(
		`fmt.Print($*_)`,
		`fmt.Printf($*_)`,
		`fmt.Println($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("internal packages must not print; log through internal/logger or return the value")
}

// ErrorfVerb flags fmt.Errorf wrapping an error with %v or %s, which drops
// the error chain that errors.Is and errors.CategoryOf walk.
func ErrorfVerb(m dsl.Matcher) {
	m.Match(`fmt.Errorf($format, $*_, $err)`).
		Where(m["err"].Type.Is("error") && m["format"].Text.Matches(`%[vs]"$`)).
		Report("wrap $err with %w so its category survives")
}

// BuilderWithoutBuild flags an internal/errors builder chain that is never
// finished with Build(), which leaves an *ErrorBuilder where an error was meant.
func BuilderWithoutBuild(m dsl.Matcher) {
	m.Match(
		`return errors.New($err).Component($c).Category($cat)`,
		`return errors.Newf($*_).Component($c).Category($cat)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report("finish the error builder with .Build()")
}

// TestifyErrorAssertions suggests the error-aware testify helpers.
//
//	require.Nil(t, err)   // flagged
//	require.NoError(t, err)
func TestifyErrorAssertions(m dsl.Matcher) {
	m.Match(`require.Nil($t, $err)`).
		Where(m["err"].Type.Is("error")).
		Report("use require.NoError for errors").
		Suggest("require.NoError($t, $err)")

	m.Match(`assert.Nil($t, $err)`).
		Where(m["err"].Type.Is("error")).
		Report("use assert.NoError for errors").
		Suggest("assert.NoError($t, $err)")

	m.Match(`require.NotNil($t, $err)`).
		Where(m["err"].Type.Is("error")).
		Report("use require.Error for errors").
		Suggest("require.Error($t, $err)")

	m.Match(`assert.Equal($t, nil, $x)`).
		Report("use assert.Nil").
		Suggest("assert.Nil($t, $x)")
}

// GormContext flags GORM chains started on a bare handle in repository
// code. Repository queries take the caller's context so cancelled requests
// stop their queries.
func GormContext(m dsl.Matcher) {
	m.Match(
		`$db.Find($*_)`,
		`$db.First($*_)`,
		`$db.Create($*_)`,
		`$db.Save($*_)`,
		`$db.Delete($*_)`,
	).
		Where(m["db"].Type.Is("*gorm.DB") &&
			m["db"].Text.Matches(`^r\.db$`) &&
			m.File().PkgPath.Matches(`/internal/datastore/repository$`)).
		Report("start repository queries with $db.WithContext(ctx)")
}
