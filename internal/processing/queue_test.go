package processing

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/testutil"
)

func TestOCRQueueHandsOutEligibleBooksInIDOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.SeedBook(t, db, testutil.PublishedBook(1, false, false),
		testutil.PageSeed{Number: 2, Text: "دوم"},
		testutil.PageSeed{Number: 1, Text: "اول"})
	draft := testutil.PublishedBook(2, false, false)
	draft.Status = entities.BookStatusDraft
	testutil.SeedBook(t, db, draft)
	testutil.SeedBook(t, db, testutil.PublishedBook(3, true, false))
	withText := testutil.PublishedBook(4, false, false)
	withText.BookText = "stale aggregate"
	testutil.SeedBook(t, db, withText)

	q := NewQueue(db, KindOCR, testOptions()...)

	book, err := q.GetNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, uint(1), book.ID)
	require.Len(t, book.Pages, 2)
	assert.Equal(t, 1, book.Pages[0].PageNumber)
	assert.Equal(t, 2, book.Pages[1].PageNumber)

	book, err = q.GetNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, uint(4), book.ID)
	assert.Empty(t, book.BookText)

	book, err = q.GetNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestQueueNeverReturnsBelowHighWaterMark(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.SeedBook(t, db, testutil.PublishedBook(5, false, false))
	q := NewQueue(db, KindOCR, testOptions()...)

	book, err := q.GetNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, uint(5), book.ID)

	// A book published later with a lower id stays behind the mark.
	testutil.SeedBook(t, db, testutil.PublishedBook(3, false, false))
	book, err = q.GetNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, book)

	removed, err := q.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	book, err = q.GetNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, uint(3), book.ID)

	book, err = q.GetNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, uint(5), book.ID)
}

func TestAIQueueSelectsOCRedUnrevisedBooks(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.SeedBook(t, db, testutil.PublishedBook(1, false, false))
	testutil.SeedBook(t, db, testutil.PublishedBook(2, true, true))
	testutil.SeedBook(t, db, testutil.PublishedBook(3, true, false))

	q := NewQueue(db, KindAI, testOptions()...)

	book, err := q.GetNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, uint(3), book.ID)

	book, err = q.GetNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestQueueResetIsPerQueue(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.SeedBook(t, db, testutil.PublishedBook(1, false, false))
	testutil.SeedBook(t, db, testutil.PublishedBook(2, true, false))

	ocr := NewQueue(db, KindOCR, testOptions()...)
	ai := NewQueue(db, KindAI, testOptions()...)

	_, err := ocr.GetNext(ctx)
	require.NoError(t, err)
	_, err = ai.GetNext(ctx)
	require.NoError(t, err)

	_, err = ocr.Reset(ctx)
	require.NoError(t, err)

	book, err := ai.GetNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, book, "resetting the OCR queue must not release AI claims")

	book, err = ocr.GetNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, uint(1), book.ID)
}

func TestQueuePublishesEventsAndMetrics(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.SeedBook(t, db, testutil.PublishedBook(1, false, false))

	publisher := &recordingPublisher{}
	m, registry := newTestMetrics(t)
	q := NewQueue(db, KindOCR, testOptions(WithEvents(publisher), WithMetrics(m))...)

	_, err := q.GetNext(ctx)
	require.NoError(t, err)
	_, err = q.GetNext(ctx)
	require.NoError(t, err)
	_, err = q.Reset(ctx)
	require.NoError(t, err)

	assert.Equal(t, []events.Kind{events.KindQueueClaimed, events.KindQueueReset}, publisher.kinds())

	count, err := promtest.GatherAndCount(registry, "naskban_queue_claims_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one found and one empty series")
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("ai")
	require.NoError(t, err)
	assert.Equal(t, KindAI, kind)

	_, err = ParseKind("pdf")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
