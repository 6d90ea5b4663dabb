package poemmatch

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/ganjoor"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
	"github.com/rmuseum/naskban-go/internal/testutil"
)

// fakeCorpus serves fixed metadata and counts calls
type fakeCorpus struct {
	mu       sync.Mutex
	calls    int
	catErr   error
	pageErr  error
	lastPage string
}

func (c *fakeCorpus) Category(_ context.Context, id int) (*ganjoor.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.catErr != nil {
		return nil, c.catErr
	}
	return &ganjoor.Category{ID: id, Title: "غزلیات", FullURL: "/hafez/ghazal"}, nil
}

func (c *fakeCorpus) Page(_ context.Context, url string) (*ganjoor.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastPage = url
	if c.pageErr != nil {
		return nil, c.pageErr
	}
	return &ganjoor.Page{FullTitle: "حافظ » غزلیات", FullURL: url}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) TryPublish(e events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return true
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]events.Kind, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fixture struct {
	db        *gorm.DB
	corpus    *fakeCorpus
	publisher *recordingPublisher
	registry  *prometheus.Registry
	service   *Service
}

var baseTime = time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	testutil.SeedBook(t, db, testutil.PublishedBook(10, true, false), testutil.PageSeed{Number: 1})
	testutil.SeedBook(t, db, testutil.PublishedBook(11, true, false), testutil.PageSeed{Number: 1})
	draft := testutil.PublishedBook(12, false, false)
	draft.Status = entities.BookStatusDraft
	testutil.SeedBook(t, db, draft)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewPipelineMetrics(registry)
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		corpus:    &fakeCorpus{},
		publisher: &recordingPublisher{},
		registry:  registry,
	}
	f.service = NewService(db, f.corpus, m, f.publisher,
		logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))

	clock := baseTime
	f.service.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return f
}

func request(catID int, bookID uint) Request {
	return Request{CatID: catID, PoemID: 2130, BookID: bookID, PageNumber: 3, Threshold: 0.8}
}

func TestEnqueueCreatesFinding(t *testing.T) {
	f := newFixture(t)

	finding, err := f.service.Enqueue(context.Background(), "user-1", request(5, 10))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, finding.ID)
	assert.Equal(t, "/hafez/ghazal", finding.GanjoorCatFullURL)
	assert.Equal(t, "حافظ » غزلیات", finding.GanjoorCatFullTitle)
	assert.Equal(t, "/hafez/ghazal", f.corpus.lastPage, "the page lookup uses the category URL")
	assert.Equal(t, "کتاب 10", finding.BookTitle)
	assert.False(t, finding.Started)
	assert.False(t, finding.Finished)
	assert.Zero(t, finding.Progress)
	assert.Equal(t, 2130, finding.CurrentPoemID)
	assert.Equal(t, 3, finding.CurrentPageNumber)
	assert.Equal(t, "user-1", finding.QueuedByID)
	assert.Equal(t, []events.Kind{events.KindFindingQueued}, f.publisher.kinds())
}

func TestEnqueueIsUniquePerCategoryAndBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Enqueue(ctx, "user-1", request(5, 10))
	require.NoError(t, err)

	_, err = f.service.Enqueue(ctx, "user-1", request(5, 10))
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, msgAlreadyQueued, errors.UserMessage(err))
	assert.Equal(t, 2, f.corpus.calls, "the duplicate is rejected before calling the corpus")

	_, err = f.service.Enqueue(ctx, "user-1", request(5, 11))
	require.NoError(t, err)

	count, err := promtest.GatherAndCount(f.registry, "naskban_poem_match_findings_queued_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "success and error series")
}

func TestEnqueueDuplicateAfterFinishStillFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	finding, err := f.service.Enqueue(ctx, "user-1", request(5, 10))
	require.NoError(t, err)
	require.NoError(t, f.service.UpdateProgress(ctx, "worker", Progress{ID: finding.ID, Started: true, Finished: true, Progress: 100}))

	_, err = f.service.Enqueue(ctx, "user-1", request(5, 10))
	assert.True(t, errors.IsConflict(err))
}

func TestEnqueueCorpusFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.corpus.pageErr = errors.New(errors.NewStd("connection refused")).
		Category(errors.CategoryNetwork).
		Build()

	_, err := f.service.Enqueue(ctx, "user-1", request(5, 10))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))

	findings, err := f.service.Queue(ctx, false, false)
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Empty(t, f.publisher.kinds())
}

func TestEnqueueRequiresPublishedBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Enqueue(ctx, "user-1", request(5, 12))
	assert.True(t, errors.IsNotFound(err))

	_, err = f.service.Enqueue(ctx, "user-1", request(5, 99))
	assert.True(t, errors.IsNotFound(err))

	_, err = f.service.Enqueue(ctx, "user-1", request(0, 10))
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestQueueFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	queued, err := f.service.Enqueue(ctx, "user-1", request(5, 10))
	require.NoError(t, err)
	running, err := f.service.Enqueue(ctx, "user-1", request(5, 11))
	require.NoError(t, err)
	done, err := f.service.Enqueue(ctx, "user-1", request(6, 10))
	require.NoError(t, err)

	require.NoError(t, f.service.UpdateProgress(ctx, "worker", Progress{ID: running.ID, Started: true, Progress: 40}))
	require.NoError(t, f.service.UpdateProgress(ctx, "worker", Progress{ID: done.ID, Started: true, Finished: true, Progress: 100}))

	ids := func(findings []entities.PoemMatchFinding) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(findings))
		for i := range findings {
			out = append(out, findings[i].ID)
		}
		return out
	}

	testCases := []struct {
		name        string
		notStarted  bool
		notFinished bool
		want        []uuid.UUID
	}{
		{"all", false, false, []uuid.UUID{queued.ID, running.ID, done.ID}},
		{"not finished", false, true, []uuid.UUID{queued.ID, running.ID}},
		{"not started", true, false, []uuid.UUID{queued.ID}},
		{"not started and not finished", true, true, []uuid.UUID{queued.ID}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			findings, err := f.service.Queue(ctx, tc.notStarted, tc.notFinished)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, ids(findings))
		})
	}
}

func TestUpdateProgressLatchesStartAndFinish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	findings := repository.NewFindingRepository(f.db)

	finding, err := f.service.Enqueue(ctx, "user-1", request(5, 10))
	require.NoError(t, err)

	require.NoError(t, f.service.UpdateProgress(ctx, "worker-1", Progress{
		ID: finding.ID, Started: true, CurrentPoemID: 2140, CurrentPageNumber: 8, Progress: 30,
	}))
	stored, err := findings.GetByID(ctx, finding.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.StartTime)
	firstStart := *stored.StartTime
	assert.Equal(t, 30, stored.Progress)
	assert.Equal(t, 2140, stored.CurrentPoemID)
	assert.Equal(t, 8, stored.CurrentPageNumber)
	require.NotNil(t, stored.LastUpdatedByID)
	assert.Equal(t, "worker-1", *stored.LastUpdatedByID)

	// A report that regresses progress and clears Started is taken for the
	// cursor but cannot unset the latch.
	require.NoError(t, f.service.UpdateProgress(ctx, "worker-2", Progress{
		ID: finding.ID, Started: false, CurrentPoemID: 2135, CurrentPageNumber: 5, Progress: 20,
	}))
	stored, err = findings.GetByID(ctx, finding.ID)
	require.NoError(t, err)
	assert.True(t, stored.Started)
	assert.True(t, stored.StartTime.Equal(firstStart))
	assert.Equal(t, 20, stored.Progress)
	assert.Equal(t, 2135, stored.CurrentPoemID)
	assert.Equal(t, "worker-2", *stored.LastUpdatedByID)

	require.NoError(t, f.service.UpdateProgress(ctx, "worker-1", Progress{ID: finding.ID, Started: true, Finished: true, Progress: 100}))
	stored, err = findings.GetByID(ctx, finding.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FinishTime)
	firstFinish := *stored.FinishTime

	require.NoError(t, f.service.UpdateProgress(ctx, "worker-1", Progress{ID: finding.ID, Started: true, Finished: false, Progress: 100}))
	stored, err = findings.GetByID(ctx, finding.ID)
	require.NoError(t, err)
	assert.True(t, stored.Finished)
	assert.True(t, stored.FinishTime.Equal(firstFinish))

	assert.Equal(t, []events.Kind{events.KindFindingQueued, events.KindFindingFinished}, f.publisher.kinds())
}

func TestFinishedEventFeedsNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	finding, err := f.service.Enqueue(ctx, "user-1", request(5, 10))
	require.NoError(t, err)
	require.NoError(t, f.service.UpdateProgress(ctx, "worker", Progress{ID: finding.ID, Finished: true, Progress: 100}))

	last := f.publisher.events[len(f.publisher.events)-1]
	require.Equal(t, events.KindFindingFinished, last.Kind)
	assert.Equal(t, "کتاب 10", last.Data["book_title"])
	assert.Equal(t, "حافظ » غزلیات", last.Data["cat_title"])
	assert.Equal(t, 5, last.Data["cat_id"])
}

func TestUpdateProgressUnknownFinding(t *testing.T) {
	f := newFixture(t)

	err := f.service.UpdateProgress(context.Background(), "worker", Progress{ID: uuid.New()})
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateProgressRejectsOutOfRangeValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	finding, err := f.service.Enqueue(ctx, "user-1", request(5, 10))
	require.NoError(t, err)
	require.NoError(t, f.service.UpdateProgress(ctx, "worker", Progress{ID: finding.ID, Started: true, Progress: 40}))

	for _, progress := range []int{-1, 101} {
		err := f.service.UpdateProgress(ctx, "worker", Progress{ID: finding.ID, Started: true, Progress: progress})
		require.Error(t, err, "progress %d", progress)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}

	stored, err := repository.NewFindingRepository(f.db).GetByID(ctx, finding.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.Progress)

	require.NoError(t, f.service.UpdateProgress(ctx, "worker", Progress{ID: finding.ID, Started: true, Progress: 0}))
}
