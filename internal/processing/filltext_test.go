package processing

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/jobqueue"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/notification"
	"github.com/rmuseum/naskban-go/internal/testutil"
)

// recordingNotifier keeps every job outcome
type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []notification.JobOutcome
}

func (n *recordingNotifier) NotifyJob(_ context.Context, outcome notification.JobOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, outcome)
	return nil
}

// rejectingQueue refuses every submission
type rejectingQueue struct{}

func (rejectingQueue) Submit(string, jobqueue.Action) error {
	return errors.New(jobqueue.ErrQueueFull).Category(errors.CategoryJobQueue).Build()
}

func TestTextFillerFillsMissingTexts(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	missing := testutil.SeedBook(t, db, testutil.PublishedBook(1, true, false),
		testutil.PageSeed{Number: 2, Text: "دو", OCRed: true},
		testutil.PageSeed{Number: 1, Text: "یک", OCRed: true},
		testutil.PageSeed{Number: 3, OCRed: true})
	kept := testutil.PublishedBook(2, true, false)
	kept.BookText = "already here\n"
	testutil.SeedBook(t, db, kept, testutil.PageSeed{Number: 1, Text: "other", OCRed: true})
	testutil.SeedBook(t, db, testutil.PublishedBook(3, false, false), testutil.PageSeed{Number: 1, Text: "not ocred"})
	blank := testutil.SeedBook(t, db, testutil.PublishedBook(4, true, false), testutil.PageSeed{Number: 1, OCRed: true})

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)
	queue := jobqueue.NewQueue(jobqueue.Config{Workers: 1, Capacity: 1}, nil, log)
	queue.Start()
	tracker := jobqueue.NewTracker(db, log)
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}

	filler := NewTextFiller(db, queue, tracker, notifier, testOptions(WithEvents(publisher))...)
	jobID, err := filler.Start(ctx)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, jobID)

	require.NoError(t, queue.Stop(testutil.DefaultTestTimeout))

	assert.Equal(t, "یک\nدو\n", loadBook(t, db, missing.ID).BookText)
	assert.Equal(t, "already here\n", loadBook(t, db, 2).BookText)
	assert.Empty(t, loadBook(t, db, 3).BookText)
	assert.Empty(t, loadBook(t, db, blank.ID).BookText, "empty aggregates are not saved")

	job, err := tracker.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "StartFillingMissingBookTexts", job.Name)
	assert.Equal(t, "Query data", job.Step)
	assert.True(t, job.Succeeded)
	assert.InDelta(t, 100, job.Progress, 0.001)
	assert.NotNil(t, job.EndTime)

	require.Len(t, notifier.outcomes, 1)
	assert.True(t, notifier.outcomes[0].Succeeded)
	assert.Equal(t, jobID, notifier.outcomes[0].ID)
	assert.Equal(t, []events.Kind{events.KindJobFinished}, publisher.kinds())
}

func TestTextFillerSkipsOversizedBooks(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.SeedBook(t, db, testutil.PublishedBook(1, true, false),
		testutil.PageSeed{Number: 1, Text: "this page is far too long", OCRed: true})
	testutil.SeedBook(t, db, testutil.PublishedBook(2, true, false),
		testutil.PageSeed{Number: 1, Text: "ok", OCRed: true})

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)
	queue := jobqueue.NewQueue(jobqueue.Config{Workers: 1, Capacity: 1}, nil, log)
	queue.Start()
	tracker := jobqueue.NewTracker(db, log)

	filler := NewTextFiller(db, queue, tracker, nil, testOptions(WithMaxBookTextBytes(8))...)
	jobID, err := filler.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Stop(testutil.DefaultTestTimeout))

	assert.Empty(t, loadBook(t, db, 1).BookText)
	assert.Equal(t, "ok\n", loadBook(t, db, 2).BookText)

	job, err := tracker.Get(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, job.Succeeded)
}

func TestTextFillerClosesJobWhenSubmitFails(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	tracker := jobqueue.NewTracker(db, logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))
	filler := NewTextFiller(db, rejectingQueue{}, tracker, nil, testOptions()...)

	jobID, err := filler.Start(ctx)
	require.Error(t, err)
	assert.Equal(t, uuid.Nil, jobID)
	assert.True(t, errors.IsCategory(err, errors.CategoryJobQueue))

	jobs, err := tracker.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Succeeded)
	assert.NotEmpty(t, jobs[0].Exception)
	assert.NotNil(t, jobs[0].EndTime)
}
