package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/export"
	"github.com/alanyoungcy/marketenricher/internal/notify"
)

type recordingSender struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return nil
}

type fakeHistory struct {
	run     domain.RunRecord
	markets []domain.EnrichedMarket
}

func (f *fakeHistory) RecordRun(_ context.Context, run domain.RunRecord, markets []domain.EnrichedMarket) error {
	f.run = run
	f.markets = markets
	return nil
}

func (f *fakeHistory) LatestRun(context.Context) (domain.RunRecord, error) {
	return f.run, nil
}

type failingSink struct{}

func (failingSink) Name() string { return "broken" }

func (failingSink) Write(context.Context, Artifact) error { return errors.New("disk full") }

func binary(id, question string, volume float64) domain.MarketRecord {
	return domain.MarketRecord{ID: id, Question: question, Outcomes: []string{"Yes", "No"}, Volume: volume, StartDate: t0}
}

// runFixture covers every stage: a non-binary drop, a low-volume drop, an
// allowlisted low-volume keep, a restricted-category drop that leaves a
// singleton group, and a surviving two-member group.
func runFixture() []domain.MarketRecord {
	lakers := domain.MarketRecord{ID: "m1", Question: "Lakers vs. Celtics", Outcomes: []string{"Lakers", "Celtics"}, Volume: 50000, EventID: "E1", StartDate: t0}
	btc := binary("m2", "Will Bitcoin reach $100,000 by December 31?", 200)
	btc.EventID = "E1"
	fed := binary("m3", "Fed decreases interest rates by 25 bps after March 2026 meeting?", 10)
	multi := domain.MarketRecord{ID: "m4", Question: "Who will win?", Outcomes: []string{"A", "B", "C"}, Volume: 90000, StartDate: t0}
	quiet := binary("m5", "Will it snow in Paris?", 5)
	eth1 := binary("m6", "Will Ethereum reach $5,000 by December 31?", 20000)
	eth1.EventID, eth1.EventTitle = "E2", "Ethereum price"
	eth2 := binary("m7", "Will Ethereum dip to $2,000 by December 31?", 20000)
	eth2.EventID, eth2.EventTitle = "E2", "Ethereum price"
	return []domain.MarketRecord{lakers, btc, fed, multi, quiet, eth1, eth2}
}

func newTestRunner(t *testing.T, mode Mode, deps RunnerDeps) *Runner {
	t.Helper()
	deps.Collector = NewCollector(&pagedFetcher{records: runFixture()}, CollectorConfig{PageSize: 100, From: t0}, testLogger())
	return NewRunner(RunnerConfig{
		Mode:                 mode,
		MinVolume:            10000,
		AlwaysInclude:        []string{"fed", "interest rate"},
		RestrictedCategories: []domain.Category{domain.CategorySports},
	}, deps, testLogger())
}

func TestRunner_ExportsFilteredDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "markets.json")
	sender := &recordingSender{}
	history := &fakeHistory{}
	r := newTestRunner(t, ModeExport, RunnerDeps{
		Sinks:    []Sink{FileSink{Path: path}},
		History:  history,
		Notifier: notify.NewNotifier([]notify.Sender{sender}, nil, testLogger()),
	})
	require.NoError(t, r.Validate())

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, sum.Collect.Collected)
	require.Len(t, sum.Stages, 4)
	assert.Equal(t, StageStructural, sum.Stages[0].Stage)
	assert.Equal(t, 1, sum.Stages[0].Stats[0].RemovedCount)
	assert.Equal(t, 0, sum.Stages[1].Stats[0].RemovedCount)
	assert.Equal(t, 1, sum.Stages[2].Stats[0].RemovedCount)
	assert.Equal(t, StageSubmission, sum.Stages[3].Stage)
	assert.Equal(t, 5, sum.Stages[3].Stats[0].InputCount)
	assert.Equal(t, 1, sum.Stages[3].Stats[0].RemovedCount)
	assert.Equal(t, 1, sum.Collapsed)
	assert.Equal(t, 4, sum.Exported)
	assert.Equal(t, 0, sum.Enrichment.LLMCalls)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc export.Document
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Len(t, doc.Groups, 1)
	assert.Equal(t, "E2", doc.Groups[0].ID)
	assert.Len(t, doc.Groups[0].Markets, 2)
	require.Len(t, doc.Ungrouped, 2)
	assert.Equal(t, "m3", doc.Ungrouped[0].ID)
	assert.Equal(t, "m2", doc.Ungrouped[1].ID)
	assert.Equal(t, map[string]int{"crypto": 3, "economy": 1}, doc.Metadata.Categories)
	for _, m := range append(doc.Ungrouped, doc.Groups[0].Markets...) {
		assert.NotEmpty(t, m.ShortName, m.ID)
	}

	assert.Equal(t, sum.RunID, history.run.ID)
	assert.Equal(t, 4, history.run.Exported)
	assert.Len(t, history.markets, 4)
	assert.Equal(t, []string{"Enrichment run complete"}, sender.titles)
}

func TestRunner_RerunProducesIdenticalDocument(t *testing.T) {
	var encoded [][]byte
	for range 3 {
		r := newTestRunner(t, ModeExport, RunnerDeps{
			Sinks: []Sink{FileSink{Path: filepath.Join(t.TempDir(), "markets.json")}},
		})
		r.now = func() time.Time { return t0 }

		sum, err := r.Run(context.Background())
		require.NoError(t, err)
		require.NotNil(t, sum.Document)

		data, err := sum.Document.Encode()
		require.NoError(t, err)
		encoded = append(encoded, data)
	}

	assert.Equal(t, string(encoded[0]), string(encoded[1]))
	assert.Equal(t, string(encoded[0]), string(encoded[2]))
}

func TestRunner_SubmitMode(t *testing.T) {
	fs := &fakeSubmitter{errs: map[string]error{"m6": domain.ErrAlreadyExists}}
	history := &fakeHistory{}
	r := newTestRunner(t, ModeSubmit, RunnerDeps{
		Sinks:     []Sink{FileSink{Path: filepath.Join(t.TempDir(), "markets.json")}},
		Submitter: NewSubmitter(fs, testLogger()),
		History:   history,
	})

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SubmitStats{Submitted: 3, Skipped: 1}, sum.Submit)
	assert.Equal(t, 3, history.run.Submitted)
	assert.Equal(t, 1, history.run.SkippedDupes)
}

func TestRunner_ClassifyModeWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.json")
	r := newTestRunner(t, ModeClassify, RunnerDeps{Sinks: []Sink{FileSink{Path: path}}})

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Enrichment.Unique)
	assert.Nil(t, sum.Document)
	assert.NoFileExists(t, path)
}

func TestRunner_SinkFailureFailsRun(t *testing.T) {
	sender := &recordingSender{}
	r := newTestRunner(t, ModeExport, RunnerDeps{
		Sinks:    []Sink{failingSink{}},
		Notifier: notify.NewNotifier([]notify.Sender{sender}, nil, testLogger()),
	})

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink broken")
	assert.Equal(t, []string{"Enrichment run failed"}, sender.titles)
}

func TestRunner_Validate(t *testing.T) {
	assert.ErrorIs(t, newTestRunner(t, ModeExport, RunnerDeps{}).Validate(), ErrNoSinks)
	assert.NoError(t, newTestRunner(t, ModeClassify, RunnerDeps{}).Validate())
	assert.Error(t, newTestRunner(t, ModeSubmit, RunnerDeps{Sinks: []Sink{FileSink{Path: "x"}}}).Validate())
}
