package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/platform/admin"
)

type fakeSubmitter struct {
	errs     map[string]error
	payloads []admin.MarketPayload
}

func (f *fakeSubmitter) Submit(_ context.Context, p admin.MarketPayload) error {
	f.payloads = append(f.payloads, p)
	return f.errs[p.ID]
}

func TestSubmitAll_CountsOutcomes(t *testing.T) {
	fs := &fakeSubmitter{errs: map[string]error{
		"2": fmt.Errorf("admin: submit 2: %w", domain.ErrAlreadyExists),
		"3": errors.New("admin: submit 3: status 500: boom"),
	}}
	s := NewSubmitter(fs, testLogger())

	groups := []domain.EnrichedGroup{{
		ID:    "e1",
		Title: "Event e1",
		Markets: []domain.EnrichedMarket{
			enriched("1", "e1", domain.CategoryCrypto),
			enriched("2", "e1", domain.CategoryCrypto),
		},
	}}
	ungrouped := []domain.EnrichedMarket{
		{MarketRecord: domain.MarketRecord{ID: "3"}},
		{MarketRecord: domain.MarketRecord{ID: "4"}},
	}

	stats, err := s.SubmitAll(context.Background(), groups, ungrouped)
	require.NoError(t, err)
	assert.Equal(t, SubmitStats{Submitted: 2, Skipped: 1, Failed: 1}, stats)

	require.Len(t, fs.payloads, 4)
	assert.Equal(t, "e1", fs.payloads[0].GroupID)
	assert.Equal(t, "Event e1", fs.payloads[0].GroupTitle)
	assert.Empty(t, fs.payloads[2].GroupID)
}

func TestSubmitAll_StopsOnCancel(t *testing.T) {
	fs := &fakeSubmitter{}
	s := NewSubmitter(fs, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SubmitAll(ctx, nil, []domain.EnrichedMarket{{MarketRecord: domain.MarketRecord{ID: "1"}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.payloads)
}
