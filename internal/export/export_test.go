package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

var generated = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func em(id string, cat domain.Category, volume float64) domain.EnrichedMarket {
	return domain.EnrichedMarket{
		MarketRecord: domain.MarketRecord{
			ID:        id,
			Question:  "Question " + id,
			Outcomes:  []string{"Yes", "No"},
			Volume:    volume,
			StartDate: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		},
		EnrichmentResult: domain.EnrichmentResult{Category: cat, ShortName: "Short " + id, Source: domain.SourceRule},
	}
}

func fixture() ([]domain.EnrichedGroup, []domain.EnrichedMarket) {
	groups := []domain.EnrichedGroup{{
		ID:    "e1",
		Title: "Bitcoin price",
		Markets: []domain.EnrichedMarket{
			em("1", domain.CategoryCrypto, 100),
			em("2", domain.CategoryCrypto, 50),
		},
	}}
	ungrouped := []domain.EnrichedMarket{em("3", domain.CategoryEconomy, 10)}
	return groups, ungrouped
}

func TestBuild(t *testing.T) {
	groups, ungrouped := fixture()
	doc := Build(groups, ungrouped, generated)

	assert.Equal(t, generated, doc.Metadata.GeneratedAt)
	assert.Equal(t, 3, doc.Metadata.TotalMarkets)
	assert.Equal(t, 1, doc.Metadata.TotalGroups)
	assert.Equal(t, 1, doc.Metadata.TotalUngrouped)
	assert.Equal(t, map[string]int{"crypto": 2, "economy": 1}, doc.Metadata.Categories)

	require.Len(t, doc.Groups, 1)
	assert.Equal(t, 150.0, doc.Groups[0].Volume)
	assert.Equal(t, "1", doc.Groups[0].Markets[0].ID)
	assert.Equal(t, "Short 1", doc.Groups[0].Markets[0].ShortName)
	assert.Equal(t, "rule", doc.Groups[0].Markets[0].Source)
	assert.Equal(t, "2026-10-01T09:00:00Z", doc.Groups[0].Markets[0].StartDate)
}

func TestBuild_EmptyInputKeepsShape(t *testing.T) {
	data, err := Build(nil, nil, generated).Encode()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `[]`, string(raw["groups"]))
	assert.JSONEq(t, `[]`, string(raw["ungrouped"]))
}

func TestEncode_IsStable(t *testing.T) {
	groups, ungrouped := fixture()
	a, err := Build(groups, ungrouped, generated).Encode()
	require.NoError(t, err)
	b, err := Build(groups, ungrouped, generated).Encode()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, bytes.HasSuffix(a, []byte("}\n")))
	assert.Less(t, bytes.Index(a, []byte(`"crypto"`)), bytes.Index(a, []byte(`"economy"`)))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "markets.json")
	groups, ungrouped := fixture()
	doc := Build(groups, ungrouped, generated)

	require.NoError(t, WriteFile(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := doc.Encode()
	require.NoError(t, err)
	assert.Equal(t, want, data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 10, 15, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	assert.Equal(t, "exports/2026-10-16/markets-run-1.json", ObjectKey("run-1", at))
}

type memBlob struct {
	path        string
	contentType string
	data        []byte
	multipart   bool
	err         error
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if m.err != nil {
		return m.err
	}
	m.path, m.contentType = path, contentType
	m.data, _ = io.ReadAll(data)
	return nil
}

func (m *memBlob) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	m.multipart = true
	return m.Put(context.Background(), path, data, "")
}

func TestUpload(t *testing.T) {
	groups, ungrouped := fixture()
	doc := Build(groups, ungrouped, generated)
	blob := &memBlob{}

	require.NoError(t, Upload(context.Background(), blob, "exports/x.json", doc))
	assert.Equal(t, "exports/x.json", blob.path)
	assert.Equal(t, "application/json", blob.contentType)
	assert.False(t, blob.multipart)

	var got Document
	require.NoError(t, json.Unmarshal(blob.data, &got))
	assert.Equal(t, 3, got.Metadata.TotalMarkets)
}

func TestUpload_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	err := Upload(context.Background(), &memBlob{err: boom}, "k", Build(nil, nil, generated))
	assert.ErrorIs(t, err, boom)
}
