package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mftcargo/tracker/internal/shared"
)

type stubTimelineRepo struct {
	rows        []TimelineRow
	lastOffset  int
	lastLimit   int
	lastFilters TimelineFilters
}

func (s *stubTimelineRepo) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilters, s.lastOffset, s.lastLimit = f, offset, limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubTimelineRepo) All(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	s.lastFilters = f
	return s.rows, nil
}

func adminCtx() context.Context {
	return shared.ContextWithPrincipal(context.Background(), &shared.Principal{UserID: 1, Username: "admin"})
}

func rowsN(n int) []TimelineRow {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	out := make([]TimelineRow, n)
	for i := range out {
		out[i] = TimelineRow{ID: int64(n - i), At: base.Add(-time.Duration(i) * time.Hour), ActorID: 1, Actor: "admin", Action: shared.AuditDelete, Entity: "shipment", EntityID: "7"}
	}
	return out
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: rowsN(3)}
	svc := NewService(repo)

	result, err := svc.Timeline(adminCtx(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Equal(t, 3, repo.lastLimit)
	assert.Equal(t, 0, repo.lastOffset)

	result, err = svc.Timeline(adminCtx(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 1, result.Paging.PrevPage)
	assert.Equal(t, 2, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	result, err := NewService(repo).Timeline(adminCtx(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
	assert.Equal(t, maxPageSize+1, repo.lastLimit)
	assert.NotNil(t, result.Rows)
}

func TestTimelineRequiresPrincipal(t *testing.T) {
	_, err := NewService(&stubTimelineRepo{}).Timeline(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	_, err = NewService(&stubTimelineRepo{}).Export(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestWriteCSV(t *testing.T) {
	rows := rowsN(1)
	rows[0].Meta = map[string]any{"trackingNumber": "TR-12345678"}
	data, err := WriteCSV(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "at", records[0][0])
	assert.Equal(t, []string{"2025-03-10T10:00:00Z", "1", "admin", shared.AuditDelete, "shipment", "7", `{"trackingNumber":"TR-12345678"}`}, records[1])
}
