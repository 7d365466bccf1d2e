package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildUpdateSortsColumns(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	query, args := BuildUpdate("shipments", 42, map[string]any{
		"weight":         12.5,
		"current_status": "CUSTOMS_TR",
	}, now)

	assert.Equal(t, "UPDATE shipments SET current_status = $1, weight = $2, updated_at = $3 WHERE id = $4", query)
	assert.Equal(t, []any{"CUSTOMS_TR", 12.5, now, int64(42)}, args)
}

func TestBuildUpdateOnlyTouchesTimestamp(t *testing.T) {
	query, args := BuildUpdate("customers", 7, nil, time.Time{})
	assert.Equal(t, "UPDATE customers SET updated_at = $1 WHERE id = $2", query)
	assert.Len(t, args, 2)
}
