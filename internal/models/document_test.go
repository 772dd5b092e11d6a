package models

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []DocumentStatus{StatusUploading, StatusProcessing, StatusCompleted, StatusFailed}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to DocumentStatus
		ok       bool
	}{
		{"", StatusUploading, true},
		{"", StatusProcessing, true},
		{"", StatusFailed, true},
		{"", StatusCompleted, false},
		{StatusUploading, StatusProcessing, true},
		{StatusUploading, StatusFailed, true},
		{StatusUploading, StatusUploading, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusUploading, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusProcessing, false},
		{StatusProcessing, "archived", false},
	}
	for _, tt := range tests {
		err := CheckTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%q -> %q", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition, "%q -> %q", tt.from, tt.to)
		}
	}
}

// Random walks over the state graph never leave a terminal state and never revisit a state.
func TestTransitions_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		var (
			current  DocumentStatus
			rec      StatusRecord
			exists   bool
			seen     = map[DocumentStatus]bool{}
			terminal bool
		)
		for step := 0; step < 6; step++ {
			next := allStatuses[rng.Intn(len(allStatuses))]
			err := StatusUpdate{Status: next}.Apply(&rec, exists, time.Now())
			if terminal {
				require.ErrorIs(t, err, ErrInvalidTransition, "left terminal state %s for %s", current, next)
				assert.Equal(t, current, rec.Status)
				continue
			}
			if err != nil {
				require.ErrorIs(t, err, ErrInvalidTransition)
				continue
			}
			assert.False(t, seen[next], "state %s revisited", next)
			seen[next] = true
			current, exists = next, true
			terminal = next.IsTerminal()
		}
	}
}

func TestStatusUpdateApply(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	done := created.Add(time.Minute)
	rec := StatusRecord{Key: "1714557600000-policy.pdf"}

	require.NoError(t, StatusUpdate{Status: StatusProcessing}.Apply(&rec, false, created))
	assert.Equal(t, "1714557600000-policy.pdf", rec.FileName, "file name falls back to the key")
	assert.Equal(t, created, rec.CreatedAt)
	assert.True(t, rec.CompletedAt.IsZero())

	require.NoError(t, StatusUpdate{Status: StatusCompleted, Strategy: "text", PageCount: 4, Error: "ignored"}.Apply(&rec, true, done))
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, done, rec.CompletedAt)
	assert.Equal(t, "text", rec.Strategy)
	assert.Equal(t, 4, rec.PageCount)
	assert.Empty(t, rec.Error)

	before := rec
	err := StatusUpdate{Status: StatusFailed, Error: "late"}.Apply(&rec, true, done.Add(time.Hour))
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, rec)
}

func TestStatusUpdateApply_Failed(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := StatusRecord{Key: "k"}
	require.NoError(t, StatusUpdate{Status: StatusUploading, FileName: "scan.png"}.Apply(&rec, false, now))
	require.NoError(t, StatusUpdate{Status: StatusFailed, Error: "unsupported file type: text/plain"}.Apply(&rec, true, now))

	assert.Equal(t, "scan.png", rec.FileName)
	assert.Equal(t, "unsupported file type: text/plain", rec.Error)
	assert.Equal(t, now, rec.CompletedAt)
}
