package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallio/graphdrive-go/internal/drive"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	sameYear := time.Date(now.Year(), 3, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  5 14:30", formatTime(sameYear))

	oldYear := time.Date(2019, 3, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  5  2019", formatTime(oldYear))

	assert.Equal(t, "            ", formatTime(time.Time{}), "zero time pads to column width")
}

func TestDisplayName(t *testing.T) {
	file := &drive.Item{Name: "report.txt", Kind: drive.KindFile}
	assert.Equal(t, "report.txt", displayName(file))

	// Folders get a trailing slash. Color is only applied on a TTY, which
	// tests never run under.
	folder := &drive.Item{Name: "docs", Kind: drive.KindFolder}
	assert.Equal(t, "docs/", displayName(folder))
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want drive.CollisionPolicy
	}{
		{"fail", drive.FailIfExists},
		{"replace", drive.ReplaceExisting},
		{"rename", drive.GenerateUniqueName},
	}

	for _, tt := range tests {
		got, err := parsePolicy(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := parsePolicy("overwrite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid collision policy")
}
