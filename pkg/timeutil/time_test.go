package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNow_AlwaysUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Now().Location())
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "UTC morning",
			input:    time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
			expected: "2025-03-14",
		},
		{
			name:     "late evening west of UTC rolls to the next day",
			input:    time.Date(2025, 3, 14, 22, 0, 0, 0, time.FixedZone("EDT", -4*3600)),
			expected: "2025-03-15",
		},
		{
			name:     "early morning east of UTC stays on the previous day",
			input:    time.Date(2025, 3, 15, 1, 0, 0, 0, time.FixedZone("EAT", 3*3600)),
			expected: "2025-03-14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDate(tt.input))
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("14/03/2025")
	assert.Error(t, err)
}

func TestToUTC(t *testing.T) {
	local := time.Date(2025, 3, 14, 12, 0, 0, 0, time.FixedZone("CAT", 2*3600))
	utc := ToUTC(local)

	assert.Equal(t, time.UTC, utc.Location())
	assert.True(t, local.Equal(utc))
	assert.Equal(t, 10, utc.Hour())
}
