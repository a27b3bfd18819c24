package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2025, 6, 1, 23, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Day(in))
}

func TestParseFormat(t *testing.T) {
	d, err := Parse("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", Format(d))

	_, err = Parse("06/01/2025")
	assert.Error(t, err)
}

func TestBefore(t *testing.T) {
	morning := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	next := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	assert.False(t, Before(morning, evening))
	assert.False(t, Before(evening, morning))
	assert.True(t, Before(evening, next))
}

func TestAge(t *testing.T) {
	birth := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 34, Age(birth, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 35, Age(birth, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, Age(time.Time{}, time.Now()))
}
