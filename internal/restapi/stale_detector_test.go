package restapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStaleDetector(t *testing.T) {
	now := time.Date(2025, 3, 14, 8, 30, 0, 0, time.UTC)
	d := NewStaleDetector()

	assert.False(t, d.Check(now.Add(-30*time.Second), now))
	assert.False(t, d.Check(now.Add(-90*time.Second), now))
	assert.True(t, d.Check(now.Add(-91*time.Second), now))
	assert.True(t, d.Check(time.Time{}, now))

	assert.Equal(t, 30*time.Second, d.Age(now.Add(-30*time.Second), now))
	assert.Greater(t, d.Age(time.Time{}, now), 90*time.Second)

	d.WithThreshold(10 * time.Second)
	assert.True(t, d.Check(now.Add(-30*time.Second), now))
}
