package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpAPIRequest, 10*time.Millisecond)
	c.RecordTiming(OpAPIRequest, 30*time.Millisecond)
	c.RecordResult(OpAPIRequest, 20*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	require.NotNil(t, snap.APIRequest)
	assert.Equal(t, int64(3), snap.APIRequest.Count)
	assert.Equal(t, int64(1), snap.APIRequest.Errors)
	assert.Equal(t, int64(60), snap.APIRequest.TotalTimeMs)
	assert.Equal(t, 20.0, snap.APIRequest.AvgTimeMs)
	assert.Equal(t, int64(10), snap.APIRequest.MinTimeMs)
	assert.Equal(t, int64(30), snap.APIRequest.MaxTimeMs)
	assert.Nil(t, snap.APIRequest.TotalFrames)
	assert.Nil(t, snap.Stream)
}

func TestRecordStream(t *testing.T) {
	c := NewCollector()
	c.RecordStream(100*time.Millisecond, 4, 1, nil)
	c.RecordStream(50*time.Millisecond, 2, 0, nil)

	snap := c.Snapshot()
	require.NotNil(t, snap.Stream)
	assert.Equal(t, int64(2), snap.Stream.Count)
	assert.Equal(t, int64(6), *snap.Stream.TotalFrames)
	assert.Equal(t, int64(1), *snap.Stream.DroppedFrames)
	assert.Equal(t, 3.0, *snap.Stream.AvgFrames)
	assert.Equal(t, int64(2), *snap.Stream.MinFrames)
	assert.Equal(t, int64(4), *snap.Stream.MaxFrames)
}

func TestOperationsSkipsEmpty(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpClassify, time.Millisecond)
	c.RecordTiming(OpAPIRequest, time.Millisecond)

	var names []string
	for _, op := range c.Snapshot().Operations() {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{OpAPIRequest, OpClassify}, names)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTiming(OpAPIRequest, time.Second)
		c.RecordStream(time.Second, 1, 0, nil)
		_ = c.Snapshot()
	})
}
