package coordinator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusReporter(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   string
	}{
		{name: "empty registry", counts: nil, want: "[]"},
		{name: "single world", counts: []int{0}, want: "[0]"},
		{name: "several worlds", counts: []int{3, 0, 7}, want: "[3,0,7]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards := make([]*fakeShard, len(tt.counts))
			for i, c := range tt.counts {
				shards[i] = newFakeShard(string(rune('a'+i)), 10, c)
			}
			reporter := NewStatusReporter(fakeRegistry(t, shards...))

			got := reporter.StatusJSON()
			assert.Equal(t, tt.want, got)

			var decoded []int
			require.NoError(t, json.Unmarshal([]byte(got), &decoded))
			assert.Len(t, decoded, len(tt.counts))
		})
	}
}

func TestStatusReporterIsFresh(t *testing.T) {
	s := newFakeShard("world1", 10, 1)
	reporter := NewStatusReporter(fakeRegistry(t, s))

	assert.Equal(t, Snapshot{1}, reporter.GetStatus())
	s.setCount(2)
	assert.Equal(t, Snapshot{2}, reporter.GetStatus())
	assert.Equal(t, "[2]", reporter.StatusJSON())
}
