package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan []Event, timeout time.Duration) []Event {
	t.Helper()
	select {
	case batch, ok := <-ch:
		require.True(t, ok, "channel closed")
		return batch
	case <-time.After(timeout):
		t.Fatal("timeout waiting for batch")
		return nil
	}
}

func TestDebouncer_SingleEventPassesThrough(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4)
	defer d.Stop()

	d.Add(Event{Path: "/c/a.jpg", Operation: OpCreate})

	batch := receive(t, d.Output(), time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "/c/a.jpg", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_MergeRules(t *testing.T) {
	tests := []struct {
		name  string
		ops   []Operation
		want  Operation
		empty bool
	}{
		{name: "create then modify", ops: []Operation{OpCreate, OpModify}, want: OpCreate},
		{name: "create then delete", ops: []Operation{OpCreate, OpDelete}, empty: true},
		{name: "delete then create", ops: []Operation{OpDelete, OpCreate}, want: OpModify},
		{name: "modify then delete", ops: []Operation{OpModify, OpDelete}, want: OpDelete},
		{name: "modify repeated", ops: []Operation{OpModify, OpModify, OpModify}, want: OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer and a sentinel path so every case emits a batch
			d := NewDebouncer(30*time.Millisecond, 4)
			defer d.Stop()

			// When: the operations arrive within one window
			for _, op := range tt.ops {
				d.Add(Event{Path: "/c/x.png", Operation: op})
			}
			d.Add(Event{Path: "/c/z.png", Operation: OpModify})

			// Then: x.png is merged or dropped
			batch := receive(t, d.Output(), time.Second)
			if tt.empty {
				require.Len(t, batch, 1)
				assert.Equal(t, "/c/z.png", batch[0].Path)
				return
			}
			require.Len(t, batch, 2)
			assert.Equal(t, "/c/x.png", batch[0].Path)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 4)
	defer d.Stop()

	for _, p := range []string{"/c/b.jpg", "/c/c.jpg", "/c/a.jpg"} {
		d.Add(Event{Path: p, Operation: OpCreate})
	}

	batch := receive(t, d.Output(), time.Second)
	require.Len(t, batch, 3)
	assert.Equal(t, "/c/a.jpg", batch[0].Path)
	assert.Equal(t, "/c/b.jpg", batch[1].Path)
	assert.Equal(t, "/c/c.jpg", batch[2].Path)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour, 1)
	d.Add(Event{Path: "/c/a.jpg", Operation: OpCreate})

	d.Stop()
	d.Stop()
	d.Add(Event{Path: "/c/b.jpg", Operation: OpCreate})

	_, ok := <-d.Output()
	assert.False(t, ok)
}

func TestSplit(t *testing.T) {
	changed, removed := Split([]Event{
		{Path: "/a", Operation: OpCreate},
		{Path: "/b", Operation: OpModify},
		{Path: "/c", Operation: OpDelete},
		{Path: "/d", Operation: OpRename},
	})

	assert.Equal(t, []string{"/a", "/b"}, changed)
	assert.Equal(t, []string{"/c", "/d"}, removed)
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}
