package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_AssignsStrictlyIncreasingGapFreeSeq(t *testing.T) {
	log := New()
	e1 := log.Append(Entry{Type: TypeAgentAction, Sender: "Alice"})
	e2 := log.Append(Entry{Type: TypeAgentAction, Sender: "Bob"})
	e3 := log.Append(Entry{Type: TypeChat, Sender: "Alice"})

	assert.Equal(t, 1, e1.Seq)
	assert.Equal(t, 2, e2.Seq)
	assert.Equal(t, 3, e3.Seq)
}

func TestAppend_SetsTimestampWhenUnset(t *testing.T) {
	log := New()
	before := time.Now()
	e := log.Append(Entry{Type: TypeAgentAction})
	assert.False(t, e.Timestamp.Before(before))
}

func TestRange_ReturnsContiguousSlice(t *testing.T) {
	log := New()
	for i := 0; i < 5; i++ {
		log.Append(Entry{Type: TypeChat})
	}

	entries := log.Range(2, 4)
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].Seq)
	assert.Equal(t, 4, entries[2].Seq)
}

func TestRange_ClampsOutOfBoundInputs(t *testing.T) {
	log := New()
	log.Append(Entry{Type: TypeChat})
	log.Append(Entry{Type: TypeChat})

	entries := log.Range(0, 100)
	assert.Len(t, entries, 2)
}

func TestStreamFrom_DeliversBacklogThenLiveAppends(t *testing.T) {
	log := New()
	log.Append(Entry{Type: TypeAgentAction, Sender: "Alice"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := log.StreamFrom(ctx, 1)

	first := <-ch
	assert.Equal(t, "Alice", first.Sender)

	log.Append(Entry{Type: TypeAgentAction, Sender: "Bob"})
	second := <-ch
	assert.Equal(t, "Bob", second.Sender)
}

func TestStreamFrom_ClosesChannelWhenContextCancelled(t *testing.T) {
	log := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := log.StreamFrom(ctx, 1)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestAll_ReturnsACopyNotTheInternalSlice(t *testing.T) {
	log := New()
	log.Append(Entry{Type: TypeChat, Sender: "Alice"})

	entries := log.All()
	entries[0].Sender = "mutated"

	assert.Equal(t, "Alice", log.All()[0].Sender)
}

func TestClone_IsIndependentCopy(t *testing.T) {
	log := New()
	log.Append(Entry{Type: TypeChat, Sender: "Alice"})

	clone := log.Clone()
	clone.Append(Entry{Type: TypeChat, Sender: "Bob"})

	assert.Equal(t, 1, log.Len())
	assert.Equal(t, 2, clone.Len())
}

func TestFromEntries_PreloadsGivenEntries(t *testing.T) {
	log := FromEntries([]Entry{
		{Seq: 1, Type: TypeChat, Sender: "Alice"},
		{Seq: 2, Type: TypeChat, Sender: "Bob"},
	})

	assert.Equal(t, 2, log.Len())
	next := log.Append(Entry{Type: TypeChat, Sender: "Charlie"})
	assert.Equal(t, 3, next.Seq)
}

func TestPruneFrom_DropsEntriesAtOrAboveSeqAndKeepsNumberingContiguous(t *testing.T) {
	log := New()
	log.Append(Entry{Type: TypeChat, Sender: "Alice"})
	log.Append(Entry{Type: TypeChat, Sender: "Bob"})
	log.Append(Entry{Type: TypeChat, Sender: "Charlie"})

	log.PruneFrom(2)

	assert.Equal(t, 1, log.Len())
	next := log.Append(Entry{Type: TypeChat, Sender: "Dana"})
	assert.Equal(t, 2, next.Seq)
}
