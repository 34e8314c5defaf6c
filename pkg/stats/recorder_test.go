package stats

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/pkgveil/pkg/decision"
)

type memorySink struct {
	mu     sync.Mutex
	events []decision.FilterEvent
	block  chan struct{}
	err    error
}

func (s *memorySink) Record(_ context.Context, ev decision.FilterEvent) error {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRecorderDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(sink, 16, nil)
	for i := 0; i < 10; i++ {
		r.Record(decision.FilterEvent{Caller: "com.a", Target: "com.b"})
	}
	r.Close()

	assert.Equal(t, 10, sink.len())
	assert.Equal(t, int64(10), r.Written())
	assert.Zero(t, r.Dropped())
}

func TestRecorderDropsWhenFull(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	r := NewRecorder(sink, 1, nil)

	for i := 0; i < 5; i++ {
		r.Record(decision.FilterEvent{Caller: "com.a"})
	}
	close(sink.block)
	r.Close()

	assert.Positive(t, r.Dropped())
	assert.Equal(t, int64(5), r.Dropped()+r.Written())
}

func TestRecorderRecordAfterClose(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(sink, 4, nil)
	r.Close()
	r.Close()

	r.Record(decision.FilterEvent{Caller: "com.a"})
	assert.Equal(t, int64(1), r.Dropped())
	assert.Zero(t, sink.len())
}

func TestRecorderSinkErrorsAreNotFatal(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	r := NewRecorder(sink, 4, nil)
	r.Record(decision.FilterEvent{Caller: "com.a"})
	r.Record(decision.FilterEvent{Caller: "com.b"})
	r.Close()

	assert.Zero(t, r.Written())
}

func TestRecorderConcurrentRecordAndClose(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(sink, 64, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Record(decision.FilterEvent{Caller: "com.a"})
			}
		}()
	}
	r.Close()
	wg.Wait()

	require.Equal(t, int64(400), r.Written()+r.Dropped())
	assert.Equal(t, int(r.Written()), sink.len())
}

func TestRecorderWithStore(t *testing.T) {
	s := openTestStore(t)
	r := NewRecorder(s, 8, nil)
	r.Record(decision.FilterEvent{Caller: "com.a", Target: "com.b"})
	r.Record(decision.FilterEvent{Caller: "com.a", Target: "com.c"})
	r.Close()

	totals, err := s.Totals(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, int64(2), totals[0].Count)
}
