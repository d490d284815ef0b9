package singleflight

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
)

func TestDo_ConcurrentCallersShareOneExecution(t *testing.T) {
	r := New(50 * time.Millisecond)
	var calls atomic.Int32

	release := make(chan struct{})
	fn := func() (*domain.CachedArchive, error) {
		calls.Add(1)
		<-release
		return domain.NewArchive("song.osz", []byte{1, 2, 3}, time.Now()), nil
	}

	const n = 5
	var wg sync.WaitGroup
	results := make([]Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Do(7, fn)
		}(i)
	}

	time.Sleep(20 * time.Millisecond) // let all goroutines join the same flight
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one execution, got %d", got)
	}
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("result %d: unexpected error %v", i, res.Err)
		}
		if string(res.Archive.Payload) != "\x01\x02\x03" {
			t.Fatalf("result %d: unexpected payload %v", i, res.Archive.Payload)
		}
	}
}

func TestDo_DistinctIdentifiersRunIndependently(t *testing.T) {
	r := New(50 * time.Millisecond)
	var calls atomic.Int32

	fn := func() (*domain.CachedArchive, error) {
		calls.Add(1)
		return domain.NewArchive("a.osz", []byte{1}, time.Now()), nil
	}

	r.Do(1, fn)
	r.Do(2, fn)

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected two independent executions for distinct ids, got %d", got)
	}
}

func TestDo_PropagatesError(t *testing.T) {
	r := New(10 * time.Millisecond)
	wantErr := errors.New("upstream failure")

	res := r.Do(1, func() (*domain.CachedArchive, error) {
		return nil, wantErr
	})
	if res.Err != wantErr {
		t.Fatalf("expected propagated error, got %v", res.Err)
	}
}

func TestDo_LateJoinerWithinForgetWindowSeesPublishedResult(t *testing.T) {
	r := New(100 * time.Millisecond)
	var calls atomic.Int32

	r.Do(9, func() (*domain.CachedArchive, error) {
		calls.Add(1)
		return domain.NewArchive("x.osz", []byte{9}, time.Now()), nil
	})

	// The leader's Do has already returned, so golang.org/x/sync/singleflight
	// would treat this as a brand new flight; the rendezvous window must
	// still serve the published result instead of re-running fn.
	res := r.Do(9, func() (*domain.CachedArchive, error) {
		calls.Add(1)
		return domain.NewArchive("x.osz", []byte{9}, time.Now()), nil
	})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected the late joiner to observe the published result without a fresh execution, got %d calls", got)
	}
}

func TestDo_JoinerAfterForgetWindowTriggersFreshExecution(t *testing.T) {
	r := New(10 * time.Millisecond)
	var calls atomic.Int32

	r.Do(11, func() (*domain.CachedArchive, error) {
		calls.Add(1)
		return domain.NewArchive("y.osz", []byte{1}, time.Now()), nil
	})

	time.Sleep(30 * time.Millisecond) // let the forget window close

	r.Do(11, func() (*domain.CachedArchive, error) {
		calls.Add(1)
		return domain.NewArchive("y.osz", []byte{1}, time.Now()), nil
	})

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected a fresh execution once the forget window has closed, got %d calls", got)
	}
}
