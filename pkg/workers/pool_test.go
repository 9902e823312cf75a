package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestMapPreservesOrder(t *testing.T) {
	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}

	var done atomic.Int64
	got, err := Map(context.Background(), 8, items, func(_ context.Context, v int) (int, error) {
		return v * v, nil
	}, func() { done.Add(1) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(got))
	}
	for i, v := range got {
		if v != i*i {
			t.Fatalf("result %d = %d, want %d", i, v, i*i)
		}
	}
	if done.Load() != int64(len(items)) {
		t.Fatalf("onDone called %d times", done.Load())
	}
}

func TestMapFailsBatchOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	_, err := Map(context.Background(), 4, items, func(_ context.Context, v int) (int, error) {
		if v == 10 {
			return 0, boom
		}
		return v, nil
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestMapCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Map(ctx, 2, []int{1, 2, 3}, func(_ context.Context, v int) (int, error) {
		return v, nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMapEmpty(t *testing.T) {
	got, err := Map(context.Background(), 3, nil, func(_ context.Context, v int) (int, error) {
		return v, nil
	}, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
}

func TestResolveBounds(t *testing.T) {
	if got := Resolve(1000); got != MaxWorkers {
		t.Fatalf("Resolve(1000) = %d", got)
	}
	if got := Resolve(3); got != 3 {
		t.Fatalf("Resolve(3) = %d", got)
	}
	if got := Resolve(0); got < 1 {
		t.Fatalf("Resolve(0) = %d", got)
	}
}
