package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Fatal("Ok result misreports state")
	}
	if v, _ := ok.Unwrap(); v != 42 {
		t.Fatalf("Unwrap = %d, want 42", v)
	}

	errRes := Err[int](errors.New("boom"))
	if errRes.IsOk() {
		t.Fatal("Err result reports ok")
	}
	if got := errRes.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr = %d, want 7", got)
	}
}

func TestCollect_FirstError(t *testing.T) {
	boom := errors.New("boom")
	results := []Result[int]{Ok(1), Err[int](boom), Ok(3)}
	collected := Collect(results)
	if _, err := collected.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("Collect err = %v, want boom", err)
	}

	all := Collect([]Result[int]{Ok(1), Ok(2)})
	vals, err := all.Unwrap()
	if err != nil || len(vals) != 2 || vals[0] != 1 || vals[1] != 2 {
		t.Fatalf("Collect = %v, %v", vals, err)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[string] {
		attempts++
		if attempts < 3 {
			return Errf[string]("attempt %d", attempts)
		}
		return Ok("done")
	})
	if v, err := r.Unwrap(); err != nil || v != "done" {
		t.Fatalf("Retry = %q, %v", v, err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		attempts++
		return Errf[int]("always fails")
	})
	if r.IsOk() {
		t.Fatal("expected failure after budget exhausted")
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, n int) Result[int] { return Err[int](boom) }
	secondCalled := false
	second := func(_ context.Context, n int) Result[int] {
		secondCalled = true
		return Ok(n * 2)
	}
	r := Then(first, second)(context.Background(), 1)
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if secondCalled {
		t.Fatal("second stage ran after failure")
	}
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("Chunk = %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("Chunk with n=0 should be nil")
	}
}

func TestParMap_PreservesOrder(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := ParMap(in, 3, func(n int) int { return n * n })
	for i, v := range out {
		if v != in[i]*in[i] {
			t.Fatalf("out[%d] = %d, want %d", i, v, in[i]*in[i])
		}
	}
}
