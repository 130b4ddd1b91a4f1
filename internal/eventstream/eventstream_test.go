package eventstream

import (
	"errors"
	"testing"
	"time"
)

func TestEventStream_PushThenEnd(t *testing.T) {
	s := New[int, string](4)
	go func() {
		s.Push(1)
		s.Push(2)
		s.Push(3)
		s.End("done")
	}()

	var got []int
	err := s.Range(func(ev int) bool {
		got = append(got, ev)
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("events out of order or missing: %v", got)
	}
	result, err := s.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "done" {
		t.Errorf("result = %q", result)
	}
}

func TestEventStream_Fail(t *testing.T) {
	s := New[int, string](4)
	boom := errors.New("boom")
	go func() {
		s.Push(1)
		s.Fail(boom)
	}()

	err := s.Range(func(ev int) bool { return true })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_, err = s.Result()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom from Result, got %v", err)
	}
}

func TestEventStream_EndIsIdempotent(t *testing.T) {
	s := New[int, string](1)
	s.End("first")
	s.End("second")
	s.Fail(errors.New("ignored"))

	result, err := s.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "first" {
		t.Errorf("expected first result to win, got %q", result)
	}
}

func TestEventStream_PushAfterEndIsDropped(t *testing.T) {
	s := New[int, string](4)
	s.Push(1)
	s.End("done")
	s.Push(2) // dropped, must not block or appear

	var got []int
	_ = s.Range(func(ev int) bool {
		got = append(got, ev)
		return true
	})
	for _, v := range got {
		if v == 2 {
			t.Errorf("event pushed after End should have been dropped: %v", got)
		}
	}
}

func TestEventStream_ResultBlocksUntilDone(t *testing.T) {
	s := New[int, string](1)
	resultCh := make(chan string, 1)
	go func() {
		r, _ := s.Result()
		resultCh <- r
	}()

	select {
	case <-resultCh:
		t.Fatal("Result returned before stream completed")
	case <-time.After(20 * time.Millisecond):
	}

	s.End("later")

	select {
	case r := <-resultCh:
		if r != "later" {
			t.Errorf("result = %q", r)
		}
	case <-time.After(time.Second):
		t.Fatal("Result did not unblock after End")
	}
}
