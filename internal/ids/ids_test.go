package ids

import (
	"testing"
	"time"
)

func TestNewIsMonotonicAndValid(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		id := New()
		if !Valid(id) {
			t.Fatalf("invalid id %q", id)
		}
		if id <= prev {
			t.Fatalf("ids not increasing: %q after %q", id, prev)
		}
		prev = id
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "01ARZ3NDEKTSV4RRFFQ69G5FA", "not-a-ulid-not-a-ulid-xxxx"} {
		if Valid(s) {
			t.Fatalf("Valid(%q) = true", s)
		}
	}
}

func TestTime(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	got, ok := Time(NewAt(at))
	if !ok || !got.Equal(at) {
		t.Fatalf("Time = %v, %v; want %v", got, ok, at)
	}
	if _, ok := Time("bad"); ok {
		t.Fatal("expected failure for bad id")
	}
}
