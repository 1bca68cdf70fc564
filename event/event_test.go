package event

import (
	"testing"

	"xdao.co/attest/uid"
)

func TestLog_OrderAndSubscribers(t *testing.T) {
	l := NewLog()
	var seen []Type
	l.Subscribe(func(e Event) { seen = append(seen, e.Type) })

	a := uid.Keccak256([]byte("a"))
	l.Emit(Event{Type: Attested, UID: a}, Event{Type: Revoked, UID: a})
	l.Emit()
	l.Emit(Event{Type: Timestamped, UID: a, Time: 9})

	if l.Len() != 3 {
		t.Fatalf("Len: got %d", l.Len())
	}
	want := []Type{Attested, Revoked, Timestamped}
	for i, ty := range l.Events() {
		if ty.Type != want[i] {
			t.Fatalf("event %d: got %s want %s", i, ty.Type, want[i])
		}
		if seen[i] != want[i] {
			t.Fatalf("subscriber event %d: got %s", i, seen[i])
		}
	}
	if got := l.Since(2); len(got) != 1 || got[0].Type != Timestamped {
		t.Fatalf("Since(2): %+v", got)
	}
	if got := l.Since(10); got != nil {
		t.Fatalf("Since past end should be nil")
	}
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewLog(), NewLog()
	Multi{a, nil, b, Discard{}}.Emit(Event{Type: SchemaRegistered})
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("expected both logs to receive the event")
	}
}
