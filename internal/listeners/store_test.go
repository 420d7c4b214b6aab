package listeners

import (
	"testing"
	"time"
)

func TestStoreAddGetRemove(t *testing.T) {
	s := NewStore()
	l := &Listener{ID: "l1", StreamName: "/main.mp3", ConnectedAt: time.Now()}
	s.Add(l)

	got, ok := s.Get("l1")
	if !ok || got != l {
		t.Fatalf("expected to find listener l1, got ok=%v", ok)
	}

	active := s.ActiveByStream("/main.mp3")
	if len(active) != 1 || active[0].ID != "l1" {
		t.Fatalf("unexpected active set: %+v", active)
	}

	removed := s.Remove("l1")
	if removed != l {
		t.Fatalf("expected Remove to return the listener")
	}
	if _, ok := s.Get("l1"); ok {
		t.Fatal("expected listener to be gone after Remove")
	}
	if active := s.ActiveByStream("/main.mp3"); len(active) != 0 {
		t.Fatalf("expected no active listeners after removal, got %d", len(active))
	}
}

func TestActiveByStreamExcludesDisconnected(t *testing.T) {
	s := NewStore()
	l1 := &Listener{ID: "l1", StreamName: "/main.mp3"}
	l2 := &Listener{ID: "l2", StreamName: "/main.mp3"}
	s.Add(l1)
	s.Add(l2)
	l2.MarkDisconnected()

	active := s.ActiveByStream("/main.mp3")
	if len(active) != 1 || active[0].ID != "l1" {
		t.Fatalf("expected only l1 active, got %+v", active)
	}
}

func TestActiveByStreamUnknownStreamIsEmpty(t *testing.T) {
	s := NewStore()
	if active := s.ActiveByStream("/nonexistent.mp3"); len(active) != 0 {
		t.Fatalf("expected empty slice, got %+v", active)
	}
}

func TestEventsEmittedOnAddAndRemove(t *testing.T) {
	s := NewStore()
	events := s.Events()

	l := &Listener{ID: "l1", StreamName: "/main.mp3"}
	s.Add(l)
	select {
	case ev := <-events:
		if ev.Type != EventConnected || ev.Listener.ID != "l1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a connected event")
	}

	s.Remove("l1")
	select {
	case ev := <-events:
		if ev.Type != EventDisconnected || ev.Listener.ID != "l1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a disconnected event")
	}
}

func TestEventsRetainedBeforeFirstEventsCall(t *testing.T) {
	s := NewStore()
	s.Add(&Listener{ID: "l1", StreamName: "/main.mp3"})

	events := s.Events()
	select {
	case ev := <-events:
		if ev.Type != EventConnected || ev.Listener.ID != "l1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the connect event emitted before Events was called to still be queued")
	}
}
