package services

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

var roomCodePattern = regexp.MustCompile(`^\d{6}$`)

func newTestRegistry() *Registry {
	return NewRegistry(RegistryConfig{
		Bank:           &fakeBank{deck: makeDeck(QuestionsPerGame)},
		QuestionWindow: AnswerWindow,
		ResultsHold:    3 * time.Second,
		GameOverLinger: time.Minute,
		LobbyIdleTTL:   time.Hour,
		MaxPlayers:     50,
		NewScheduler:   func() Scheduler { return &manualScheduler{} },
	})
}

func TestRegistryCreateAndResolve(t *testing.T) {
	reg := newTestRegistry()

	room, err := reg.CreateRoom(testHost, "History")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !roomCodePattern.MatchString(room.Code()) {
		t.Fatalf("room code %q is not six digits", room.Code())
	}
	if room.HostID() != testHost.ID {
		t.Fatalf("host %s, want %s", room.HostID(), testHost.ID)
	}
	if !room.IsMember(testHost.ID) {
		t.Fatal("host is not a member of their own room")
	}

	got, err := reg.Resolve(room.Code())
	if err != nil || got != room {
		t.Fatalf("resolve: %v %v", got, err)
	}
	if _, err := reg.Resolve("000000x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve unknown: got %v, want ErrNotFound", err)
	}
}

func TestRegistryCodesAreUnique(t *testing.T) {
	reg := newTestRegistry()

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		room, err := reg.CreateRoom(testHost, "History")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if seen[room.Code()] {
			t.Fatalf("code %s handed out twice", room.Code())
		}
		seen[room.Code()] = true
	}
	if reg.Len() != 200 {
		t.Fatalf("registry holds %d rooms, want 200", reg.Len())
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	reg := newTestRegistry()
	room, err := reg.CreateRoom(testHost, "History")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reg.Remove(room.Code())
	reg.Remove(room.Code())

	if _, err := reg.Resolve(room.Code()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve after remove: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry not empty: %d", reg.Len())
	}
}

func TestRegistryTeardownUnregisters(t *testing.T) {
	reg := newTestRegistry()
	room, err := reg.CreateRoom(testHost, "History")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	room.Teardown("room reclaimed after inactivity")

	if _, err := reg.Resolve(room.Code()); !errors.Is(err, ErrNotFound) {
		t.Fatal("torn-down room still resolvable")
	}
	// The code is free for reuse once the room is gone.
	if reg.Len() != 0 {
		t.Fatalf("registry holds %d rooms after teardown", reg.Len())
	}
}
