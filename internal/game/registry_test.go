package game

import (
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/JYuYuan/coupon-game-server/internal/storage"
)

func TestRegistry_CreateKnownTag(t *testing.T) {
	r := NewRegistry()
	r.Register(GameTypeFlight, NewFlightGame)

	rooms := newTestRooms()
	room, err := rooms.Create(CreateParams{Name: "r", HostId: "p1", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	engine := r.Create(GameTypeFlight, room, rooms, &fakeTx{})
	if engine == nil {
		t.Fatal("expected an engine for a registered tag")
	}

	if _, ok := engine.(*FlightGame); !ok {
		t.Errorf("expected a FlightGame, got %T", engine)
	}
}

func TestRegistry_CreateUnknownTag(t *testing.T) {
	r := NewRegistry()

	rooms := NewRooms(storage.NewMemStore[*Room](), nil)
	room, err := rooms.Create(CreateParams{Name: "r", HostId: "p1", GameType: "chess"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	engine := r.Create("chess", room, rooms, &fakeTx{})
	if engine != nil {
		t.Error("expected nil for an unregistered tag")
	}
}

func TestRegistry_Tags(t *testing.T) {
	r := NewRegistry()
	r.Register("zebra", NewFlightGame)
	r.Register("aardvark", NewFlightGame)
	r.Register(GameTypeFlight, NewFlightGame)

	tags := r.Tags()

	testutil.AssertEqual(t, "tag count", len(tags), 3)
	testutil.AssertEqual(t, "sorted first", tags[0], "aardvark")
	testutil.AssertEqual(t, "sorted second", tags[1], GameTypeFlight)
	testutil.AssertEqual(t, "sorted third", tags[2], "zebra")
}
