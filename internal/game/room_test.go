package game

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"

	"github.com/JYuYuan/coupon-game-server/internal/storage"
)

func newTestRooms() *Rooms {
	return NewRooms(storage.NewMemStore[*Room](), func() []PathCell {
		return NewBoardPath(BoardConfig{Size: 4, Stars: 2, Traps: 2})
	})
}

func testPlayer(id string) *Player {
	now := time.Now()
	return &Player{
		Id:          id,
		Name:        id,
		IsConnected: true,
		JoinedAt:    now,
		LastSeen:    now,
	}
}

func TestRooms_Create(t *testing.T) {
	d := newTestRooms()

	room, err := d.Create(CreateParams{Name: "friday night", HostId: "host", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "code length", len(room.Id), 6)
	testutil.AssertEqual(t, "status", room.GameStatus, StatusWaiting)
	testutil.AssertEqual(t, "max players", room.MaxPlayers, DefaultMaxPlayers)
	testutil.AssertEqual(t, "board cells", len(room.BoardPath), 16)
	testutil.AssertEqual(t, "host", room.HostId, "host")

	if d.Get(room.Id) == nil {
		t.Error("expected room to be persisted")
	}
}

func TestRooms_AddPlayer(t *testing.T) {
	d := newTestRooms()
	room, err := d.Create(CreateParams{Name: "r", HostId: "p1", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	room, err = d.AddPlayer(room.Id, testPlayer("p1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	room, err = d.AddPlayer(room.Id, testPlayer("p2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "roster size", len(room.Players), 2)
	testutil.AssertEqual(t, "host flag", room.Players[0].IsHost, true)
	testutil.AssertEqual(t, "guest flag", room.Players[1].IsHost, false)
	testutil.AssertEqual(t, "host color", room.Players[0].Color, colorPalette[0])
	testutil.AssertEqual(t, "guest color", room.Players[1].Color, colorPalette[1])

	// First join seeds the shared game state.
	if room.GameState == nil {
		t.Fatal("expected game state to be seeded")
	}
	testutil.AssertEqual(t, "board size", room.GameState.BoardSize, 16)
	testutil.AssertEqual(t, "p1 position", room.GameState.PlayerPositions["p1"], 0)
	testutil.AssertEqual(t, "p2 position", room.GameState.PlayerPositions["p2"], 0)
}

func TestRooms_AddPlayer_Full(t *testing.T) {
	d := newTestRooms()
	room, err := d.Create(CreateParams{Name: "r", HostId: "p1", MaxPlayers: 2, GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i <= 2; i++ {
		if _, err := d.AddPlayer(room.Id, testPlayer(fmt.Sprintf("p%d", i))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	_, err = d.AddPlayer(room.Id, testPlayer("p3"))
	if !errors.Is(err, ErrRoomFull) {
		t.Errorf("expected ErrRoomFull, got %v", err)
	}
}

func TestRooms_AddPlayer_RejoinIsIdempotent(t *testing.T) {
	d := newTestRooms()
	room, err := d.Create(CreateParams{Name: "r", HostId: "p1", MaxPlayers: 2, GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := d.AddPlayer(room.Id, testPlayer("p1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again := testPlayer("p1")
	again.SocketId = "new-conn"
	room, err = d.AddPlayer(room.Id, again)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "roster size", len(room.Players), 1)
	testutil.AssertEqual(t, "rebound socket", room.Players[0].SocketId, "new-conn")
}

func TestRooms_AddPlayer_MissingRoom(t *testing.T) {
	d := newTestRooms()

	_, err := d.AddPlayer("NOROOM", testPlayer("p1"))
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRooms_RemovePlayer_HostTransfer(t *testing.T) {
	d := newTestRooms()
	room, err := d.Create(CreateParams{Name: "r", HostId: "p1", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := d.AddPlayer(room.Id, testPlayer(id)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	room, err = d.RemovePlayer(room.Id, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "new host", room.HostId, "p2")
	testutil.AssertEqual(t, "roster size", len(room.Players), 2)

	// Exactly one player wears the host flag.
	hosts := 0
	for _, p := range room.Players {
		if p.IsHost {
			hosts++
			testutil.AssertEqual(t, "host id", p.Id, "p2")
		}
	}
	testutil.AssertEqual(t, "host count", hosts, 1)

	// The position map forgets the leaver.
	if _, ok := room.GameState.PlayerPositions["p1"]; ok {
		t.Error("expected p1's position to be dropped")
	}
}

func TestRooms_RemovePlayer_LastOneDeletesRoom(t *testing.T) {
	d := newTestRooms()
	room, err := d.Create(CreateParams{Name: "r", HostId: "p1", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.AddPlayer(room.Id, testPlayer("p1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := d.RemovePlayer(room.Id, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != nil {
		t.Error("expected nil room after last player left")
	}
	if d.Get(room.Id) != nil {
		t.Error("expected emptied room to be deleted")
	}
}

func TestRooms_RemovePlayer_NotAMember(t *testing.T) {
	d := newTestRooms()
	room, err := d.Create(CreateParams{Name: "r", HostId: "p1", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.AddPlayer(room.Id, testPlayer("p1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = d.RemovePlayer(room.Id, "stranger")
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestRooms_RemovePlayerFromAll(t *testing.T) {
	d := newTestRooms()

	r1, err := d.Create(CreateParams{Name: "a", HostId: "p1", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := d.Create(CreateParams{Name: "b", HostId: "p2", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, roomId := range []string{r1.Id, r2.Id} {
		if _, err := d.AddPlayer(roomId, testPlayer("drifter")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := d.AddPlayer(roomId, testPlayer("anchor-"+roomId)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := d.RemovePlayerFromAll("drifter"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, roomId := range []string{r1.Id, r2.Id} {
		room := d.Get(roomId)
		if room == nil {
			t.Fatalf("room %s should survive", roomId)
		}
		if room.Player("drifter") != nil {
			t.Errorf("room %s still lists the drifter", roomId)
		}
	}
}

func TestRooms_CleanupInactive(t *testing.T) {
	d := newTestRooms()

	stale, err := d.Create(CreateParams{Name: "stale", HostId: "p1", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fresh, err := d.Create(CreateParams{Name: "fresh", HostId: "p2", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stale.LastActivity = time.Now().Add(-time.Hour)
	if err := d.store.Save(stale.Id, stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	removed := d.CleanupInactive(30 * time.Minute)

	testutil.AssertEqual(t, "removed", removed, 1)
	if d.Get(stale.Id) != nil {
		t.Error("expected stale room to be swept")
	}
	if d.Get(fresh.Id) == nil {
		t.Error("expected fresh room to survive")
	}
}

func TestRooms_Touch(t *testing.T) {
	d := newTestRooms()

	room, err := d.Create(CreateParams{Name: "r", HostId: "p1", GameType: GameTypeFlight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := room.LastActivity
	time.Sleep(time.Millisecond)

	if err := d.Touch(room.Id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Get(room.Id).LastActivity.After(before) {
		t.Error("expected activity stamp to advance")
	}

	if err := d.Touch("NOROOM"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}
