// internal/room/registry_test.go
package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fourline/internal/bot"
	"fourline/internal/game"
	"fourline/internal/models"
	"fourline/internal/rating"
)

// fakeSettler implements MatchSettler without a database.
type fakeSettler struct {
	err   error
	calls [][2]uuid.UUID
	done  chan struct{}
}

func newFakeSettler(err error) *fakeSettler {
	return &fakeSettler{err: err, done: make(chan struct{}, 4)}
}

func (f *fakeSettler) SettleMatch(_ context.Context, winnerID, loserID uuid.UUID) (*rating.Result, error) {
	f.calls = append(f.calls, [2]uuid.UUID{winnerID, loserID})
	defer func() { f.done <- struct{}{} }()
	if f.err != nil {
		return nil, f.err
	}
	w, l := rating.Settle(1500, 1500, rating.DefaultKFactor)
	return &rating.Result{WinnerID: winnerID, NewWinnerElo: w, LoserID: loserID, NewLoserElo: l}, nil
}

func newTestConn(r *Registry) *Conn {
	c := NewConn(uuid.New(), func() {})
	r.Register(c)
	return c
}

// drain empties a connection's outbound channel.
func drain(c *Conn) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.OutChan:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsOfType(evs []Event, typ string) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestJoinAssignsSeatsInOrder(t *testing.T) {
	r := NewRegistry(nil, nil)
	roomID := r.NewRoomID()

	red := newTestConn(r)
	yellow := newTestConn(r)
	spectator := newTestConn(r)

	r.Join(red, roomID)
	r.Join(yellow, roomID)
	r.Join(spectator, roomID)

	rm := r.rooms[roomID]
	require.NotNil(t, rm)
	assert.Equal(t, red.UserID, rm.Red)
	assert.Equal(t, yellow.UserID, rm.Yellow)
	assert.Len(t, rm.Members, 3, "third connection is kept as a spectator")

	roles := eventsOfType(drain(spectator), EvPlayerRole)
	require.NotEmpty(t, roles)
	assert.Equal(t, game.Empty, roles[0].Data, "spectator holds no seat")
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry(nil, nil)
	roomID := r.NewRoomID()
	c := newTestConn(r)

	r.Join(c, roomID)
	g := r.rooms[roomID].Game
	r.Join(c, roomID)

	rm := r.rooms[roomID]
	assert.Len(t, rm.Members, 1, "rejoining must not duplicate membership")
	assert.Same(t, g, rm.Game, "rejoining must not create a second game")

	// the rejoin still resynchronizes role and snapshot
	evs := drain(c)
	assert.Len(t, eventsOfType(evs, EvPlayerRole), 2)
	assert.Len(t, eventsOfType(evs, EvGameState), 2)
}

func TestJoinLeavesPreviousRoom(t *testing.T) {
	r := NewRegistry(nil, nil)
	first := r.NewRoomID()
	second := r.NewRoomID()
	c := newTestConn(r)

	r.Join(c, first)
	r.Join(c, second)

	_, ok := r.rooms[first]
	assert.False(t, ok, "previous room emptied and destroyed on new join")
	assert.Equal(t, second, r.connRoom[c.ID])
}

func TestMoveGravityAndBroadcast(t *testing.T) {
	r := NewRegistry(nil, nil)
	roomID := r.NewRoomID()
	red := newTestConn(r)
	yellow := newTestConn(r)
	r.Join(red, roomID)
	r.Join(yellow, roomID)
	drain(red)
	drain(yellow)

	r.Move(red, roomID, 3)

	rm := r.rooms[roomID]
	assert.Equal(t, game.Red, rm.Game.Board[game.Rows-1][3])
	assert.Equal(t, game.Yellow, rm.Game.CurrentPlayer)
	assert.Len(t, eventsOfType(drain(yellow), EvGameState), 1)
}

func TestMoveRejectionsAreSilent(t *testing.T) {
	r := NewRegistry(nil, nil)
	roomID := r.NewRoomID()
	red := newTestConn(r)
	yellow := newTestConn(r)
	spectator := newTestConn(r)
	r.Join(red, roomID)
	r.Join(yellow, roomID)
	r.Join(spectator, roomID)
	drain(red)
	drain(yellow)
	drain(spectator)

	r.Move(yellow, roomID, 0)     // out of turn
	r.Move(spectator, roomID, 0)  // no seat
	r.Move(red, roomID, 99)       // out of range
	r.Move(red, r.NewRoomID(), 0) // room does not exist

	assert.Empty(t, drain(red), "rejected moves broadcast nothing")
	assert.Empty(t, drain(yellow))
	rm := r.rooms[roomID]
	assert.Equal(t, game.Red, rm.Game.CurrentPlayer, "state unchanged")
}

func TestMatchmakingFIFO(t *testing.T) {
	r := NewRegistry(nil, nil)
	a := newTestConn(r)
	b := newTestConn(r)
	c := newTestConn(r)

	r.PlayOnline(a)
	r.PlayOnline(b)
	r.PlayOnline(c)

	require.Len(t, r.queue, 1, "two of three paired")
	assert.Equal(t, b.UserID, r.queue[0].userID, "B is still waiting")

	found := eventsOfType(drain(a), EvMatchFound)
	require.Len(t, found, 1, "A, the longest waiter, was paired")
	assert.Len(t, eventsOfType(drain(c), EvMatchFound), 1)
	assert.Empty(t, eventsOfType(drain(b), EvMatchFound))

	// requester is red, popped opponent yellow
	roomID, err := uuid.Parse(found[0].Data.(map[string]string)["roomId"])
	require.NoError(t, err)
	rm := r.rooms[roomID]
	assert.Equal(t, c.UserID, rm.Red)
	assert.Equal(t, a.UserID, rm.Yellow)
}

func TestMatchmakingDeduplicatesUser(t *testing.T) {
	r := NewRegistry(nil, nil)
	a := newTestConn(r)

	r.PlayOnline(a)
	r.PlayOnline(a)

	assert.Len(t, r.queue, 1, "same user occupies one queue slot")
	assert.Len(t, eventsOfType(drain(a), EvQueueJoined), 1)
}

func TestMatchmakingPrunesDeadConnections(t *testing.T) {
	r := NewRegistry(nil, nil)
	dead := newTestConn(r)
	r.PlayOnline(dead)
	r.Disconnect(dead)

	live := newTestConn(r)
	r.PlayOnline(live)

	require.Len(t, r.queue, 1)
	assert.Equal(t, live.UserID, r.queue[0].userID)
}

func TestLeaveQueue(t *testing.T) {
	r := NewRegistry(nil, nil)
	a := newTestConn(r)
	r.PlayOnline(a)
	r.LeaveQueue(a)
	assert.Empty(t, r.queue)
	r.LeaveQueue(a) // no-op when absent
}

func TestDisconnectClearsSeatAndDestroysEmptyRoom(t *testing.T) {
	r := NewRegistry(nil, nil)
	roomID := r.NewRoomID()
	red := newTestConn(r)
	yellow := newTestConn(r)
	r.Join(red, roomID)
	r.Join(yellow, roomID)
	drain(red)
	drain(yellow)

	r.Disconnect(red)

	rm := r.rooms[roomID]
	require.NotNil(t, rm)
	assert.Equal(t, uuid.Nil, rm.Red, "departing user's seat cleared")
	assert.Equal(t, yellow.UserID, rm.Yellow, "remaining seat untouched")

	evs := drain(yellow)
	assert.NotEmpty(t, eventsOfType(evs, EvOpponentLeft))
	assert.NotEmpty(t, eventsOfType(evs, EvRoomUpdate))

	r.Disconnect(yellow)
	_, ok := r.rooms[roomID]
	assert.False(t, ok, "last member leaving destroys the room and its game")
}

func TestRestartRequiresSeat(t *testing.T) {
	r := NewRegistry(nil, nil)
	roomID := r.NewRoomID()
	red := newTestConn(r)
	yellow := newTestConn(r)
	spectator := newTestConn(r)
	r.Join(red, roomID)
	r.Join(yellow, roomID)
	r.Join(spectator, roomID)

	r.Move(red, roomID, 0)
	g := r.rooms[roomID].Game
	drain(red)

	r.Restart(spectator, roomID)
	assert.Same(t, g, r.rooms[roomID].Game, "non-seated restart rejected")
	assert.Empty(t, drain(red))

	r.Restart(yellow, roomID)
	rm := r.rooms[roomID]
	assert.NotSame(t, g, rm.Game, "seated restart replaces the game")
	assert.Equal(t, game.Red, rm.Game.CurrentPlayer)
	assert.NotEmpty(t, eventsOfType(drain(red), EvGameState))
}

func winInRoom(t *testing.T, r *Registry, roomID uuid.UUID, red, yellow *Conn) {
	t.Helper()
	// red stacks column 0, yellow column 1; red wins with the 7th move
	cols := []struct {
		c   *Conn
		col int
	}{{red, 0}, {yellow, 1}, {red, 0}, {yellow, 1}, {red, 0}, {yellow, 1}, {red, 0}}
	for _, m := range cols {
		r.Move(m.c, roomID, m.col)
	}
	require.Equal(t, game.Red, r.rooms[roomID].Game.Winner)
}

func TestWinTriggersSettlementAndEloBroadcast(t *testing.T) {
	settler := newFakeSettler(nil)
	r := NewRegistry(settler, nil)
	roomID := r.NewRoomID()
	red := newTestConn(r)
	yellow := newTestConn(r)
	r.Join(red, roomID)
	r.Join(yellow, roomID)
	winInRoom(t, r, roomID, red, yellow)

	select {
	case <-settler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("settlement never ran")
	}
	require.Len(t, settler.calls, 1)
	assert.Equal(t, [2]uuid.UUID{red.UserID, yellow.UserID}, settler.calls[0])

	assert.Eventually(t, func() bool {
		return len(eventsOfType(drain(yellow), EvEloUpdate)) > 0
	}, 2*time.Second, 10*time.Millisecond, "eloUpdate broadcast after durable write")
}

func TestFailedSettlementSuppressesEloBroadcast(t *testing.T) {
	settler := newFakeSettler(errors.New("db down"))
	r := NewRegistry(settler, nil)
	roomID := r.NewRoomID()
	red := newTestConn(r)
	yellow := newTestConn(r)
	r.Join(red, roomID)
	r.Join(yellow, roomID)
	winInRoom(t, r, roomID, red, yellow)

	select {
	case <-settler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("settlement never ran")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, eventsOfType(drain(red), EvEloUpdate))
	assert.Empty(t, eventsOfType(drain(yellow), EvEloUpdate))
}

func TestSettlementToleratesVanishedRoom(t *testing.T) {
	settler := newFakeSettler(nil)
	r := NewRegistry(settler, nil)
	done := make(chan struct{})
	r.OnMatchFinished = func(_ models.MatchRecord) { close(done) }

	roomID := r.NewRoomID()
	red := newTestConn(r)
	yellow := newTestConn(r)
	r.Join(red, roomID)
	r.Join(yellow, roomID)
	winInRoom(t, r, roomID, red, yellow)

	// tear the room down while settlement may still be in flight
	r.Disconnect(red)
	r.Disconnect(yellow)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("match record hook never fired")
	}
}

func TestBotRoomRepliesToHumanMove(t *testing.T) {
	r := NewRegistry(nil, nil)
	human := newTestConn(r)
	r.PlayBot(human, bot.Easy)

	found := eventsOfType(drain(human), EvMatchFound)
	require.Len(t, found, 1)
	roomID, err := uuid.Parse(found[0].Data.(map[string]string)["roomId"])
	require.NoError(t, err)

	rm := r.rooms[roomID]
	require.True(t, rm.BotSeat)
	assert.Equal(t, human.UserID, rm.Red)

	r.Move(human, roomID, 3)
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.rooms[roomID].Game.CurrentPlayer == game.Red
	}, 2*time.Second, 10*time.Millisecond, "bot replies and hands the turn back")
}

func TestUnauthenticatedConnectionIsInert(t *testing.T) {
	r := NewRegistry(nil, nil)
	anon := NewConn(uuid.Nil, func() {})
	r.Register(anon)

	roomID := r.NewRoomID()
	r.Join(anon, roomID)
	r.PlayOnline(anon)
	r.PlayBot(anon, bot.Hard)

	assert.Empty(t, r.rooms)
	assert.Empty(t, r.queue)
	assert.Empty(t, drain(anon))
}
