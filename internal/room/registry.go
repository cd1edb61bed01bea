// internal/room/registry.go
package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fourline/internal/bot"
	"fourline/internal/game"
	"fourline/internal/models"
	"fourline/internal/rating"
)

// MatchSettler is the rating engine surface the registry needs at game end.
type MatchSettler interface {
	SettleMatch(ctx context.Context, winnerID, loserID uuid.UUID) (*rating.Result, error)
}

type queueEntry struct {
	connID   uuid.UUID
	userID   uuid.UUID
	queuedAt time.Time
}

// Registry is the single owner of all rooms, games, and the matchmaking
// queue. Every handler funnels through its mutex, so each operation is
// atomic; the only suspension point is rating settlement, which runs on
// its own goroutine and re-validates room existence before broadcasting.
type Registry struct {
	mu       sync.Mutex
	conns    map[uuid.UUID]*Conn
	rooms    map[uuid.UUID]*Room
	connRoom map[uuid.UUID]uuid.UUID // conn id -> room id, one room per connection
	queue    []queueEntry

	settler MatchSettler
	logger  *logrus.Logger

	settleTimeout time.Duration

	// OnMatchFinished, when set, receives every settled match, e.g. for the
	// historian queue. Invoked outside the registry lock.
	OnMatchFinished func(models.MatchRecord)
}

// NewRegistry builds an empty registry. settler may be nil, in which case
// finished matches are not rated (bot rooms and tests).
func NewRegistry(settler MatchSettler, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		conns:         make(map[uuid.UUID]*Conn),
		rooms:         make(map[uuid.UUID]*Room),
		connRoom:      make(map[uuid.UUID]uuid.UUID),
		settler:       settler,
		logger:        logger,
		settleTimeout: 10 * time.Second,
	}
}

// Register adds a live connection. The transport layer calls this once the
// identity resolver has run (bound or not).
func (r *Registry) Register(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
}

// Disconnect is the single cancellation signal: it removes the connection
// from the queue and from its room (clearing any held seat, notifying the
// remaining members) before returning.
func (r *Registry) Disconnect(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropQueueEntryLocked(conn.ID)
	if roomID, ok := r.connRoom[conn.ID]; ok {
		r.leaveLocked(conn, roomID)
	}
	delete(r.conns, conn.ID)
}

// NewRoomID hands out a room id with no side effects on shared state; the
// room itself materializes lazily on first join.
func (r *Registry) NewRoomID() uuid.UUID {
	return uuid.New()
}

// Join registers the connection as a room member, seats its user if a seat
// is open, and resynchronizes state. Rejoining is a membership no-op but
// still resends role and game snapshot. A connection already in another
// room leaves it first.
func (r *Registry) Join(conn *Conn, roomID uuid.UUID) {
	if !conn.Authenticated() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinLocked(conn, roomID)
}

func (r *Registry) joinLocked(conn *Conn, roomID uuid.UUID) {
	if prev, ok := r.connRoom[conn.ID]; ok && prev != roomID {
		r.leaveLocked(conn, prev)
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = newRoom(roomID)
		r.rooms[roomID] = rm
	}

	if !rm.hasMember(conn.ID) {
		rm.Members = append(rm.Members, conn.ID)
		rm.assignSeat(conn.UserID)
	}
	r.connRoom[conn.ID] = roomID

	conn.Write(Event{Type: EvPlayerRole, Data: rm.seatOf(conn.UserID)})
	conn.Write(Event{Type: EvGameState, Data: rm.Game.Snapshot()})
	r.broadcastLocked(rm, Event{Type: EvRoomUpdate, Data: rm.memberIDs()})
}

// Leave removes the connection from the room if it is a member.
func (r *Registry) Leave(conn *Conn, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.connRoom[conn.ID]; !ok || current != roomID {
		return
	}
	r.leaveLocked(conn, roomID)
}

// leaveLocked removes membership, clears a held seat, notifies the rest of
// the room, and destroys the room when it empties.
func (r *Registry) leaveLocked(conn *Conn, roomID uuid.UUID) {
	rm, ok := r.rooms[roomID]
	if !ok {
		delete(r.connRoom, conn.ID)
		return
	}

	hadSeat := rm.seatOf(conn.UserID) != game.Empty
	rm.removeMember(conn.ID)
	rm.clearSeat(conn.UserID)
	delete(r.connRoom, conn.ID)

	if len(rm.Members) == 0 {
		delete(r.rooms, roomID)
		r.logger.WithField("room", roomID).Info("room emptied, destroyed")
		return
	}
	if hadSeat {
		r.broadcastLocked(rm, Event{Type: EvOpponentLeft})
	}
	r.broadcastLocked(rm, Event{Type: EvRoomUpdate, Data: rm.memberIDs()})
}

// Move validates and applies a column drop for the connection's seat.
// Protocol violations are dropped silently: no state change, no broadcast.
func (r *Registry) Move(conn *Conn, roomID uuid.UUID, col int) {
	if !conn.Authenticated() {
		return
	}

	var settleWinner, settleLoser uuid.UUID

	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	seat := rm.seatOf(conn.UserID)
	if seat == game.Empty {
		r.mu.Unlock()
		return
	}
	if err := rm.Game.ApplyMove(seat, col); err != nil {
		r.logger.WithFields(logrus.Fields{
			"room": roomID,
			"user": conn.UserID,
			"col":  col,
		}).WithError(err).Debug("move rejected")
		r.mu.Unlock()
		return
	}

	r.broadcastLocked(rm, Event{Type: EvGameState, Data: rm.Game.Snapshot()})

	switch winner := rm.Game.Winner; winner {
	case game.Red, game.Yellow:
		winnerID, loserID := rm.Red, rm.Yellow
		if winner == game.Yellow {
			winnerID, loserID = rm.Yellow, rm.Red
		}
		// seats captured at the moment of the winning move; a bot seat
		// (or an already vacated one) settles nothing
		if winnerID != uuid.Nil && loserID != uuid.Nil {
			settleWinner, settleLoser = winnerID, loserID
		}
	case game.Empty:
		if rm.BotSeat && rm.Game.CurrentPlayer == game.Yellow {
			board, diff := rm.Game.Board, rm.BotDifficulty
			go r.applyBotMove(roomID, board, diff)
		}
	}
	r.mu.Unlock()

	if settleWinner != uuid.Nil {
		go r.settleMatch(roomID, settleWinner, settleLoser)
	}
}

// applyBotMove computes the bot's reply off-lock, then re-validates that
// the position it searched is still the live one before applying.
func (r *Registry) applyBotMove(roomID uuid.UUID, board game.Board, diff bot.Difficulty) {
	col := bot.ChooseMove(board, game.Yellow, diff)
	if col < 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok || !rm.BotSeat || rm.Game.Over() {
		return
	}
	if rm.Game.CurrentPlayer != game.Yellow || rm.Game.Board != board {
		return
	}
	if err := rm.Game.ApplyMove(game.Yellow, col); err != nil {
		r.logger.WithField("room", roomID).WithError(err).Warn("bot move rejected")
		return
	}
	r.broadcastLocked(rm, Event{Type: EvGameState, Data: rm.Game.Snapshot()})
}

// Restart replaces the room's game with a fresh one. Only seated members
// may restart.
func (r *Registry) Restart(conn *Conn, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok || rm.seatOf(conn.UserID) == game.Empty {
		return
	}
	rm.Game = game.New()
	r.broadcastLocked(rm, Event{Type: EvGameState, Data: rm.Game.Snapshot()})
}

// PlayOnline pairs the requester with the longest-waiting queued user, or
// queues them. A user occupies at most one queue slot; entries whose
// connection has gone away are pruned opportunistically.
func (r *Registry) PlayOnline(conn *Conn) {
	if !conn.Authenticated() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneQueueLocked()
	for _, e := range r.queue {
		if e.userID == conn.UserID {
			return // already waiting
		}
	}

	if len(r.queue) == 0 {
		r.queue = append(r.queue, queueEntry{connID: conn.ID, userID: conn.UserID, queuedAt: time.Now()})
		conn.Write(Event{Type: EvQueueJoined, Data: map[string]int{"position": len(r.queue)}})
		return
	}

	opp := r.queue[0]
	r.queue = r.queue[1:]
	oppConn, ok := r.conns[opp.connID]
	if !ok {
		// pruned moments ago; retry as if the queue were empty
		r.queue = append(r.queue, queueEntry{connID: conn.ID, userID: conn.UserID, queuedAt: time.Now()})
		conn.Write(Event{Type: EvQueueJoined, Data: map[string]int{"position": len(r.queue)}})
		return
	}

	roomID := uuid.New()
	rm := newRoom(roomID)
	r.rooms[roomID] = rm
	rm.Red = conn.UserID
	rm.Yellow = opp.userID

	r.logger.WithFields(logrus.Fields{
		"room":   roomID,
		"red":    conn.UserID,
		"yellow": opp.userID,
	}).Info("match found")

	for _, c := range []*Conn{conn, oppConn} {
		c.Write(Event{Type: EvMatchFound, Data: map[string]string{"roomId": roomID.String()}})
		r.joinLocked(c, roomID)
	}
}

// LeaveQueue removes the connection's queue entry, if any.
func (r *Registry) LeaveQueue(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropQueueEntryLocked(conn.ID)
}

// PlayBot creates a room whose yellow seat is machine-controlled and joins
// the requester as red.
func (r *Registry) PlayBot(conn *Conn, diff bot.Difficulty) {
	if !conn.Authenticated() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	roomID := uuid.New()
	rm := newRoom(roomID)
	rm.BotSeat = true
	rm.BotDifficulty = diff
	r.rooms[roomID] = rm

	conn.Write(Event{Type: EvMatchFound, Data: map[string]string{"roomId": roomID.String()}})
	r.joinLocked(conn, roomID)
}

// settleMatch runs rating settlement off-lock and only broadcasts the
// eloUpdate once the write is durable. The room may legitimately be gone
// by then; that downgrades the broadcast to a log line.
func (r *Registry) settleMatch(roomID uuid.UUID, winnerID, loserID uuid.UUID) {
	if r.settler == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.settleTimeout)
	defer cancel()

	res, err := r.settler.SettleMatch(ctx, winnerID, loserID)
	if err != nil {
		// the players' displayed ratings are now out of sync with storage
		// until corrected out-of-band; surface loudly and skip the broadcast
		r.logger.WithFields(logrus.Fields{
			"room":   roomID,
			"winner": winnerID,
			"loser":  loserID,
		}).WithError(err).Error("rating settlement failed, eloUpdate suppressed")
		return
	}

	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if ok {
		r.broadcastLocked(rm, Event{Type: EvEloUpdate, Data: res})
	} else {
		r.logger.WithField("room", roomID).Info("room gone before rating broadcast")
	}
	hook := r.OnMatchFinished
	r.mu.Unlock()

	if hook != nil {
		hook(models.MatchRecord{
			RoomID:    roomID,
			WinnerID:  res.WinnerID,
			LoserID:   res.LoserID,
			WinnerElo: res.NewWinnerElo,
			LoserElo:  res.NewLoserElo,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}

// broadcastLocked fans an event out to every member connection.
func (r *Registry) broadcastLocked(rm *Room, ev Event) {
	for _, connID := range rm.Members {
		if c, ok := r.conns[connID]; ok {
			c.Write(ev)
		}
	}
}

func (r *Registry) dropQueueEntryLocked(connID uuid.UUID) {
	for i, e := range r.queue {
		if e.connID == connID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

func (r *Registry) pruneQueueLocked() {
	kept := r.queue[:0]
	for _, e := range r.queue {
		if _, ok := r.conns[e.connID]; ok {
			kept = append(kept, e)
		}
	}
	r.queue = kept
}
