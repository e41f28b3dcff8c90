package services

import (
	"context"
	"sync"
	"time"

	"quizroom/models"

	"go.uber.org/zap"
)

type Phase uint8

const (
	PhaseLobby Phase = iota + 1
	PhaseInQuestion
	PhaseShowingResults
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseInQuestion:
		return "in_question"
	case PhaseShowingResults:
		return "showing_results"
	case PhaseGameOver:
		return "game_over"
	}
	return "unknown"
}

// PlayerConn is one player's live connection as the room sees it. Send must
// never block the caller; the hub backs it with a buffered channel.
type PlayerConn interface {
	Send(frame Outbound)
	CloseWithReason(reason string)
}

type Player struct {
	Identity
	Score     int
	JoinOrder int
	Connected bool
	conn      PlayerConn
}

type pendingAnswer struct {
	answer     AnswerPayload
	correct    bool
	delta      int
	receivedAt time.Time
}

// RoomDeps are the collaborators a room needs. Tests substitute fakes for
// all of them.
type RoomDeps struct {
	Bank      QuestionBank
	Clock     Scheduler
	Snapshots SnapshotStore
	Records   GameRecorder
	Logger    *zap.SugaredLogger

	QuestionWindow time.Duration
	ResultsHold    time.Duration
	GameOverLinger time.Duration
	MaxPlayers     int

	// OnClosed is invoked once, after teardown, so the registry can drop
	// the room from its map.
	OnClosed func(code string)
}

// Room owns one game session. All state is guarded by mu; timer callbacks
// re-enter through the same mutex, so every operation on a room is
// serialized while rooms stay fully independent of each other.
type Room struct {
	code      string
	hostID    string
	category  string
	createdAt time.Time

	deps RoomDeps

	mu               sync.Mutex
	phase            Phase
	players          map[string]*Player
	joinOrder        []string
	questionIndex    int
	deck             []models.Question
	questionOpenedAt time.Time
	pending          map[string]*pendingAnswer
	lastResults      *ResultsPayload
	startedAt        time.Time
	lastActivity     time.Time
	closed           bool
	closeOnce        sync.Once
}

func NewRoom(code string, host Identity, category string, deps RoomDeps) *Room {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	now := time.Now()
	r := &Room{
		code:         code,
		hostID:       host.ID,
		category:     category,
		createdAt:    now,
		deps:         deps,
		phase:        PhaseLobby,
		players:      map[string]*Player{},
		pending:      map[string]*pendingAnswer{},
		lastActivity: now,
	}
	// The host is a member from the start, disconnected until their
	// connection attaches.
	r.players[host.ID] = &Player{Identity: host, JoinOrder: 0}
	r.joinOrder = []string{host.ID}
	return r
}

func (r *Room) Code() string     { return r.code }
func (r *Room) HostID() string   { return r.hostID }
func (r *Room) Category() string { return r.category }

func (r *Room) CurrentPhase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) QuestionIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questionIndex
}

func (r *Room) IsMember(identityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[identityID]
	return ok
}

func (r *Room) PlayerScore(identityID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[identityID]
	if !ok {
		return 0, false
	}
	return p.Score, true
}

// Attach admits a connection for identity, as a new member or as a
// reconnect. ack is the frame type used for the private acknowledgement
// (room_created for the host's create_room, room_joined otherwise).
func (r *Room) Attach(identity Identity, conn PlayerConn, ack string) error {
	stale, err := r.admit(identity, conn, ack)
	// Closing a connection touches the network, so it happens only after
	// the room lock is released; a slow peer must never stall the room.
	if stale != nil {
		stale.CloseWithReason("replaced by a newer connection")
	}
	return err
}

func (r *Room) admit(identity Identity, conn PlayerConn, ack string) (PlayerConn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomClosed
	}
	r.lastActivity = time.Now()

	var stale PlayerConn
	player, known := r.players[identity.ID]
	if known {
		// Reconnect: the prior connection, if still open, is replaced.
		if player.conn != nil && player.conn != conn {
			stale = player.conn
		}
		player.conn = conn
		player.Connected = true
		if identity.Nickname != "" {
			player.Nickname = identity.Nickname
		}
		if identity.Avatar != "" {
			player.Avatar = identity.Avatar
		}
	} else {
		if r.phase == PhaseGameOver {
			return nil, ErrRoomClosed
		}
		// Late join: once play has begun the roster is frozen so the
		// leaderboard stays consistent.
		if r.questionIndex > 0 {
			return nil, ErrGameInProgress
		}
		if r.deps.MaxPlayers > 0 && len(r.players) >= r.deps.MaxPlayers {
			return nil, ErrCapacityExceeded
		}
		player = &Player{Identity: identity, JoinOrder: len(r.joinOrder), Connected: true, conn: conn}
		r.players[identity.ID] = player
		r.joinOrder = append(r.joinOrder, identity.ID)
	}

	conn.Send(Outbound{Type: ack, Payload: r.rosterLocked(identity.ID)})
	r.sendPhaseSnapshotLocked(player)
	r.broadcastLocked(Outbound{Type: OutboundUpdatePlayers, Payload: r.rosterLocked("")})
	r.persistSnapshotLocked()
	return stale, nil
}

// sendPhaseSnapshotLocked brings a (re)connecting player up to the current
// phase. No backlog is replayed; latest state wins.
func (r *Room) sendPhaseSnapshotLocked(player *Player) {
	switch r.phase {
	case PhaseInQuestion:
		player.conn.Send(r.questionFrameLocked())
	case PhaseShowingResults:
		if r.lastResults != nil {
			player.conn.Send(Outbound{Type: OutboundResults, Payload: *r.lastResults})
		}
	case PhaseGameOver:
		if r.lastResults != nil {
			player.conn.Send(Outbound{Type: OutboundGameOver, Payload: *r.lastResults})
		}
	}
}

// Start begins the game. Host only, lobby only. The whole deck is fetched
// up front so a flaky question bank can fail the start call instead of a
// mid-game transition.
func (r *Room) Start(identityID string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	if identityID != r.hostID {
		r.mu.Unlock()
		return ErrNotHost
	}
	if r.phase != PhaseLobby {
		r.mu.Unlock()
		return ErrInvalidPhase
	}
	category := r.category
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	deck, err := r.deps.Bank.Questions(ctx, category)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if r.phase != PhaseLobby {
		return ErrInvalidPhase
	}
	r.deck = deck
	r.startedAt = time.Now()
	r.lastActivity = r.startedAt
	r.questionIndex = 1
	r.openQuestionLocked()
	return nil
}

func (r *Room) openQuestionLocked() {
	r.phase = PhaseInQuestion
	r.pending = map[string]*pendingAnswer{}
	r.questionOpenedAt = time.Now()
	r.broadcastLocked(r.questionFrameLocked())
	r.deps.Clock.Schedule(
		ClockKey{Stage: StageQuestion, Question: r.questionIndex},
		r.deps.QuestionWindow,
		r.onClockFire,
	)
	r.persistSnapshotLocked()
}

func (r *Room) questionFrameLocked() Outbound {
	q := r.deck[r.questionIndex-1]
	return Outbound{Type: OutboundQuestion, Payload: QuestionPayload{
		Question: questionView(&q),
		CurrentQ: r.questionIndex,
		TotalQ:   len(r.deck),
	}}
}

// SubmitAnswer records one player's answer for the open question. Multiple
// choice takes a single submission; fill in the blank accepts retries until
// the answer is correct or the window closes. Feedback goes to the
// submitter alone and never reveals the answer key.
func (r *Room) SubmitAnswer(identityID string, answer AnswerPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if r.phase != PhaseInQuestion {
		return ErrInvalidPhase
	}
	player, ok := r.players[identityID]
	if !ok {
		return ErrNotFound
	}

	q := r.deck[r.questionIndex-1]
	if prior, answered := r.pending[identityID]; answered {
		if q.Type != models.QuestionTypeFillInTheBlank || prior.correct {
			return ErrAlreadyAnswered
		}
	}

	now := time.Now()
	r.lastActivity = now
	correct, delta := Score(&q, answer, now.Sub(r.questionOpenedAt), r.questionIndex)
	r.pending[identityID] = &pendingAnswer{
		answer:     answer,
		correct:    correct,
		delta:      delta,
		receivedAt: now,
	}

	if player.conn != nil && player.Connected {
		player.conn.Send(Outbound{Type: OutboundAnswerFeedback, Payload: AnswerFeedbackPayload{Correct: correct}})
	}
	return nil
}

// onClockFire is the single entry point for timer-driven transitions. The
// key is validated against the current phase and question index under the
// room lock, so a firing that lost the race with another transition is a
// no-op.
func (r *Room) onClockFire(key ClockKey) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	switch key.Stage {
	case StageQuestion:
		if r.phase != PhaseInQuestion || key.Question != r.questionIndex {
			r.mu.Unlock()
			return
		}
		r.closeQuestionLocked()
		r.mu.Unlock()
	case StageResults:
		if r.phase != PhaseShowingResults || key.Question != r.questionIndex {
			r.mu.Unlock()
			return
		}
		r.advanceOrFinishLocked()
		r.mu.Unlock()
	case StageTeardown:
		r.mu.Unlock()
		r.Teardown("game over")
	default:
		r.mu.Unlock()
	}
}

// closeQuestionLocked ends the submission window: apply score deltas, rank,
// reveal the answer, move to showing results.
func (r *Room) closeQuestionLocked() {
	q := r.deck[r.questionIndex-1]

	deltas := map[string]int{}
	for id, pa := range r.pending {
		if pa.correct {
			r.players[id].Score += pa.delta
			deltas[id] = pa.delta
		}
	}
	r.pending = map[string]*pendingAnswer{}

	board := Rank(r.playersLocked(), deltas)
	r.lastResults = &ResultsPayload{Leaderboard: board, CorrectID: q.CorrectOptionID()}

	r.phase = PhaseShowingResults
	r.broadcastLocked(Outbound{Type: OutboundResults, Payload: *r.lastResults})
	r.deps.Clock.Schedule(
		ClockKey{Stage: StageResults, Question: r.questionIndex},
		r.deps.ResultsHold,
		r.onClockFire,
	)
	r.persistSnapshotLocked()
}

// advanceOrFinishLocked moves to the next question, or ends the game when
// the deck is exhausted. The deck was fetched at start, so there is no
// upstream call that could leave the room hanging here.
func (r *Room) advanceOrFinishLocked() {
	if r.questionIndex < len(r.deck) {
		r.questionIndex++
		r.openQuestionLocked()
		return
	}
	r.finishLocked()
}

func (r *Room) finishLocked() {
	r.phase = PhaseGameOver
	board := Rank(r.playersLocked(), nil)
	correctID := uint(0)
	if r.lastResults != nil {
		correctID = r.lastResults.CorrectID
	}
	r.lastResults = &ResultsPayload{Leaderboard: board, CorrectID: correctID}
	r.broadcastLocked(Outbound{Type: OutboundGameOver, Payload: *r.lastResults})
	r.persistSnapshotLocked()
	r.recordGameLocked(board)

	r.deps.Clock.Schedule(
		ClockKey{Stage: StageTeardown, Question: r.questionIndex},
		r.deps.GameOverLinger,
		r.onClockFire,
	)
}

func (r *Room) recordGameLocked(board []LeaderboardEntry) {
	if r.deps.Records == nil {
		return
	}
	record := &models.GameRecord{
		RoomCode:  r.code,
		Category:  r.category,
		HostID:    r.hostID,
		StartedAt: r.startedAt,
		EndedAt:   time.Now(),
	}
	for _, entry := range board {
		record.Scores = append(record.Scores, models.GameScore{
			PlayerID: entry.PlayerID,
			Nickname: entry.Nickname,
			Score:    entry.Score,
			Rank:     entry.Rank,
		})
	}
	logger := r.deps.Logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.deps.Records.RecordGame(ctx, record); err != nil {
			logger.Errorf("recording game %s: %v", record.RoomCode, err)
		}
	}()
}

// Disconnect marks a player's transport as lost. Scores survive so a
// reconnect with the same identity restores them.
func (r *Room) Disconnect(identityID string, conn PlayerConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	player, ok := r.players[identityID]
	if !ok || r.closed {
		return
	}
	// A stale pump racing a reconnect must not detach the new connection.
	if conn != nil && player.conn != conn {
		return
	}
	player.Connected = false
	player.conn = nil
	r.lastActivity = time.Now()
	r.broadcastLocked(Outbound{Type: OutboundUpdatePlayers, Payload: r.rosterLocked("")})
	r.persistSnapshotLocked()
}

// Leave is an explicit departure. In the lobby the entry is removed; once
// play has begun it is only marked disconnected, keeping the leaderboard
// intact. The host is never removed and the host role is never reassigned.
func (r *Room) Leave(identityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	player, ok := r.players[identityID]
	if !ok || r.closed {
		return
	}
	if r.phase == PhaseLobby && identityID != r.hostID {
		delete(r.players, identityID)
		for i, id := range r.joinOrder {
			if id == identityID {
				r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
				break
			}
		}
	} else {
		player.Connected = false
		player.conn = nil
	}
	r.lastActivity = time.Now()
	r.broadcastLocked(Outbound{Type: OutboundUpdatePlayers, Payload: r.rosterLocked("")})
	r.persistSnapshotLocked()
}

// Teardown closes the room: timers cancelled, members disconnected with a
// reason, registry notified. Safe to call more than once.
func (r *Room) Teardown(reason string) {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.deps.Clock.Stop()
		conns := make([]PlayerConn, 0, len(r.players))
		for _, p := range r.players {
			if p.conn != nil {
				conns = append(conns, p.conn)
			}
			p.Connected = false
			p.conn = nil
		}
		code := r.code
		r.mu.Unlock()

		for _, c := range conns {
			c.CloseWithReason(reason)
		}
		if r.deps.Snapshots != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := r.deps.Snapshots.Delete(ctx, code); err != nil {
					r.deps.Logger.Warnf("deleting snapshot for room %s: %v", code, err)
				}
			}()
		}
		if r.deps.OnClosed != nil {
			r.deps.OnClosed(code)
		}
	})
}

// Reclaimable reports whether the janitor may tear the room down: a lobby
// idle past its TTL with nobody connected, or any room with no members left.
func (r *Room) Reclaimable(lobbyIdleTTL time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	connected := 0
	for _, p := range r.players {
		if p.Connected {
			connected++
		}
	}
	if connected > 0 {
		return false
	}
	return now.Sub(r.lastActivity) > lobbyIdleTTL
}

func (r *Room) playersLocked() []*Player {
	players := make([]*Player, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		if p, ok := r.players[id]; ok {
			players = append(players, p)
		}
	}
	return players
}

func (r *Room) rosterLocked(currentUserID string) RosterPayload {
	payload := RosterPayload{
		RoomID:        r.code,
		HostID:        r.hostID,
		CurrentUserID: currentUserID,
		Players:       make([]RosterEntry, 0, len(r.joinOrder)),
	}
	for _, p := range r.playersLocked() {
		payload.Players = append(payload.Players, RosterEntry{
			ID:        p.ID,
			Nickname:  p.Nickname,
			Avatar:    p.Avatar,
			Score:     p.Score,
			Connected: p.Connected,
		})
	}
	return payload
}

// broadcastLocked fans a frame out to every connected member. Each member's
// connection has an ordered send queue, so members observe broadcasts in
// the order the state machine generated them.
func (r *Room) broadcastLocked(frame Outbound) {
	for _, id := range r.joinOrder {
		p, ok := r.players[id]
		if !ok || !p.Connected || p.conn == nil {
			continue
		}
		p.conn.Send(frame)
	}
}

func (r *Room) persistSnapshotLocked() {
	if r.deps.Snapshots == nil {
		return
	}
	snap := &RoomSnapshot{
		Code:          r.code,
		Category:      r.category,
		HostID:        r.hostID,
		Phase:         r.phase.String(),
		QuestionIndex: r.questionIndex,
		Players:       r.rosterLocked("").Players,
		UpdatedAt:     time.Now(),
	}
	logger := r.deps.Logger
	store := r.deps.Snapshots
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Save(ctx, snap); err != nil {
			logger.Warnf("storing snapshot for room %s: %v", snap.Code, err)
		}
	}()
}
