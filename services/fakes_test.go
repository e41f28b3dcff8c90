package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quizroom/models"
)

// fakeConn records every frame the room sends to one player.
type fakeConn struct {
	mu     sync.Mutex
	frames []Outbound
	closed bool
	reason string
}

func (c *fakeConn) Send(frame Outbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
}

func (c *fakeConn) CloseWithReason(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
}

func (c *fakeConn) framesOfType(frameType string) []Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Outbound
	for _, f := range c.frames {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) lastFrame(frameType string) (Outbound, bool) {
	frames := c.framesOfType(frameType)
	if len(frames) == 0 {
		return Outbound{}, false
	}
	return frames[len(frames)-1], true
}

// slowCloseConn stalls in CloseWithReason until released, standing in for
// a peer whose close handshake hangs on the network.
type slowCloseConn struct {
	fakeConn
	closing chan struct{}
	release chan struct{}
}

func newSlowCloseConn() *slowCloseConn {
	return &slowCloseConn{closing: make(chan struct{}), release: make(chan struct{})}
}

func (c *slowCloseConn) CloseWithReason(reason string) {
	close(c.closing)
	<-c.release
	c.fakeConn.CloseWithReason(reason)
}

// manualScheduler lets tests drive clock transitions by hand.
type manualScheduler struct {
	mu      sync.Mutex
	key     ClockKey
	fn      func(ClockKey)
	armed   bool
	stopped bool
}

func (s *manualScheduler) Schedule(key ClockKey, d time.Duration, fn func(ClockKey)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.key = key
	s.fn = fn
	s.armed = true
}

func (s *manualScheduler) Cancel(key ClockKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed && s.key == key {
		s.armed = false
	}
}

func (s *manualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.armed = false
}

// fire triggers the currently armed timer, as the real clock would at
// expiry.
func (s *manualScheduler) fire() {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return
	}
	key, fn := s.key, s.fn
	s.armed = false
	s.mu.Unlock()
	fn(key)
}

func (s *manualScheduler) armedKey() (ClockKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.armed
}

// fakeBank serves a deterministic deck.
type fakeBank struct {
	deck []models.Question
	err  error
}

func (b *fakeBank) Questions(ctx context.Context, category string) ([]models.Question, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.deck, nil
}

// makeDeck builds a deck of n multiple-choice questions. Question i has
// options with ids 10*i+1..10*i+4 and the first one is correct.
func makeDeck(n int) []models.Question {
	deck := make([]models.Question, 0, n)
	for i := 1; i <= n; i++ {
		q := models.Question{
			ID:   uint(i),
			Type: models.QuestionTypeMultipleChoice,
			Text: fmt.Sprintf("question %d", i),
		}
		for j := 1; j <= 4; j++ {
			q.Options = append(q.Options, models.Option{
				ID:         uint(10*i + j),
				QuestionID: q.ID,
				Text:       fmt.Sprintf("option %d", j),
				IsCorrect:  j == 1,
				Order:      j,
			})
		}
		deck = append(deck, q)
	}
	return deck
}

func correctOptionID(questionNumber int) uint {
	return uint(10*questionNumber + 1)
}

func wrongOptionID(questionNumber int) uint {
	return uint(10*questionNumber + 2)
}

type roomFixture struct {
	room  *Room
	clock *manualScheduler
	bank  *fakeBank
}

func newRoomFixture(host Identity, deckSize int) *roomFixture {
	clock := &manualScheduler{}
	bank := &fakeBank{deck: makeDeck(deckSize)}
	room := NewRoom("123456", host, "History", RoomDeps{
		Bank:           bank,
		Clock:          clock,
		QuestionWindow: AnswerWindow,
		ResultsHold:    3 * time.Second,
		GameOverLinger: time.Minute,
		MaxPlayers:     50,
	})
	return &roomFixture{room: room, clock: clock, bank: bank}
}
