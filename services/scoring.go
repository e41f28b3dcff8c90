package services

import (
	"sort"
	"strings"
	"time"

	"quizroom/models"
)

const (
	// QuestionsPerGame is the fixed round length of every game.
	QuestionsPerGame = 10

	// AnswerWindow is the scoring window: a correct answer earns the full
	// ceiling at 0ms elapsed, decaying linearly to 0 at the window edge.
	AnswerWindow = 10 * time.Second

	answerCeiling           = 1000
	finalQuestionMultiplier = 2
)

// CheckAnswer reports whether the submitted answer is correct for the
// question. Multiple choice matches by option id, fill in the blank by a
// trimmed, case-insensitive comparison against the answer key.
func CheckAnswer(q *models.Question, answer AnswerPayload) bool {
	switch q.Type {
	case models.QuestionTypeFillInTheBlank:
		given := strings.TrimSpace(answer.AnswerText)
		if given == "" {
			return false
		}
		return strings.EqualFold(given, strings.TrimSpace(q.Answer))
	default:
		return answer.AnswerID != 0 && answer.AnswerID == q.CorrectOptionID()
	}
}

// Score computes the score delta for an answer received elapsed time after
// the question opened. Pure function of its inputs: incorrect answers score
// 0, correct ones decay linearly across the window, and the final question
// pays double.
func Score(q *models.Question, answer AnswerPayload, elapsed time.Duration, questionNumber int) (bool, int) {
	if !CheckAnswer(q, answer) {
		return false, 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := AnswerWindow - elapsed
	if remaining < 0 {
		remaining = 0
	}
	delta := int(int64(answerCeiling) * int64(remaining) / int64(AnswerWindow))
	if questionNumber == QuestionsPerGame {
		delta *= finalQuestionMultiplier
	}
	return true, delta
}

// Rank produces the full leaderboard: score descending, ties broken by join
// order (earlier joiner first) so the output is deterministic for any input
// permutation. deltas may be nil; consumers truncate to top-N themselves.
func Rank(players []*Player, deltas map[string]int) []LeaderboardEntry {
	ranked := make([]*Player, len(players))
	copy(ranked, players)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].JoinOrder < ranked[j].JoinOrder
	})

	board := make([]LeaderboardEntry, 0, len(ranked))
	for i, p := range ranked {
		board = append(board, LeaderboardEntry{
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Score:    p.Score,
			Delta:    deltas[p.ID],
			Rank:     i + 1,
		})
	}
	return board
}
