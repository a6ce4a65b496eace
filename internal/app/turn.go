package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/feedback"
	"quiz-agent-service/internal/intent"
	"quiz-agent-service/internal/metrics"
)

const (
	msgStoreEmpty  = "There are no questions available yet. Please add questions and start a new quiz."
	msgExhausted   = "You have answered every question that matches your settings. Try another category or difficulty."
	msgCompleted   = "Quiz complete!"
	msgQuit        = "Quiz ended. Thanks for playing!"
	msgUnclear     = "Sorry, I didn't catch that. Please answer the question or say skip."
	msgPreferences = "Preferences updated."
)

// TurnResult is what a client sees after one turn.
type TurnResult struct {
	SessionID     string                 `json:"sessionId"`
	ParticipantID string                 `json:"participantId,omitempty"`
	Phase         domain.Phase           `json:"phase"`
	Evaluation    *domain.Evaluation     `json:"evaluation,omitempty"`
	CorrectAnswer string                 `json:"correctAnswer,omitempty"`
	Explanation   string                 `json:"explanation,omitempty"`
	Score         string                 `json:"score"`
	Progress      domain.Progress        `json:"progress"`
	Question      *domain.PublicQuestion `json:"question,omitempty"`
	Confirmations []string               `json:"confirmations,omitempty"`
	Message       string                 `json:"message,omitempty"`
	FinishReason  domain.FinishReason    `json:"finishReason,omitempty"`
}

// Finished reports whether the turn ended the session.
func (r *TurnResult) Finished() bool {
	return r.Phase == domain.PhaseFinished
}

// Start moves an idle session to its first question.
func (s *QuizService) Start(ctx context.Context, id string) (*TurnResult, error) {
	var res *TurnResult
	err := s.withSession(ctx, id, func(session *domain.Session) error {
		if err := checkOpen(session, domain.PhaseIdle); err != nil {
			return err
		}
		res = &TurnResult{SessionID: session.ID}
		turnErr := s.begin(ctx, session, res)
		if err := s.commit(ctx, session, res); err != nil {
			return err
		}
		s.countTurn("start", turnErr)
		return turnErr
	})
	return res, err
}

// Advance retries retrieval for a session left in asking, for example after
// the question store timed out.
func (s *QuizService) Advance(ctx context.Context, id string) (*TurnResult, error) {
	var res *TurnResult
	err := s.withSession(ctx, id, func(session *domain.Session) error {
		if err := checkOpen(session, domain.PhaseAsking); err != nil {
			return err
		}
		res = &TurnResult{SessionID: session.ID}
		turnErr := s.askNext(ctx, session, res)
		if err := s.commit(ctx, session, res); err != nil {
			return err
		}
		s.countTurn("advance", turnErr)
		return turnErr
	})
	return res, err
}

// SubmitInput runs one turn: classify, apply, evaluate, advance. Turns on the
// same session are serialised. participantID selects who is scored; empty
// means the first participant.
func (s *QuizService) SubmitInput(ctx context.Context, id, text, participantID string) (*TurnResult, error) {
	var res *TurnResult
	err := s.withSession(ctx, id, func(session *domain.Session) error {
		if session.Phase == domain.PhaseFinished {
			return domain.ErrSessionFinished
		}
		if participantID != "" {
			if _, err := session.Participant(participantID); err != nil {
				return err
			}
		}

		var current *domain.Question
		if session.CurrentQuestionID != "" {
			q, err := s.questions.Get(ctx, session.CurrentQuestionID)
			switch {
			case errors.Is(err, domain.ErrQuestionNotFound):
				s.logger.Warn("current question vanished from store",
					zap.String("session_id", session.ID),
					zap.String("question_id", session.CurrentQuestionID))
			case err != nil:
				return domain.WrapCollaborator("question_store", "get", err)
			default:
				current = &q
			}
		}

		questionText := ""
		if current != nil {
			questionText = current.Text
		}
		intents, err := s.classifier.Classify(ctx, text, questionText, session.Phase)
		if err != nil {
			return err
		}

		delta := s.applier.Apply(intents, session, text, questionText)
		res = &TurnResult{SessionID: session.ID, ParticipantID: participantID, Confirmations: delta.Confirmations}
		label, turnErr := s.play(ctx, session, delta, current, res)
		if errors.Is(turnErr, domain.ErrInvalidPhase) {
			return turnErr
		}
		if err := s.commit(ctx, session, res); err != nil {
			return err
		}
		s.forwardRatings(session, participantID, current, delta)
		s.countTurn(label, turnErr)
		return turnErr
	})
	return res, err
}

// play moves the session according to delta and reports a metrics label.
func (s *QuizService) play(ctx context.Context, session *domain.Session, delta intent.Delta, current *domain.Question, res *TurnResult) (string, error) {
	switch {
	case delta.Quit:
		if err := finish(session, domain.FinishQuit, res); err != nil {
			return "", err
		}
		return "quit", nil

	case session.Phase == domain.PhaseIdle:
		if !delta.Start {
			return "", fmt.Errorf("%w: say start to begin the quiz", domain.ErrInvalidPhase)
		}
		return "start", s.begin(ctx, session, res)

	case session.Phase == domain.PhaseAsking:
		return "advance", s.askNext(ctx, session, res)

	case session.Phase == domain.PhaseAwaitingAnswer && delta.Advances():
		// a question deleted mid-session counts as skipped
		eval := domain.NewEvaluation(domain.OutcomeSkipped, false)
		if current != nil {
			var err error
			if eval, err = s.evaluate(ctx, delta, *current); err != nil {
				return "", err
			}
		}
		if err := transition(session, domain.PhaseEvaluating); err != nil {
			return "", err
		}
		s.score(session, res, eval)
		if current != nil {
			res.CorrectAnswer = current.CorrectAnswer.Canonical()
			if delta.ExplanationRequested {
				res.Explanation = current.Explanation
			}
		}
		session.CurrentQuestionID = ""

		if len(session.AskedQuestionIDs) >= session.MaxQuestions {
			if err := finish(session, domain.FinishCompleted, res); err != nil {
				return "", err
			}
			return string(eval.Outcome), nil
		}
		return string(eval.Outcome), s.askNext(ctx, session, res)

	default:
		switch {
		case delta.PreferencesChanged:
			res.Message = msgPreferences
		case delta.Unclear && len(res.Confirmations) == 0:
			res.Message = msgUnclear
		}
		return "no_advance", nil
	}
}

func (s *QuizService) evaluate(ctx context.Context, delta intent.Delta, q domain.Question) (domain.Evaluation, error) {
	if delta.Answer == nil {
		return domain.NewEvaluation(domain.OutcomeSkipped, false), nil
	}
	return s.evaluator.Evaluate(ctx, *delta.Answer, q)
}

// score credits eval to the participant whose turn it was.
func (s *QuizService) score(session *domain.Session, res *TurnResult, eval domain.Evaluation) {
	res.Evaluation = &eval
	session.LastAnswerCorrect = eval.Outcome == domain.OutcomeCorrect

	p, err := session.Participant(res.ParticipantID)
	if err != nil {
		return
	}
	if eval.Score > 0 {
		p.Score += eval.Score
		p.LastUpdated = s.now()
	}
	if eval.Outcome != domain.OutcomeSkipped {
		p.AnsweredCount++
	}
	if eval.Outcome == domain.OutcomeCorrect {
		p.CorrectCount++
	}
}

// begin resets scores and history and asks the first question.
func (s *QuizService) begin(ctx context.Context, session *domain.Session, res *TurnResult) error {
	session.AskedQuestionIDs = []string{}
	session.SkippedTurns = nil
	session.CurrentQuestionID = ""
	session.CurrentTopic = ""
	session.FinishReason = ""
	session.LastAnswerCorrect = false
	for i := range session.Participants {
		p := &session.Participants[i]
		p.Score, p.AnsweredCount, p.CorrectCount = 0, 0, 0
	}
	s.logger.Info("quiz started", zap.String("session_id", session.ID))
	return s.askNext(ctx, session, res)
}

// askNext retrieves the next question. An empty or exhausted store finishes
// the session; any other failure leaves it in asking so Advance can retry.
func (s *QuizService) askNext(ctx context.Context, session *domain.Session, res *TurnResult) error {
	if err := transition(session, domain.PhaseAsking); err != nil {
		return err
	}
	q, err := s.retriever.Next(ctx, session, nil)
	switch {
	case errors.Is(err, domain.ErrStoreEmpty):
		return finish(session, domain.FinishStoreEmpty, res)
	case errors.Is(err, domain.ErrQuestionsExhausted):
		return finish(session, domain.FinishExhausted, res)
	case err != nil:
		s.logger.Warn("question retrieval failed",
			zap.String("session_id", session.ID), zap.Error(err))
		return err
	}

	session.AskedQuestionIDs = append(session.AskedQuestionIDs, q.ID)
	session.CurrentQuestionID = q.ID
	session.CurrentTopic = q.Topic
	pub := q.Public()
	res.Question = &pub
	return transition(session, domain.PhaseAwaitingAnswer)
}

// commit refreshes expiry, writes the session back and notifies subscribers.
func (s *QuizService) commit(ctx context.Context, session *domain.Session, res *TurnResult) error {
	now := s.now()
	session.Touch(now)
	if err := s.sessions.Update(ctx, session); err != nil {
		return err
	}
	res.Phase = session.Phase
	res.Progress = progress(session)
	res.Score = scoreLine(session, res.ParticipantID)
	s.hub.Publish(BuildScoreboard(session, now))
	return nil
}

func (s *QuizService) countTurn(label string, err error) {
	if err != nil {
		label = "error"
	}
	metrics.Turns.WithLabelValues(label).Inc()
}

// Rate records a 1..5 rating for the open question, or the last asked one
// once the session is between questions.
func (s *QuizService) Rate(ctx context.Context, id string, value int, comment, participantID string) error {
	if err := feedback.Validate(value); err != nil {
		return err
	}
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	questionID := session.CurrentQuestionID
	if questionID == "" && len(session.AskedQuestionIDs) > 0 {
		questionID = session.AskedQuestionIDs[len(session.AskedQuestionIDs)-1]
	}
	if questionID == "" {
		return fmt.Errorf("%w: no question to rate yet", domain.ErrInvalidPhase)
	}
	userID, err := ratingUser(session, participantID)
	if err != nil {
		return err
	}
	s.record(domain.Rating{
		QuestionID:       questionID,
		SessionID:        session.ID,
		UserID:           userID,
		Value:            value,
		Feedback:         strings.TrimSpace(comment),
		WasCorrect:       session.LastAnswerCorrect,
		DifficultyAtTime: session.Difficulty,
	})
	return nil
}

// forwardRatings hands ratings extracted from a turn to the feedback sinks.
func (s *QuizService) forwardRatings(session *domain.Session, participantID string, rated *domain.Question, delta intent.Delta) {
	if len(delta.Ratings) == 0 {
		return
	}
	if rated == nil {
		s.logger.Info("rating ignored, no question to attach it to", zap.String("session_id", session.ID))
		return
	}
	userID, err := ratingUser(session, participantID)
	if err != nil {
		return
	}
	answer := ""
	if delta.Answer != nil {
		answer = *delta.Answer
	}
	for _, in := range delta.Ratings {
		if err := feedback.Validate(in.Rating); err != nil {
			s.logger.Info("extracted rating out of range", zap.Int("rating", in.Rating))
			continue
		}
		s.record(domain.Rating{
			QuestionID:       rated.ID,
			SessionID:        session.ID,
			UserID:           userID,
			Value:            in.Rating,
			Feedback:         in.Feedback,
			WasCorrect:       session.LastAnswerCorrect,
			UserAnswer:       answer,
			DifficultyAtTime: session.Difficulty,
		})
	}
}

func (s *QuizService) record(r domain.Rating) {
	if s.ratings == nil {
		s.logger.Debug("no rating recorder configured", zap.String("question_id", r.QuestionID))
		return
	}
	s.ratings.RecordAsync(r)
}

// ratingUser picks the participant's user id, then its participant id, then "anonymous".
func ratingUser(session *domain.Session, participantID string) (string, error) {
	p, err := session.Participant(participantID)
	switch {
	case errors.Is(err, domain.ErrParticipantNotFound) && participantID == "":
		return "anonymous", nil
	case err != nil:
		return "", err
	case p.UserID != "":
		return p.UserID, nil
	default:
		return p.ID, nil
	}
}

func checkOpen(session *domain.Session, want domain.Phase) error {
	switch session.Phase {
	case want:
		return nil
	case domain.PhaseFinished:
		return domain.ErrSessionFinished
	default:
		return fmt.Errorf("%w: session is %s", domain.ErrInvalidPhase, session.Phase)
	}
}

func transition(session *domain.Session, next domain.Phase) error {
	if session.Phase == next {
		return nil
	}
	if !session.Phase.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidPhase, session.Phase, next)
	}
	session.Phase = next
	return nil
}

func finish(session *domain.Session, reason domain.FinishReason, res *TurnResult) error {
	if err := transition(session, domain.PhaseFinished); err != nil {
		return err
	}
	session.FinishReason = reason
	session.CurrentQuestionID = ""
	res.FinishReason = reason
	res.Message = finishMessage(reason)
	return nil
}

func finishMessage(reason domain.FinishReason) string {
	switch reason {
	case domain.FinishStoreEmpty:
		return msgStoreEmpty
	case domain.FinishExhausted:
		return msgExhausted
	case domain.FinishQuit:
		return msgQuit
	default:
		return msgCompleted
	}
}

// scoreLine renders "score/answered" for one participant, e.g. "1.0/1".
func scoreLine(session *domain.Session, participantID string) string {
	p, err := session.Participant(participantID)
	if err != nil {
		return "0.0/0"
	}
	return formatScore(p.Score) + "/" + strconv.Itoa(p.AnsweredCount)
}

func formatScore(v float64) string {
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}
