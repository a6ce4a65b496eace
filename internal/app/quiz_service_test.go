package app_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"quiz-agent-service/internal/app"
	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/evaluation"
	"quiz-agent-service/internal/infra/memory"
	"quiz-agent-service/internal/llm"
	"quiz-agent-service/internal/retrieval"
)

var seedQuestions = []domain.Question{
	{ID: "q1", Text: "What is the capital of France?", CorrectAnswer: domain.Answers{"Paris"}, Topic: "geography", Category: "geography", Difficulty: domain.DifficultyMedium},
	{ID: "q2", Text: "How many legs does a spider have?", CorrectAnswer: domain.Answers{"8", "eight"}, Topic: "animals", Category: "nature", Difficulty: domain.DifficultyMedium},
	{ID: "q3", Text: "Which planet is known as the red planet?", CorrectAnswer: domain.Answers{"Mars"}, Topic: "space", Category: "science", Difficulty: domain.DifficultyMedium, Explanation: "Iron oxide on its surface looks red."},
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedClassifier maps a few keywords to intents and treats anything else as an answer.
type scriptedClassifier struct {
	hook func(raw string)
}

func (c *scriptedClassifier) Classify(_ context.Context, raw, _ string, _ domain.Phase) ([]domain.Intent, error) {
	if c.hook != nil {
		c.hook(raw)
	}
	switch {
	case raw == "start":
		return []domain.Intent{{Kind: domain.IntentStart}}, nil
	case raw == "skip":
		return []domain.Intent{{Kind: domain.IntentSkip}}, nil
	case raw == "quit":
		return []domain.Intent{{Kind: domain.IntentQuit}}, nil
	case raw == "huh":
		return []domain.Intent{{Kind: domain.IntentUnclear}}, nil
	case strings.HasPrefix(raw, "no more "):
		topic := strings.TrimPrefix(raw, "no more ")
		return []domain.Intent{{Kind: domain.IntentPreferenceChange, Topic: topic, Polarity: domain.PolarityDislike, Confirmation: "Avoiding " + topic}}, nil
	case strings.HasPrefix(raw, "rate "):
		parts := strings.SplitN(strings.TrimPrefix(raw, "rate "), " ", 2)
		return []domain.Intent{
			{Kind: domain.IntentAnswer, Text: parts[1]},
			{Kind: domain.IntentRating, Rating: int(parts[0][0] - '0'), Feedback: "nice"},
		}, nil
	default:
		return []domain.Intent{{Kind: domain.IntentAnswer, Text: raw}}, nil
	}
}

type countingJudge struct {
	mu    sync.Mutex
	calls int
}

func (j *countingJudge) JudgeAnswer(context.Context, domain.Question, string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	return "incorrect", nil
}

func (j *countingJudge) Calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

type ratingSink struct {
	mu      sync.Mutex
	ratings []domain.Rating
}

func (r *ratingSink) RecordAsync(rating domain.Rating) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratings = append(r.ratings, rating)
}

func (r *ratingSink) All() []domain.Rating {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Rating(nil), r.ratings...)
}

type flakyRetriever struct {
	inner    app.QuestionRetriever
	failures int
}

func (f *flakyRetriever) Next(ctx context.Context, s *domain.Session, exclude []string) (domain.Question, error) {
	if f.failures > 0 {
		f.failures--
		return domain.Question{}, domain.WrapCollaborator("question_store", "search", context.DeadlineExceeded)
	}
	return f.inner.Next(ctx, s, exclude)
}

type fixture struct {
	svc        *app.QuizService
	sessions   *memory.SessionStore
	questions  *memory.QuestionStore
	classifier *scriptedClassifier
	judge      *countingJudge
	ratings    *ratingSink
	clock      *clock
}

type fixtureOpts struct {
	questions        []domain.Question
	retrievalFailure int
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	ctx := context.Background()

	embedder := llm.NewHashEmbedder(64)
	questions := memory.NewQuestionStore(embedder)
	if len(opts.questions) > 0 {
		seed := append([]domain.Question(nil), opts.questions...)
		for i := range seed {
			seed[i].Type = domain.QuestionTypeText
			seed[i].ReviewStatus = domain.ReviewApproved
		}
		if err := questions.Upsert(ctx, seed); err != nil {
			t.Fatalf("seed questions: %v", err)
		}
	}

	f := &fixture{
		sessions:   memory.NewSessionStore(10),
		questions:  questions,
		classifier: &scriptedClassifier{},
		judge:      &countingJudge{},
		ratings:    &ratingSink{},
		clock:      &clock{now: time.Now()},
	}
	var retriever app.QuestionRetriever = retrieval.New(questions, embedder, retrieval.Config{},
		retrieval.WithRand(rand.New(rand.NewPCG(1, 2))))
	if opts.retrievalFailure > 0 {
		retriever = &flakyRetriever{inner: retriever, failures: opts.retrievalFailure}
	}
	f.svc = app.NewQuizService(app.Deps{
		Sessions:   f.sessions,
		Retriever:  retriever,
		Questions:  memory.NewQuestionCache(questions, time.Minute),
		Classifier: f.classifier,
		Evaluator:  evaluation.New(f.judge, time.Second, nil),
		Ratings:    f.ratings,
		Now:        f.clock.Now,
	})
	return f
}

func (f *fixture) answerFor(t *testing.T, questionID string) string {
	t.Helper()
	q, err := f.questions.Get(context.Background(), questionID)
	if err != nil {
		t.Fatalf("lookup %s: %v", questionID, err)
	}
	return q.CorrectAnswer.Canonical()
}

func (f *fixture) startedSession(t *testing.T, req app.CreateRequest) (*domain.Session, *app.TurnResult) {
	t.Helper()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	res, err := f.svc.Start(ctx, session.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return session, res
}

func TestCreateAppliesDefaultsAndValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})

	session, err := f.svc.Create(ctx, app.CreateRequest{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasPrefix(session.ID, "sess_") || len(session.ID) != len("sess_")+12 {
		t.Fatalf("unexpected session id %q", session.ID)
	}
	if session.Phase != domain.PhaseIdle || session.MaxQuestions != app.DefaultQuestions || session.Difficulty != domain.DifficultyMedium {
		t.Fatalf("unexpected defaults %+v", session)
	}
	if len(session.Participants) != 1 || session.Participants[0].DisplayName != "Player" || !session.Participants[0].IsHost {
		t.Fatalf("expected a default host participant, got %+v", session.Participants)
	}
	if !strings.HasPrefix(session.Participants[0].ID, "p_") {
		t.Fatalf("unexpected participant id %q", session.Participants[0].ID)
	}

	for _, req := range []app.CreateRequest{
		{MaxQuestions: 51},
		{TTL: 5 * time.Minute},
		{Mode: "team"},
	} {
		if _, err := f.svc.Create(ctx, req); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("%+v: expected ErrInvalidArgument, got %v", req, err)
		}
	}
	if _, err := f.svc.Create(ctx, app.CreateRequest{Difficulty: "brutal"}); !errors.Is(err, domain.ErrInvalidDifficulty) {
		t.Fatalf("expected ErrInvalidDifficulty, got %v", err)
	}
}

func TestCorrectThenSkipFinishesWithAnsweredDenominator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})

	session, res := f.startedSession(t, app.CreateRequest{MaxQuestions: 2})
	if res.Phase != domain.PhaseAwaitingAnswer || res.Question == nil {
		t.Fatalf("expected first question, got %+v", res)
	}

	res, err := f.svc.SubmitInput(ctx, session.ID, f.answerFor(t, res.Question.ID), "")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if res.Evaluation == nil || res.Evaluation.Outcome != domain.OutcomeCorrect || res.Evaluation.Score != 1.0 {
		t.Fatalf("expected correct evaluation, got %+v", res.Evaluation)
	}
	if res.Score != "1.0/1" || res.Question == nil || res.Progress.Current != 2 {
		t.Fatalf("expected second question with score 1.0/1, got %+v", res)
	}

	res, err = f.svc.SubmitInput(ctx, session.ID, "skip", "")
	if err != nil {
		t.Fatalf("skip failed: %v", err)
	}
	if res.Evaluation.Outcome != domain.OutcomeSkipped || res.Phase != domain.PhaseFinished {
		t.Fatalf("expected skipped and finished, got %+v", res)
	}
	if res.Score != "1.0/1" || res.FinishReason != domain.FinishCompleted {
		t.Fatalf("expected final score 1.0/1, got %q (%s)", res.Score, res.FinishReason)
	}
	if f.judge.Calls() != 0 {
		t.Fatalf("literal match must not reach the judge, got %d calls", f.judge.Calls())
	}

	stored, err := f.svc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(stored.AskedQuestionIDs) != 2 || stored.AskedQuestionIDs[0] == stored.AskedQuestionIDs[1] {
		t.Fatalf("unexpected asked history %v", stored.AskedQuestionIDs)
	}
	if len(stored.SkippedTurns) != 1 || stored.SkippedTurns[0] != 1 {
		t.Fatalf("expected second turn recorded as skipped, got %v", stored.SkippedTurns)
	}
	p := stored.Participants[0]
	if p.Score != 1.0 || p.AnsweredCount != 1 || p.CorrectCount != 1 {
		t.Fatalf("unexpected participant totals %+v", p)
	}

	if _, err := f.svc.SubmitInput(ctx, session.ID, "Paris", ""); !errors.Is(err, domain.ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
}

func TestWrongAnswerGoesToJudge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, _ := f.startedSession(t, app.CreateRequest{MaxQuestions: 3})

	res, err := f.svc.SubmitInput(ctx, session.ID, "definitely not it", "")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if res.Evaluation.Outcome != domain.OutcomeIncorrect || res.Score != "0.0/1" {
		t.Fatalf("expected incorrect 0.0/1, got %+v", res)
	}
	if res.CorrectAnswer == "" {
		t.Fatalf("expected the correct answer to be revealed")
	}
	if f.judge.Calls() != 1 {
		t.Fatalf("expected one judge call, got %d", f.judge.Calls())
	}
}

func TestPreferenceOnlyTurnDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, first := f.startedSession(t, app.CreateRequest{MaxQuestions: 3})

	for i := 0; i < 2; i++ {
		res, err := f.svc.SubmitInput(ctx, session.ID, "no more history", "")
		if err != nil {
			t.Fatalf("preference turn failed: %v", err)
		}
		if res.Phase != domain.PhaseAwaitingAnswer || res.Evaluation != nil || res.Progress.Current != 1 {
			t.Fatalf("preference turn advanced the session: %+v", res)
		}
		if len(res.Confirmations) != 1 {
			t.Fatalf("expected a confirmation, got %v", res.Confirmations)
		}
	}

	stored, _ := f.svc.Get(ctx, session.ID)
	if stored.CurrentQuestionID != first.Question.ID {
		t.Fatalf("current question changed from %s to %s", first.Question.ID, stored.CurrentQuestionID)
	}
	if len(stored.DislikedTopics) != 1 || stored.DislikedTopics[0] != "history" {
		t.Fatalf("expected a single disliked topic, got %v", stored.DislikedTopics)
	}
}

func TestUnclearInputAsksAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, _ := f.startedSession(t, app.CreateRequest{MaxQuestions: 3})

	res, err := f.svc.SubmitInput(ctx, session.ID, "huh", "")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if res.Phase != domain.PhaseAwaitingAnswer || res.Message == "" {
		t.Fatalf("expected a prompt to answer again, got %+v", res)
	}
}

func TestIdleSessionOnlyAcceptsStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, err := f.svc.Create(ctx, app.CreateRequest{MaxQuestions: 2})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := f.svc.SubmitInput(ctx, session.ID, "Paris", ""); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
	stored, _ := f.svc.Get(ctx, session.ID)
	if stored.Phase != domain.PhaseIdle {
		t.Fatalf("rejected input changed phase to %s", stored.Phase)
	}

	res, err := f.svc.SubmitInput(ctx, session.ID, "start", "")
	if err != nil {
		t.Fatalf("start via input failed: %v", err)
	}
	if res.Phase != domain.PhaseAwaitingAnswer || res.Question == nil {
		t.Fatalf("expected first question, got %+v", res)
	}
	if _, err := f.svc.Start(ctx, session.ID); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase on second start, got %v", err)
	}
}

func TestQuitFinishesWithoutEvaluating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, _ := f.startedSession(t, app.CreateRequest{MaxQuestions: 3})

	res, err := f.svc.SubmitInput(ctx, session.ID, "quit", "")
	if err != nil {
		t.Fatalf("quit failed: %v", err)
	}
	if res.Phase != domain.PhaseFinished || res.FinishReason != domain.FinishQuit || res.Evaluation != nil {
		t.Fatalf("unexpected quit result %+v", res)
	}
}

func TestEmptyStoreAndExhaustionAreReportedDifferently(t *testing.T) {
	ctx := context.Background()

	empty := newFixture(t, fixtureOpts{})
	_, res := empty.startedSession(t, app.CreateRequest{MaxQuestions: 2})
	if res.Phase != domain.PhaseFinished || res.FinishReason != domain.FinishStoreEmpty {
		t.Fatalf("expected store_empty, got %+v", res)
	}
	emptyMessage := res.Message

	single := newFixture(t, fixtureOpts{questions: seedQuestions[:1]})
	session, res := single.startedSession(t, app.CreateRequest{MaxQuestions: 3})
	res, err := single.svc.SubmitInput(ctx, session.ID, single.answerFor(t, res.Question.ID), "")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if res.Phase != domain.PhaseFinished || res.FinishReason != domain.FinishExhausted {
		t.Fatalf("expected exhausted, got %+v", res)
	}
	if res.Message == "" || res.Message == emptyMessage {
		t.Fatalf("expected distinct messages, got %q and %q", emptyMessage, res.Message)
	}
}

func TestRetrievalFailureLeavesSessionAsking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions, retrievalFailure: 1})
	session, err := f.svc.Create(ctx, app.CreateRequest{MaxQuestions: 2})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = f.svc.Start(ctx, session.ID)
	var collab *domain.CollaboratorError
	if !errors.As(err, &collab) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected collaborator timeout, got %v", err)
	}
	stored, _ := f.svc.Get(ctx, session.ID)
	if stored.Phase != domain.PhaseAsking {
		t.Fatalf("expected asking after failed retrieval, got %s", stored.Phase)
	}

	res, err := f.svc.Advance(ctx, session.ID)
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if res.Phase != domain.PhaseAwaitingAnswer || res.Question == nil {
		t.Fatalf("expected a question after retry, got %+v", res)
	}
	if _, err := f.svc.Advance(ctx, session.ID); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestDeleteDuringTurnDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, _ := f.startedSession(t, app.CreateRequest{MaxQuestions: 3})

	f.classifier.hook = func(string) {
		if err := f.sessions.Delete(ctx, session.ID); err != nil {
			t.Errorf("delete failed: %v", err)
		}
	}
	if _, err := f.svc.SubmitInput(ctx, session.ID, "Paris", ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.svc.Get(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("session came back after delete: %v", err)
	}
}

func TestTurnsOnOneSessionAreSerialised(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, _ := f.startedSession(t, app.CreateRequest{MaxQuestions: 3})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.SubmitInput(ctx, session.ID, "skip", "")
		}()
	}
	wg.Wait()

	stored, err := f.svc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	seen := map[string]bool{}
	for _, id := range stored.AskedQuestionIDs {
		if seen[id] {
			t.Fatalf("question %s asked twice: %v", id, stored.AskedQuestionIDs)
		}
		seen[id] = true
	}
	if len(stored.AskedQuestionIDs) > stored.MaxQuestions || stored.Phase != domain.PhaseFinished {
		t.Fatalf("unexpected final state %s %v", stored.Phase, stored.AskedQuestionIDs)
	}
}

func TestRatingsAreForwarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, res := f.startedSession(t, app.CreateRequest{MaxQuestions: 3, UserID: "u1"})
	asked := res.Question.ID

	if _, err := f.svc.SubmitInput(ctx, session.ID, "rate 4 "+f.answerFor(t, asked), ""); err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	ratings := f.ratings.All()
	if len(ratings) != 1 {
		t.Fatalf("expected one rating, got %d", len(ratings))
	}
	r := ratings[0]
	if r.QuestionID != asked || r.UserID != "u1" || r.Value != 4 || !r.WasCorrect || r.SessionID != session.ID {
		t.Fatalf("unexpected rating %+v", r)
	}

	if err := f.svc.Rate(ctx, session.ID, 6, "", ""); !errors.Is(err, domain.ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	if err := f.svc.Rate(ctx, session.ID, 2, "too easy", ""); err != nil {
		t.Fatalf("rate failed: %v", err)
	}
	if got := f.ratings.All(); len(got) != 2 || got[1].Feedback != "too easy" {
		t.Fatalf("expected direct rating to be recorded, got %+v", got)
	}
}

func TestRateAnonymousWithoutParticipants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, err := f.svc.Create(ctx, app.CreateRequest{Mode: domain.ModeMultiplayer})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := f.svc.Rate(ctx, session.ID, 3, "", ""); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase before any question, got %v", err)
	}
	if _, err := f.svc.Start(ctx, session.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := f.svc.Rate(ctx, session.ID, 3, "", ""); err != nil {
		t.Fatalf("rate failed: %v", err)
	}
	if got := f.ratings.All(); len(got) != 1 || got[0].UserID != "anonymous" {
		t.Fatalf("expected anonymous rating, got %+v", got)
	}
}

func TestParticipantsAndScoreboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, err := f.svc.Create(ctx, app.CreateRequest{Mode: domain.ModeMultiplayer, MaxQuestions: 3})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	alice, err := f.svc.AddParticipant(ctx, session.ID, "Alice", "")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	bob, err := f.svc.AddParticipant(ctx, session.ID, "Bob", "u-bob")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if !alice.IsHost || bob.IsHost {
		t.Fatalf("expected Alice to host, got alice=%v bob=%v", alice.IsHost, bob.IsHost)
	}

	updates, cancel, err := f.svc.Subscribe(ctx, session.ID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	initial := <-updates
	if len(initial.Entries) != 2 || initial.Entries[0].DisplayName != "Alice" {
		t.Fatalf("unexpected initial scoreboard %+v", initial.Entries)
	}

	res, err := f.svc.Start(ctx, session.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := f.svc.SubmitInput(ctx, session.ID, f.answerFor(t, res.Question.ID), bob.ID); err != nil {
		t.Fatalf("bob answer failed: %v", err)
	}

	waitForLeader(t, updates, bob.ID)

	if _, err := f.svc.SubmitInput(ctx, session.ID, "skip", "p_unknown"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}

	if err := f.svc.RemoveParticipant(ctx, session.ID, alice.ID); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	stored, _ := f.svc.Get(ctx, session.ID)
	if len(stored.Participants) != 1 || !stored.Participants[0].IsHost || stored.Participants[0].ID != bob.ID {
		t.Fatalf("expected Bob to take over as host, got %+v", stored.Participants)
	}
}

func TestDeleteClosesSubscribers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	session, err := f.svc.Create(ctx, app.CreateRequest{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	updates, cancel, err := f.svc.Subscribe(ctx, session.ID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	<-updates

	if err := f.svc.Delete(ctx, session.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := <-updates; ok {
		t.Fatalf("expected channel to be closed")
	}
	if err := f.svc.Delete(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestExtendAndSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{})
	keep, err := f.svc.Create(ctx, app.CreateRequest{TTL: 10 * time.Minute})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	drop, err := f.svc.Create(ctx, app.CreateRequest{TTL: 10 * time.Minute})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	extended, err := f.svc.Extend(ctx, keep.ID, 60)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if want := f.clock.Now().Add(time.Hour); !extended.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, extended.ExpiresAt)
	}
	if _, err := f.svc.Extend(ctx, keep.ID, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	f.clock.Advance(20 * time.Minute)
	removed, err := f.svc.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one eviction, got %d", removed)
	}
	if _, err := f.svc.Get(ctx, drop.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
	if n, _ := f.svc.ActiveCount(ctx); n != 1 {
		t.Fatalf("expected one active session, got %d", n)
	}
}

func TestCurrentQuestionHidesAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{questions: seedQuestions})
	session, res := f.startedSession(t, app.CreateRequest{MaxQuestions: 3})

	view, err := f.svc.CurrentQuestion(ctx, session.ID)
	if err != nil {
		t.Fatalf("current question failed: %v", err)
	}
	if view.Question == nil || view.Question.ID != res.Question.ID {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Progress.Current != 1 || view.Progress.Total != 3 {
		t.Fatalf("unexpected progress %+v", view.Progress)
	}
	if _, err := f.svc.CurrentQuestion(ctx, "sess_missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func waitForLeader(t *testing.T, updates <-chan domain.Scoreboard, participantID string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case sb := <-updates:
			if len(sb.Entries) > 0 && sb.Entries[0].ParticipantID == participantID && sb.Entries[0].Score == 1 {
				return
			}
		case <-deadline:
			t.Fatalf("participant %s never led the scoreboard", participantID)
		}
	}
}
