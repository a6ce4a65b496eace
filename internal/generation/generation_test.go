package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"quiz-agent-service/internal/domain"
)

func questions(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{ID: fmt.Sprintf("g%d", i), Text: fmt.Sprintf("draft %d", i)}
	}
	return out
}

func TestSelectTopThreeWithFloor(t *testing.T) {
	qs := questions(5)
	selected, below, err := Select(qs, []float64{9, 8, 6, 5, 3}, 3, 7.0)
	require.NoError(t, err)
	require.Equal(t, 1, below)
	require.Equal(t, []string{"g0", "g1", "g2"}, ids(selected))
}

func TestSelectIsStableOnTies(t *testing.T) {
	qs := questions(5)
	selected, below, err := Select(qs, []float64{7, 9, 7, 9, 7}, 3, 7.0)
	require.NoError(t, err)
	require.Zero(t, below)
	require.Equal(t, []string{"g1", "g3", "g0"}, ids(selected))
}

func TestSelectWantLargerThanBatch(t *testing.T) {
	selected, below, err := Select(questions(2), []float64{4, 8}, 5, 7.0)
	require.NoError(t, err)
	require.Equal(t, []string{"g1", "g0"}, ids(selected))
	require.Equal(t, 1, below)
}

func TestSelectRejectsMismatchedInput(t *testing.T) {
	_, _, err := Select(questions(2), []float64{1}, 1, 7)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func ids(qs []domain.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

type fakeGenerator struct {
	asked int
}

func (g *fakeGenerator) Generate(_ context.Context, _ Request, n int) ([]domain.Question, error) {
	g.asked = n
	return questions(n), nil
}

type fakeCritic struct {
	mu     sync.Mutex
	scores map[string]float64
	err    error
	calls  int
}

func (c *fakeCritic) Critique(_ context.Context, q domain.Question) (domain.Critique, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return domain.Critique{}, c.err
	}
	return domain.Critique{Score: c.scores[q.ID], Verdict: "acceptable"}, nil
}

type fakeSink struct {
	stored []domain.Question
}

func (s *fakeSink) Upsert(_ context.Context, qs []domain.Question) error {
	s.stored = append(s.stored, qs...)
	return nil
}

func TestPipelineGeneratesCritiquesAndStoresBest(t *testing.T) {
	gen := &fakeGenerator{}
	critic := &fakeCritic{scores: map[string]float64{"g0": 5, "g1": 9, "g2": 6, "g3": 8, "g4": 3, "g5": 7.5}}
	sink := &fakeSink{}
	p := NewPipeline(gen, critic, sink, Config{Multiplier: 3, Floor: 7}, nil)

	res, err := p.Run(context.Background(), Request{Count: 2})
	require.NoError(t, err)
	require.Equal(t, 6, gen.asked)
	require.Equal(t, 6, critic.calls)
	require.Equal(t, 6, res.Generated)
	require.Zero(t, res.BelowFloor)
	require.Len(t, sink.stored, 2)
	require.Equal(t, "g1", sink.stored[0].ID)
	require.Equal(t, "g3", sink.stored[1].ID)
	for _, q := range sink.stored {
		require.Equal(t, domain.ReviewPendingReview, q.ReviewStatus)
	}
}

func TestPipelineWithoutBestOfNSkipsCritique(t *testing.T) {
	gen := &fakeGenerator{}
	critic := &fakeCritic{}
	p := NewPipeline(gen, critic, &fakeSink{}, Config{Multiplier: 3, Floor: 7}, nil)

	res, err := p.Run(context.Background(), Request{Count: 2, Multiplier: 1})
	require.NoError(t, err)
	require.Equal(t, 2, gen.asked)
	require.Zero(t, critic.calls)
	require.Len(t, res.Selected, 2)
}

func TestPipelineCritiqueTransportFailureFailsBatch(t *testing.T) {
	critic := &fakeCritic{err: errors.New("connection reset")}
	sink := &fakeSink{}
	p := NewPipeline(&fakeGenerator{}, critic, sink, Config{Multiplier: 2, Floor: 7}, nil)

	_, err := p.Run(context.Background(), Request{Count: 1})
	var ce *domain.CollaboratorError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "critic", ce.Collaborator)
	require.Empty(t, sink.stored)
}
