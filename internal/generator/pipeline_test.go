package generator

import (
	"context"
	"testing"

	"story-server/internal/ai"
	"story-server/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newTestPipeline(client ai.Client, scorer ai.SimilarityScorer) *Pipeline {
	return &Pipeline{
		agents:           NewAgents(client, "mistral", zap.NewNop()),
		scorer:           scorer,
		logger:           zap.NewNop(),
		draftGate:        ai.SimilarityGate{Lower: 0.70, Upper: 0.89},
		draftMaxAttempts: 3,
		finalGate:        ai.SimilarityGate{Lower: 0.83, Upper: 0.92},
		finalMaxRetries:  2,
	}
}

func draftAgentMatcher() interface{} {
	return mock.MatchedBy(func(p ai.GenerationParams) bool {
		return p.Agent == "continuation_draft"
	})
}

func finalAgentMatcher() interface{} {
	return mock.MatchedBy(func(p ai.GenerationParams) bool {
		return p.Agent == "continuation_final"
	})
}

func TestGenerateDraftWithGate_RetriesUntilInRange(t *testing.T) {
	aiClient := mocks.NewMockAIClient(t)
	scorer := &mocks.MockSimilarityScorer{}
	p := newTestPipeline(aiClient, scorer)

	aiClient.On("GenerateText", mock.Anything, mock.Anything, draftAgentMatcher()).
		Return("draft-1", ai.UsageInfo{}, nil).Once()
	aiClient.On("GenerateText", mock.Anything, mock.Anything, draftAgentMatcher()).
		Return("draft-2", ai.UsageInfo{}, nil).Once()
	aiClient.On("GenerateText", mock.Anything, mock.Anything, draftAgentMatcher()).
		Return("draft-3", ai.UsageInfo{}, nil).Once()

	// Первая попытка слишком похожа, вторая слишком далека, третья в интервале
	scorer.On("Score", mock.Anything, "previous page", "draft-1").Return(0.95, nil).Once()
	scorer.On("Score", mock.Anything, "previous page", "draft-2").Return(0.50, nil).Once()
	scorer.On("Score", mock.Anything, "previous page", "draft-3").Return(0.80, nil).Once()

	draft, err := p.generateDraftWithGate(context.Background(), "sketch", "previous page", "")

	assert.NoError(t, err)
	assert.Equal(t, "draft-3", draft)
	scorer.AssertExpectations(t)
}

func TestGenerateDraftWithGate_ExhaustedTakesClosest(t *testing.T) {
	aiClient := mocks.NewMockAIClient(t)
	scorer := &mocks.MockSimilarityScorer{}
	p := newTestPipeline(aiClient, scorer)

	aiClient.On("GenerateText", mock.Anything, mock.Anything, draftAgentMatcher()).
		Return("draft-1", ai.UsageInfo{}, nil).Once()
	aiClient.On("GenerateText", mock.Anything, mock.Anything, draftAgentMatcher()).
		Return("draft-2", ai.UsageInfo{}, nil).Once()
	aiClient.On("GenerateText", mock.Anything, mock.Anything, draftAgentMatcher()).
		Return("draft-3", ai.UsageInfo{}, nil).Once()

	// Все три вне интервала; draft-2 ближе всего к верхней границе 0.89
	scorer.On("Score", mock.Anything, "previous page", "draft-1").Return(0.30, nil).Once()
	scorer.On("Score", mock.Anything, "previous page", "draft-2").Return(0.91, nil).Once()
	scorer.On("Score", mock.Anything, "previous page", "draft-3").Return(0.99, nil).Once()

	draft, err := p.generateDraftWithGate(context.Background(), "sketch", "previous page", "")

	assert.NoError(t, err)
	assert.Equal(t, "draft-2", draft)
	scorer.AssertExpectations(t)
}

func TestGenerateDraftWithGate_ScorerUnavailableAcceptsCurrent(t *testing.T) {
	aiClient := mocks.NewMockAIClient(t)
	scorer := &mocks.MockSimilarityScorer{}
	p := newTestPipeline(aiClient, scorer)

	aiClient.On("GenerateText", mock.Anything, mock.Anything, draftAgentMatcher()).
		Return("draft-1", ai.UsageInfo{}, nil).Once()
	scorer.On("Score", mock.Anything, "previous page", "draft-1").
		Return(0.0, ai.ErrSimilarityUnavailable).Once()

	draft, err := p.generateDraftWithGate(context.Background(), "sketch", "previous page", "")

	assert.NoError(t, err)
	assert.Equal(t, "draft-1", draft)
}

func TestGenerateDraftWithGate_GenerationErrorIsFatal(t *testing.T) {
	aiClient := mocks.NewMockAIClient(t)
	scorer := &mocks.MockSimilarityScorer{}
	p := newTestPipeline(aiClient, scorer)

	aiClient.On("GenerateText", mock.Anything, mock.Anything, draftAgentMatcher()).
		Return("", ai.UsageInfo{}, ai.ErrGenerationFailed).Once()

	_, err := p.generateDraftWithGate(context.Background(), "sketch", "previous page", "")

	assert.ErrorIs(t, err, ai.ErrGenerationFailed)
	scorer.AssertNotCalled(t, "Score")
}

func TestGenerateFinalWithGate_AcceptsInRange(t *testing.T) {
	aiClient := mocks.NewMockAIClient(t)
	scorer := &mocks.MockSimilarityScorer{}
	p := newTestPipeline(aiClient, scorer)

	aiClient.On("GenerateText", mock.Anything, mock.Anything, finalAgentMatcher()).
		Return("final-1", ai.UsageInfo{}, nil).Once()
	scorer.On("Score", mock.Anything, "draft", "final-1").Return(0.90, nil).Once()

	final, prompt, err := p.generateFinalWithGate(context.Background(), "context", "draft", "critique")

	assert.NoError(t, err)
	assert.Equal(t, "final-1", final)
	assert.NotEmpty(t, prompt)
}

func TestGenerateFinalWithGate_ExhaustedReturnsLastAttempt(t *testing.T) {
	aiClient := mocks.NewMockAIClient(t)
	scorer := &mocks.MockSimilarityScorer{}
	p := newTestPipeline(aiClient, scorer)

	// finalMaxRetries=2 дает три попытки; ни одна не в интервале
	aiClient.On("GenerateText", mock.Anything, mock.Anything, finalAgentMatcher()).
		Return("final-1", ai.UsageInfo{}, nil).Once()
	aiClient.On("GenerateText", mock.Anything, mock.Anything, finalAgentMatcher()).
		Return("final-2", ai.UsageInfo{}, nil).Once()
	aiClient.On("GenerateText", mock.Anything, mock.Anything, finalAgentMatcher()).
		Return("final-3", ai.UsageInfo{}, nil).Once()

	scorer.On("Score", mock.Anything, "draft", "final-1").Return(0.50, nil).Once()
	scorer.On("Score", mock.Anything, "draft", "final-2").Return(0.99, nil).Once()
	scorer.On("Score", mock.Anything, "draft", "final-3").Return(0.50, nil).Once()

	final, _, err := p.generateFinalWithGate(context.Background(), "context", "draft", "critique")

	assert.NoError(t, err)
	assert.Equal(t, "final-3", final, "возвращается последняя попытка, а не лучшая")
	scorer.AssertExpectations(t)
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, "The storm came at night", fallbackTitle("The storm came at night. Elena woke to the sound of waves."))
	assert.Equal(t, "Untitled fragment without a period that keeps going well past the cutoff point so only the head rema",
		fallbackTitle("Untitled fragment without a period that keeps going well past the cutoff point so only the head remains visible"))
}
