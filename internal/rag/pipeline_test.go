package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-rag/internal/models"
)

type fakeRetriever struct {
	results  []models.ScoredChunk
	gotQuery string
	gotLimit int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, limit int) []models.ScoredChunk {
	f.gotQuery = query
	f.gotLimit = limit
	return f.results
}

type fakeGenerator struct {
	answer     string
	fragments  []string
	gotContext string
	gotMessage string
	gotHistory []models.ConversationTurn
}

func (f *fakeGenerator) Generate(_ context.Context, groundingContext, userMessage string, history []models.ConversationTurn, onFragment func(string)) string {
	f.gotContext = groundingContext
	f.gotMessage = userMessage
	f.gotHistory = history
	for _, fragment := range f.fragments {
		onFragment(fragment)
	}
	return f.answer
}

type fakeChatLogger struct {
	err    error
	logged chan struct{}
	answer string
}

func (f *fakeChatLogger) LogInteraction(_ context.Context, _, answer string, _ []models.ScoredChunk) error {
	f.answer = answer
	close(f.logged)
	return f.err
}

func collect(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var fragments []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case fragment, ok := <-ch:
			if !ok {
				return fragments
			}
			fragments = append(fragments, fragment)
		case <-timeout:
			t.Fatal("answer channel never closed")
		}
	}
}

func TestAnswerGroundedInRetrievedChunk(t *testing.T) {
	ret := &fakeRetriever{results: []models.ScoredChunk{
		{Score: 0.93, Text: "A robot arm has six degrees of freedom.", SourceFile: "week1.md"},
	}}
	gen := &fakeGenerator{answer: "A robot arm has six degrees of freedom."}
	p := NewPipeline(ret, gen, nil, 5)

	fragments := collect(t, p.Answer(context.Background(), Request{
		UserMessage: "How many degrees of freedom does a robot arm have?",
	}))

	require.Len(t, fragments, 1)
	assert.Contains(t, fragments[0], "six degrees of freedom")
	assert.Contains(t, gen.gotContext, "A robot arm has six degrees of freedom.",
		"the grounding context must carry the retrieved text")
	assert.Equal(t, "How many degrees of freedom does a robot arm have?", ret.gotQuery)
	assert.Equal(t, 5, ret.gotLimit)
}

func TestAnswerEmptyIndexStillAnswers(t *testing.T) {
	gen := &fakeGenerator{answer: "I could not find that in the textbook, but generally speaking..."}
	p := NewPipeline(&fakeRetriever{}, gen, nil, 5)

	fragments := collect(t, p.Answer(context.Background(), Request{UserMessage: "anything"}))

	require.Len(t, fragments, 1)
	assert.NotEmpty(t, fragments[0])
	assert.Equal(t, models.NoContentMarker, gen.gotContext,
		"empty retrieval must produce the no-content marker")
}

func TestAnswerGenerationFailureYieldsFallbackFragment(t *testing.T) {
	gen := &fakeGenerator{answer: models.ErrorFallbackPrefix + "connection refused"}
	p := NewPipeline(&fakeRetriever{}, gen, nil, 5)

	fragments := collect(t, p.Answer(context.Background(), Request{UserMessage: "q"}))

	require.Len(t, fragments, 1)
	assert.Contains(t, fragments[0], models.ErrorFallbackPrefix)
}

func TestAnswerEmptyCompletionYieldsFallbackFragment(t *testing.T) {
	gen := &fakeGenerator{answer: ""}
	p := NewPipeline(&fakeRetriever{}, gen, nil, 5)

	fragments := collect(t, p.Answer(context.Background(), Request{UserMessage: "q"}))

	require.Len(t, fragments, 1, "an empty completion must still deliver one fragment")
	assert.Contains(t, fragments[0], models.ErrorFallbackPrefix)
}

func TestAnswerStreamsFragmentsInOrder(t *testing.T) {
	gen := &fakeGenerator{
		fragments: []string{"six ", "degrees ", "of freedom"},
		answer:    "six degrees of freedom",
	}
	p := NewPipeline(&fakeRetriever{}, gen, nil, 5)

	fragments := collect(t, p.Answer(context.Background(), Request{UserMessage: "q"}))

	assert.Equal(t, []string{"six ", "degrees ", "of freedom"}, fragments,
		"streamed fragments must arrive in order without a duplicated final answer")
}

func TestAnswerSelectedTextShapesQueryAndPrompt(t *testing.T) {
	ret := &fakeRetriever{}
	gen := &fakeGenerator{answer: "ok"}
	p := NewPipeline(ret, gen, nil, 3)

	collect(t, p.Answer(context.Background(), Request{
		UserMessage:  "What does this mean?",
		SelectedText: "Inverse kinematics maps pose to joint angles.",
	}))

	assert.Contains(t, ret.gotQuery, "Inverse kinematics")
	assert.Contains(t, gen.gotMessage, "Inverse kinematics")
	assert.Contains(t, gen.gotMessage, "What does this mean?")
}

func TestAnswerPassesHistoryThrough(t *testing.T) {
	history := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}
	gen := &fakeGenerator{answer: "ok"}
	p := NewPipeline(&fakeRetriever{}, gen, nil, 5)

	collect(t, p.Answer(context.Background(), Request{UserMessage: "q", History: history}))

	assert.Equal(t, history, gen.gotHistory)
}

func TestAnswerLogsInteractionBestEffort(t *testing.T) {
	logger := &fakeChatLogger{err: errors.New("db down"), logged: make(chan struct{})}
	gen := &fakeGenerator{answer: "the answer"}
	p := NewPipeline(&fakeRetriever{}, gen, logger, 5)

	fragments := collect(t, p.Answer(context.Background(), Request{UserMessage: "q"}))

	require.Len(t, fragments, 1)
	select {
	case <-logger.logged:
	case <-time.After(5 * time.Second):
		t.Fatal("interaction was never logged")
	}
	assert.Equal(t, "the answer", logger.answer)
	// A failing logger must not have affected the delivered answer.
	assert.Equal(t, "the answer", fragments[0])
}

func TestAnswerCancelledContextClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{fragments: []string{"late"}, answer: "late"}
	p := NewPipeline(&fakeRetriever{}, gen, nil, 5)

	ch := p.Answer(ctx, Request{UserMessage: "q"})

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return // closed without deadlock
			}
		case <-timeout:
			t.Fatal("channel not closed after cancellation")
		}
	}
}

func TestAnswerIsNotRestartable(t *testing.T) {
	gen := &fakeGenerator{answer: "once"}
	p := NewPipeline(&fakeRetriever{}, gen, nil, 5)

	ch := p.Answer(context.Background(), Request{UserMessage: "q"})
	first := collect(t, ch)
	require.Len(t, first, 1)

	// Draining a closed channel yields nothing more.
	_, ok := <-ch
	assert.False(t, ok)
}

func TestAssembledContextFeedsGenerator(t *testing.T) {
	ret := &fakeRetriever{results: []models.ScoredChunk{
		{Score: 0.9, Text: "first", SourceFile: "a.md"},
		{Score: 0.5, Text: "second", SourceFile: "b.md"},
	}}
	gen := &fakeGenerator{answer: "ok"}
	p := NewPipeline(ret, gen, nil, 5)

	collect(t, p.Answer(context.Background(), Request{UserMessage: "q"}))

	assert.Equal(t, AssembleContext(ret.results), gen.gotContext)
	assert.True(t, strings.Contains(gen.gotContext, "first") && strings.Contains(gen.gotContext, "second"))
}
