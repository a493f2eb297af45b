package rag

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"nuvaru/src/log"
)

// DefaultGenerateTimeout bounds a single LLM call; on expiry the service
// falls back to a deterministic answer built from the retrieved excerpts.
const DefaultGenerateTimeout = 30 * time.Second

// EmptyContextMode controls what happens when retrieval finds nothing.
type EmptyContextMode string

const (
	// EmptyContextGeneral lets the model answer from general knowledge with
	// a note that no documents matched.
	EmptyContextGeneral EmptyContextMode = "general"
	// EmptyContextRefuse returns a fixed refusal without calling the model.
	EmptyContextRefuse EmptyContextMode = "refuse"
)

const refusalAnswer = "I could not find any relevant information in the knowledge base to answer your question."

var promptTemplate = template.Must(template.New("answer").Parse(
	`You are a helpful assistant. Answer the question using only the context below. If the context does not contain the answer, say so.

Context:
{{.Context}}

Question: {{.Query}}

Answer:`))

var generalPromptTemplate = template.Must(template.New("general").Parse(
	`You are a helpful assistant. No documents in the knowledge base matched the question, so answer from general knowledge and mention that no supporting documents were found.

Question: {{.Query}}

Answer:`))

type generationService struct {
	retrieval       RetrievalService
	llm             LLMProvider
	turns           TurnStore
	node            *snowflake.Node
	maxTokens       int
	temperature     float64
	generateTimeout time.Duration
	onEmpty         EmptyContextMode
}

// GenerationOption tweaks generationService construction.
type GenerationOption func(*generationService)

// WithGenerateTimeout overrides the per-answer LLM deadline.
func WithGenerateTimeout(d time.Duration) GenerationOption {
	return func(s *generationService) { s.generateTimeout = d }
}

// WithEmptyContextMode sets the behavior when retrieval returns nothing.
func WithEmptyContextMode(mode EmptyContextMode) GenerationOption {
	return func(s *generationService) { s.onEmpty = mode }
}

// WithSampling sets max tokens and temperature for LLM calls.
func WithSampling(maxTokens int, temperature float64) GenerationOption {
	return func(s *generationService) {
		s.maxTokens = maxTokens
		s.temperature = temperature
	}
}

func NewGenerationService(retrieval RetrievalService, llm LLMProvider, turns TurnStore, node *snowflake.Node, opts ...GenerationOption) GenerationService {
	s := &generationService{
		retrieval:       retrieval,
		llm:             llm,
		turns:           turns,
		node:            node,
		maxTokens:       512,
		temperature:     0.2,
		generateTimeout: DefaultGenerateTimeout,
		onEmpty:         EmptyContextGeneral,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer runs retrieval, prompts the model, and persists the turn. A failed
// or timed-out generation degrades to a deterministic answer assembled from
// the retrieved excerpts so the caller always gets sources back.
func (s *generationService) Answer(ctx context.Context, ownerID, knowledgeBaseID, sessionID, query string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	retrieved, err := s.retrieval.Retrieve(ctx, ownerID, knowledgeBaseID, query)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Sources:   retrieved.Sources,
		SessionID: sessionID,
		TurnID:    s.node.Generate().String(),
	}

	if retrieved.Context == "" && s.onEmpty == EmptyContextRefuse {
		answer.Text = refusalAnswer
	} else {
		text, genErr := s.generate(ctx, query, retrieved.Context)
		if genErr != nil {
			log.Error(genErr, "generation failed, falling back to excerpts",
				"sessionId", sessionID,
				"knowledgeBaseId", knowledgeBaseID)
			answer.Text = fallbackAnswer(retrieved.Sources)
		} else {
			answer.Text = text
			answer.Generated = true
		}
	}

	turn := Turn{
		SessionID: sessionID,
		TurnID:    answer.TurnID,
		Query:     query,
		Answer:    answer.Text,
		Sources:   answer.Sources,
		Generated: answer.Generated,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.turns.SaveTurn(ctx, turn); err != nil {
		log.Error(err, "failed to persist chat turn", "sessionId", sessionID, "turnId", turn.TurnID)
	}

	return answer, nil
}

func (s *generationService) generate(ctx context.Context, query, contextText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()

	tmpl := promptTemplate
	if contextText == "" {
		tmpl = generalPromptTemplate
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, struct {
		Context string
		Query   string
	}{Context: contextText, Query: query}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	text, err := s.llm.Generate(ctx, sb.String(), s.maxTokens, s.temperature)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}
	return text, nil
}

// fallbackAnswer builds a deterministic reply from retrieval output when the
// model is unavailable.
func fallbackAnswer(sources []Source) string {
	if len(sources) == 0 {
		return refusalAnswer
	}
	var sb strings.Builder
	sb.WriteString("The answer could not be generated right now. The most relevant passages found were:\n")
	for _, src := range sources {
		fmt.Fprintf(&sb, "\n[%s] %s", src.Filename, src.Excerpt)
	}
	return sb.String()
}

func (s *generationService) History(ctx context.Context, sessionID string) ([]Turn, error) {
	return s.turns.ListTurns(ctx, sessionID)
}

func (s *generationService) SubmitFeedback(ctx context.Context, fb Feedback) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if err := s.turns.SaveFeedback(ctx, fb); err != nil {
		return err
	}
	log.Info("feedback recorded", "sessionId", fb.SessionID, "turnId", fb.TurnID, "rating", fb.Rating)
	return nil
}

var _ GenerationService = (*generationService)(nil)
