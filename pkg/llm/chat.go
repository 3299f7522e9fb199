package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/hragent/internal/models"
	"github.com/xhad/hragent/internal/types"
)

// HRPromptTemplate asks for a markdown report with fixed sections.
const HRPromptTemplate = `You are an expert HR analyst. Analyze the following question using the provided context.

Context: {{.context}}

Question: {{.question}}

Format your response in markdown with:
## Summary
[Executive summary]

## Key Insights
- [Key finding 1]
- [Key finding 2]

## Recommendations
1. [Recommendation 1]
2. [Recommendation 2]

## Skills Assessment
[Skills alignment if relevant]

Focus on HR factors like skills, experience, qualifications, and cultural fit.
`

var ErrEmptyResponse = errors.New("no response from LLM")

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model          string
	APIKey         string
	BaseURL        string // optional OpenAI-compatible endpoint
	Temperature    float64
	MaxTokens      int
	PromptTemplate string
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    types.ChatModel
	prompt prompts.PromptTemplate
}

// NewWithConfig creates a new ChatEngine backed by the OpenAI chat API.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "gpt-3.5-turbo"
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model)
}

// NewWithModel creates a ChatEngine around an existing model.
func NewWithModel(config ChatConfig, model types.ChatModel) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = HRPromptTemplate
	}

	return &ChatEngine{
		config: config,
		llm:    model,
		prompt: prompts.NewPromptTemplate(config.PromptTemplate, []string{"context", "question"}),
	}, nil
}

// FormatPrompt fills the prompt template with the retrieved chunks and the question.
func (ce *ChatEngine) FormatPrompt(question string, docs []models.Document) (string, error) {
	prompt, err := ce.prompt.Format(map[string]any{
		"context":  FormatDocs(docs),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}
	return prompt, nil
}

// Chat generates a markdown answer based on the question and context documents.
func (ce *ChatEngine) Chat(ctx context.Context, question string, docs []models.Document) (string, error) {
	return ce.generate(ctx, question, docs)
}

// ChatStream generates an answer, handing each streamed chunk to onChunk as
// it arrives. The full answer is returned once the stream ends.
func (ce *ChatEngine) ChatStream(ctx context.Context, question string, docs []models.Document, onChunk func(string) error) (string, error) {
	return ce.generate(ctx, question, docs, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return onChunk(string(chunk))
	}))
}

func (ce *ChatEngine) generate(ctx context.Context, question string, docs []models.Document, extra ...llms.CallOption) (string, error) {
	prompt, err := ce.FormatPrompt(question, docs)
	if err != nil {
		return "", err
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	options := append([]llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}, extra...)

	response, err := ce.llm.GenerateContent(ctx, content, options...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", ErrEmptyResponse
	}

	return response.Choices[0].Content, nil
}

// FormatDocs joins retrieved chunk contents with blank lines.
func FormatDocs(docs []models.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}
