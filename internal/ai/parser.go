// file: internal/ai/parser.go
// version: 2.0.0
// guid: 9a0b1c2d-3e4f-5a6b-7c8d-9e0f1a2b3c4d

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// ParsedFilename is the structured result of an AI filename parse.
type ParsedFilename struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Series     string `json:"series,omitempty"`
	SeriesNum  int    `json:"series_number,omitempty"`
	Confidence string `json:"confidence"` // high, medium, low
}

// Parser resolves messy audiobook filenames into structured fields via the
// OpenAI API. It is an optional fallback: a disabled parser is a valid
// value whose Parse always errors, so callers only need one code path.
type Parser struct {
	client  *openai.Client
	model   string
	enabled bool
}

// NewParser creates a filename parser. With an empty key or enabled=false
// the parser is inert.
func NewParser(apiKey string, enabled bool) *Parser {
	if !enabled || apiKey == "" {
		return &Parser{enabled: false}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Parser{
		client:  &client,
		model:   "gpt-4o-mini",
		enabled: true,
	}
}

// IsEnabled reports whether the parser will attempt API calls.
func (p *Parser) IsEnabled() bool {
	return p.enabled
}

const systemPrompt = `You are an expert at parsing audiobook filenames. Extract structured metadata from the filename.

Common patterns:
- "Title - Author" or "Author - Title"
- "Author - Series Name Book N - Title"
- "Title (Series Name #N)" or "Title (Series Name, Book N)"
- May include year: "Title (2020)" or "Title - Author (2020)"

Return ONLY valid JSON with these fields (omit if not found):
{
  "title": "book title",
  "author": "author name",
  "series": "series name",
  "series_number": 1,
  "confidence": "high|medium|low"
}

Set confidence based on clarity of the filename structure.`

// Parse asks the model for a structured reading of one filename.
func (p *Parser) Parse(ctx context.Context, filename string) (*ParsedFilename, error) {
	if !p.enabled {
		return nil, fmt.Errorf("AI filename parser is not enabled")
	}

	jsonObjectFormat := shared.NewResponseFormatJSONObjectParam()
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("Parse this audiobook filename:\n\n%s", filename)),
		},
		Model:       shared.ChatModel(p.model),
		Temperature: param.NewOpt(0.1),
		MaxTokens:   param.NewOpt[int64](500),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &jsonObjectFormat,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	var parsed ParsedFilename
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
	}
	return &parsed, nil
}

// TestConnection verifies credentials with a short round trip.
func (p *Parser) TestConnection(ctx context.Context) error {
	if !p.enabled {
		return fmt.Errorf("AI filename parser is not enabled")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := p.Parse(ctx, "The Hobbit - J.R.R. Tolkien")
	return err
}
