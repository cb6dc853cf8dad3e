package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
)

// LLMDetector prompts an OpenAI-compatible chat endpoint to list personal-data
// findings and recovers byte offsets by searching each reported text in order.
// Works against Ollama and OpenRouter-style base URLs.
type LLMDetector struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// LLMOptions configures the LLM-backed detector.
type LLMOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewLLMDetector builds an LLM detector. The model is required.
func NewLLMDetector(opts LLMOptions) (*LLMDetector, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("llm detector: model is required")
	}
	clientConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMDetector{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   opts.Model,
		timeout: timeout,
	}, nil
}

func (d *LLMDetector) Name() string { return "llm" }

const llmSystemPrompt = `You are a personal-data detector for talk transcripts.
Find every span that may identify an individual: names, organizations, places,
email addresses, phone numbers, identification numbers, dates tied to a person.
Respond with ONLY a JSON array, no prose. Each element:
{"text": "<exact span from the input>", "category": "<PERSON|ORG|LOCATION|EMAIL|PHONE|ID_NUMBER|DATE|MISC>", "confidence": <0.0-1.0>}
Return [] when nothing is found.`

type llmFinding struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Detect asks the model for findings. Transport errors, refusals, and
// unparseable output all convert to ErrUnavailable.
func (d *LLMDetector) Detect(ctx context.Context, text string, lang language.Tag) ([]Candidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       d.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Language: %s\n\n%s", lang.String(), text)},
		},
	})
	if err != nil {
		return nil, Unavailable(d.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, Unavailable(d.Name(), fmt.Errorf("empty completion"))
	}

	findings, err := parseLLMFindings(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, Unavailable(d.Name(), err)
	}

	// Recover offsets with a forward cursor so repeated mentions of the same
	// text map to successive spans.
	cursors := make(map[string]int)
	candidates := make([]Candidate, 0, len(findings))
	for _, finding := range findings {
		span := strings.TrimSpace(finding.Text)
		if span == "" {
			continue
		}
		from := cursors[span]
		idx := strings.Index(text[from:], span)
		if idx < 0 {
			// Model hallucinated or rephrased the span; drop it.
			continue
		}
		start := from + idx
		cursors[span] = start + len(span)
		candidates = append(candidates, Candidate{
			Start:      start,
			End:        start + len(span),
			Text:       span,
			Category:   mapLLMCategory(finding.Category),
			Confidence: finding.Confidence,
			Source:     d.Name(),
		})
	}
	return candidates, nil
}

func parseLLMFindings(content string) ([]llmFinding, error) {
	content = strings.TrimSpace(content)
	// Tolerate fenced responses.
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in completion")
	}
	var findings []llmFinding
	if err := json.Unmarshal([]byte(content[start:end+1]), &findings); err != nil {
		return nil, fmt.Errorf("parse completion: %w", err)
	}
	return findings, nil
}

func mapLLMCategory(category string) Category {
	switch Category(strings.ToUpper(strings.TrimSpace(category))) {
	case CategoryPerson, CategoryOrg, CategoryLocation, CategoryEmail,
		CategoryPhone, CategoryIDNumber, CategoryDate:
		return Category(strings.ToUpper(strings.TrimSpace(category)))
	default:
		return CategoryMisc
	}
}
