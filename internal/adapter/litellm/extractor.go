// Package litellm implements the extraction capability as a chat completion
// against an OpenAI-compatible endpoint, by default the LiteLLM proxy.
package litellm

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"

	openai "github.com/sashabaranov/go-openai"

	cfotel "github.com/Strob0t/careline/internal/adapter/otel"
	"github.com/Strob0t/careline/internal/config"
	"github.com/Strob0t/careline/internal/domain"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/port/capability"
)

//go:embed templates/extraction_system.tmpl
var extractionSystemTmpl string

var extractionTmpl = template.Must(template.New("extraction_system").Parse(extractionSystemTmpl))

type promptData struct {
	Fields   []session.Field
	Snapshot map[string]string
}

// wireExtraction is the JSON object the model is asked to produce.
type wireExtraction struct {
	Response   string         `json:"response"`
	Extract    map[string]any `json:"extract"`
	NextAction string         `json:"next_action"`
	NeedTriage bool           `json:"need_triage"`
	Done       bool           `json:"done"`
}

// Extractor calls the chat completion API in JSON mode.
type Extractor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewExtractor creates an Extractor for the configured endpoint.
func NewExtractor(cfg config.Extraction) *Extractor {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.URL, "/")
	oc.HTTPClient = &http.Client{Transport: cfotel.HTTPTransport(http.DefaultTransport)}
	return &Extractor{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Extract implements capability.Extractor.
func (e *Extractor) Extract(ctx context.Context, req capability.ExtractionRequest) (capability.Extraction, error) {
	system, err := buildSystemPrompt(req.Snapshot)
	if err != nil {
		return capability.Extraction{}, fmt.Errorf("build prompt: %w", err)
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, h := range req.History {
		role := openai.ChatMessageRoleUser
		if h.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Utterance})

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    msgs,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return capability.Extraction{}, fmt.Errorf("%w: chat completion: %w", domain.ErrCapabilityUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return capability.Extraction{}, fmt.Errorf("%w: no choices in completion", domain.ErrExtractionParse)
	}
	return ParseReply(resp.Choices[0].Message.Content)
}

// ParseReply decodes the model output, tolerating a ```json fence.
func ParseReply(content string) (capability.Extraction, error) {
	body := strings.TrimSpace(content)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var w wireExtraction
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return capability.Extraction{}, fmt.Errorf("%w: %w", domain.ErrExtractionParse, err)
	}
	return capability.Extraction{
		Reply:      strings.TrimSpace(w.Response),
		Fields:     w.Extract,
		NextAction: w.NextAction,
		NeedTriage: w.NeedTriage,
		Done:       w.Done,
	}, nil
}

func buildSystemPrompt(snapshot map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := extractionTmpl.Execute(&buf, promptData{Fields: session.CollectedFields(), Snapshot: snapshot}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
