// Package external provides the concrete implementations of the core's
// external collaborator interfaces (Page, BlobStore, ModelClient): a
// chromedp-backed and a goquery-backed Page, a local-filesystem BlobStore,
// and Claude/Gemini-backed ModelClients.
package external

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/genai"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/costtracker"
	"github.com/ternarybob/jobscout/internal/models"
)

// ModelResponse is one model call's outcome: the generated text plus the
// token counts the cost tracker needs to price it.
type ModelResponse struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// ModelClient is the narrow capability the core depends on from a vision-
// or text-capable model backend.
type ModelClient interface {
	VisionAnalyze(ctx context.Context, imageBytes []byte, prompt string) (ModelResponse, error)
	TextAnalyze(ctx context.Context, text string, prompt string) (ModelResponse, error)
}

// ClaudeModelClient implements ModelClient against the Anthropic API,
// grounded on the teacher's internal/services/llm/claude_service.go
// (client construction, timeout handling, and block-by-block text
// extraction reused near verbatim; generalized here from a chat-message
// history to a single prompt-plus-content call, and extended to record
// usage against a cost tracker after every call).
type ClaudeModelClient struct {
	logger  arbor.ILogger
	client  *anthropic.Client
	model   string
	timeout time.Duration
	cost    *costtracker.Tracker
}

// NewClaudeModelClient constructs a ClaudeModelClient. cost may be nil, in
// which case usage is not recorded.
func NewClaudeModelClient(cfg common.ClaudeConfig, cost *costtracker.Tracker, logger arbor.ILogger) (*ClaudeModelClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid claude timeout %q: %w", cfg.Timeout, err)
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &ClaudeModelClient{logger: logger, client: &client, model: model, timeout: timeout, cost: cost}, nil
}

func (c *ClaudeModelClient) TextAnalyze(ctx context.Context, text string, prompt string) (ModelResponse, error) {
	return c.call(ctx, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf("%s\n\n%s", prompt, text))),
	})
}

func (c *ClaudeModelClient) VisionAnalyze(ctx context.Context, imageBytes []byte, prompt string) (ModelResponse, error) {
	encoded := base64.StdEncoding.EncodeToString(imageBytes)
	return c.call(ctx, []anthropic.MessageParam{
		anthropic.NewUserMessage(
			anthropic.NewImageBlockBase64("image/png", encoded),
			anthropic.NewTextBlock(prompt),
		),
	})
}

func (c *ClaudeModelClient) call(ctx context.Context, messages []anthropic.MessageParam) (ModelResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages:  messages,
	})
	if err != nil {
		return ModelResponse{}, &common.NetworkError{Op: "claude.messages.new", Err: err}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return ModelResponse{}, fmt.Errorf("claude returned no text content")
	}

	tokensIn := int(resp.Usage.InputTokens)
	tokensOut := int(resp.Usage.OutputTokens)
	c.record(tokensIn, tokensOut, false)

	return ModelResponse{Text: text.String(), TokensIn: tokensIn, TokensOut: tokensOut}, nil
}

func (c *ClaudeModelClient) record(tokensIn, tokensOut int, hasImage bool) {
	if c.cost == nil {
		return
	}
	cost := c.cost.Estimate(c.model, 0, hasImage, &tokensIn, &tokensOut)
	c.cost.Record(models.UsageRecord{
		Timestamp: time.Now(), Model: c.model, TokensIn: tokensIn, TokensOut: tokensOut,
		CostUSD: cost, RequestType: "claude_analyze", Success: true,
	})
}

// GeminiModelClient implements ModelClient against Google's genai SDK,
// grounded on the teacher's internal/services/llm/gemini_service.go
// (client construction via genai.NewClient with BackendGeminiAPI, and the
// candidate/part text-extraction loop reused near verbatim).
type GeminiModelClient struct {
	logger  arbor.ILogger
	client  *genai.Client
	model   string
	timeout time.Duration
	cost    *costtracker.Tracker
}

// NewGeminiModelClient constructs a GeminiModelClient. cost may be nil.
func NewGeminiModelClient(ctx context.Context, cfg common.GeminiConfig, cost *costtracker.Tracker, logger arbor.ILogger) (*GeminiModelClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid gemini timeout %q: %w", cfg.Timeout, err)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("initializing genai client: %w", err)
	}
	return &GeminiModelClient{logger: logger, client: client, model: model, timeout: timeout, cost: cost}, nil
}

func (g *GeminiModelClient) TextAnalyze(ctx context.Context, text string, prompt string) (ModelResponse, error) {
	content := genai.NewContentFromText(fmt.Sprintf("%s\n\n%s", prompt, text), genai.RoleUser)
	return g.call(ctx, []*genai.Content{content}, false)
}

func (g *GeminiModelClient) VisionAnalyze(ctx context.Context, imageBytes []byte, prompt string) (ModelResponse, error) {
	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromBytes(imageBytes, "image/png"),
			genai.NewPartFromText(prompt),
		},
	}
	return g.call(ctx, []*genai.Content{content}, true)
}

func (g *GeminiModelClient) call(ctx context.Context, contents []*genai.Content, hasImage bool) (ModelResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(timeoutCtx, g.model, contents, nil)
	if err != nil {
		return ModelResponse{}, &common.NetworkError{Op: "gemini.models.generatecontent", Err: err}
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return ModelResponse{}, fmt.Errorf("gemini returned no text content")
	}

	tokensIn, tokensOut := 0, 0
	if resp.UsageMetadata != nil {
		tokensIn = int(resp.UsageMetadata.PromptTokenCount)
		tokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	g.record(tokensIn, tokensOut, hasImage)

	return ModelResponse{Text: text.String(), TokensIn: tokensIn, TokensOut: tokensOut}, nil
}

func (g *GeminiModelClient) record(tokensIn, tokensOut int, hasImage bool) {
	if g.cost == nil {
		return
	}
	cost := g.cost.Estimate(g.model, 0, hasImage, &tokensIn, &tokensOut)
	g.cost.Record(models.UsageRecord{
		Timestamp: time.Now(), Model: g.model, TokensIn: tokensIn, TokensOut: tokensOut,
		CostUSD: cost, RequestType: "gemini_analyze", Success: true,
	})
}
