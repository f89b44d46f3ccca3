package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cropmind/agridex/internal/domain"
	"github.com/cropmind/agridex/internal/usecase/extraction"
)

const extractorSystemPrompt = "You clean raw text extracted from agricultural reference documents. " +
	"Remove artifacts (page numbers, broken hyphenation, headers repeated per page), " +
	"preserve markdown-style headings and paragraph structure, and return only the cleaned text."

// Extractor turns raw uploaded content into cleaned document text through
// chat completions, one page-sized segment per call.
type Extractor struct {
	client   *openai.Client
	model    string
	pageSize int
	logger   *zap.Logger
}

// ExtractorConfig holds the extraction provider settings.
type ExtractorConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	PageSize int // bytes of raw input per completion call
	Logger   *zap.Logger
}

// NewExtractor creates an OpenAI-compatible extraction provider.
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 4096
	}
	return &Extractor{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		pageSize: pageSize,
		logger:   cfg.Logger,
	}
}

// Extract implements extraction.Extractor. The raw input is processed in
// page-sized segments; progress fires after every page.
func (e *Extractor) Extract(ctx context.Context, in extraction.Input, progress extraction.ProgressFunc) (extraction.Result, error) {
	pages := paginate(string(in.Data), e.pageSize)
	total := len(pages)
	if total == 0 {
		return extraction.Result{}, fmt.Errorf("no extractable content: %w", domain.ErrExtractionProviderError)
	}
	progress(0, total, "starting extraction")

	var cleaned strings.Builder
	nonEmpty := 0
	for i, page := range pages {
		text, err := e.cleanPage(ctx, page)
		if err != nil {
			return extraction.Result{}, fmt.Errorf("page %d of %d: %w", i+1, total, err)
		}
		if text != "" {
			if cleaned.Len() > 0 {
				cleaned.WriteString("\n\n")
			}
			cleaned.WriteString(text)
			nonEmpty++
		}
		progress(i+1, total, fmt.Sprintf("processed page %d of %d", i+1, total))
	}

	if cleaned.Len() == 0 {
		return extraction.Result{}, fmt.Errorf("extraction produced no text: %w", domain.ErrExtractionProviderError)
	}

	return extraction.Result{
		Content:    cleaned.String(),
		Method:     "llm:" + e.model,
		Confidence: float64(nonEmpty) / float64(total),
		PageCount:  total,
	}, nil
}

func (e *Extractor) cleanPage(ctx context.Context, page string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: page},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", parseAPIError(err, domain.ErrExtractionProviderError, "extraction")
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrExtractionProviderError)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// paginate cuts raw text into page-sized segments at line boundaries where
// possible.
func paginate(raw string, pageSize int) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var pages []string
	for len(raw) > pageSize {
		cut := strings.LastIndexByte(raw[:pageSize], '\n')
		if cut <= 0 {
			cut = pageSize
		}
		pages = append(pages, strings.TrimSpace(raw[:cut]))
		raw = strings.TrimSpace(raw[cut:])
	}
	if raw != "" {
		pages = append(pages, raw)
	}
	return pages
}
