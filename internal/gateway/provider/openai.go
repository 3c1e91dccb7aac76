package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"okxagent/internal/logger"
	"okxagent/internal/pkg/circuit"
	"okxagent/internal/pkg/jsonutil"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	defaultBaseURL = "https://api.deepseek.com/v1"
	defaultModel   = "deepseek-chat"
)

// ErrEmptyResponse is returned when the model answered without content.
var ErrEmptyResponse = errors.New("llm returned no content")

// Config OpenAI 兼容接口（DeepSeek / OpenAI / Qwen 等）的参数。
type Config struct {
	ID          string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	JSONMode    bool
	Vision      bool
}

// OpenAIProvider 基于 openai-go 的 chat completions 实现 ModelProvider。
type OpenAIProvider struct {
	cfg     Config
	client  openai.Client
	breaker *circuit.CircuitBreaker
}

func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	// 用户把完整的 /chat/completions 写进配置时去掉，SDK 会自行拼接
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/chat/completions")
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = "llm:" + cfg.Model
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL+"/"),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	return &OpenAIProvider{
		cfg:     cfg,
		client:  client,
		breaker: circuit.NewCircuitBreaker("llm:"+cfg.Model, 3, 5*time.Minute),
	}, nil
}

func (p *OpenAIProvider) ID() string           { return p.cfg.ID }
func (p *OpenAIProvider) Enabled() bool        { return true }
func (p *OpenAIProvider) SupportsVision() bool { return p.cfg.Vision }
func (p *OpenAIProvider) ExpectsJSON() bool    { return p.cfg.JSONMode }

func (p *OpenAIProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	params := p.buildParams(payload)
	var dump string
	if raw, err := json.Marshal(params); err == nil {
		dump = jsonutil.Pretty(string(raw))
	}
	logger.LogLLMRequest(p.cfg.ID, payload.TraceID, payload.System, payload.User, payload.ImageDescriptions(), dump)

	var content string
	start := time.Now()
	err := p.breaker.Do(func() error {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		content = resp.Choices[0].Message.Content
		logger.Debugf("llm %s usage prompt=%d completion=%d elapsed=%s",
			p.cfg.ID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, time.Since(start).Round(time.Millisecond))
		return nil
	})
	if err != nil {
		logger.LogLLMResponse(p.cfg.ID, payload.TraceID, "ERROR: "+err.Error())
		return "", fmt.Errorf("llm %s: %w", p.cfg.ID, err)
	}
	logger.LogLLMResponse(p.cfg.ID, payload.TraceID, content)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("llm %s: %w", p.cfg.ID, ErrEmptyResponse)
	}
	return content, nil
}

func (p *OpenAIProvider) buildParams(payload ChatPayload) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(payload.System) != "" {
		messages = append(messages, openai.SystemMessage(payload.System))
	}
	if p.cfg.Vision && len(payload.Images) > 0 {
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(payload.User)}
		for _, img := range payload.Images {
			if strings.TrimSpace(img.DataURI) == "" {
				continue
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: img.DataURI}))
		}
		messages = append(messages, openai.UserMessage(parts))
	} else {
		messages = append(messages, openai.UserMessage(payload.User))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.cfg.Model),
		Messages:    messages,
		Temperature: openai.Float(p.cfg.Temperature),
	}
	maxTokens := payload.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if p.cfg.JSONMode || payload.ExpectJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}
