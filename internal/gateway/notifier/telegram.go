package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"okxagent/internal/config"
	"okxagent/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	defaultTelegramAPI = "https://api.telegram.org"
	telegramAttempts   = 3
)

// Telegram 把循环结果推送到指定群/频道。
type Telegram struct {
	BotToken string
	ChatID   string

	http    *resty.Client
	backoff func(attempt int) time.Duration
}

func NewTelegram(botToken, chatID string) *Telegram {
	return newTelegram(defaultTelegramAPI, botToken, chatID)
}

func newTelegram(baseURL, botToken, chatID string) *Telegram {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Telegram{
		BotToken: strings.TrimSpace(botToken),
		ChatID:   strings.TrimSpace(chatID),
		http:     rc,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

// FromConfig 未启用或配置不完整时返回 Nop。
func FromConfig(cfg config.TelegramConfig) TextNotifier {
	if !cfg.Enabled {
		return Nop{}
	}
	if strings.TrimSpace(cfg.BotToken) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		logger.Warnf("Telegram 已启用但 bot_token/chat_id 缺失，通知关闭")
		return Nop{}
	}
	return NewTelegram(cfg.BotToken, cfg.ChatID)
}

// SendText 发送 Markdown 文本，最多尝试 3 次。
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("Telegram 配置不完整")
	}
	payload := map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	var lastErr error
	for i := 1; i <= telegramAttempts; i++ {
		resp, err := t.http.R().
			SetContext(ctx).
			SetBody(payload).
			Post("/bot" + t.BotToken + "/sendMessage")
		switch {
		case err != nil:
			lastErr = err
		case resp.IsSuccess() && gjson.GetBytes(resp.Body(), "ok").Bool():
			return nil
		default:
			desc := gjson.GetBytes(resp.Body(), "description").String()
			lastErr = fmt.Errorf("telegram status=%d %s", resp.StatusCode(), desc)
			// 4xx 重试也没用
			if resp.StatusCode() >= 400 && resp.StatusCode() < 500 && resp.StatusCode() != 429 {
				return lastErr
			}
		}
		if i == telegramAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.backoff(i)):
		}
	}
	return lastErr
}

// Send 渲染并发送结构化消息。
func Send(ctx context.Context, n TextNotifier, msg StructuredMessage) error {
	if n == nil {
		return nil
	}
	return n.SendText(ctx, msg.RenderMarkdown())
}
