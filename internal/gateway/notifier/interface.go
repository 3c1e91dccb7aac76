package notifier

import "context"

// TextNotifier 最小通知接口，调用方不需要关心具体渠道。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop 丢弃所有消息，未配置通知时使用。
type Nop struct{}

func (Nop) SendText(context.Context, string) error { return nil }
