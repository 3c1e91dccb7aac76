package provider

import "context"

// ImagePayload 是一张已编码的图表（data URI）以及给模型看的文字说明。
type ImagePayload struct {
	DataURI     string
	Description string
}

// ChatPayload 单轮决策请求：system + user 两段文本，外加可选图片。
type ChatPayload struct {
	TraceID    string
	System     string
	User       string
	Images     []ImagePayload
	ExpectJSON bool
	MaxTokens  int // <=0 使用 provider 默认值
}

// ImageDescriptions lists image captions for the transcript log.
func (p ChatPayload) ImageDescriptions() []string {
	out := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		out = append(out, img.Description)
	}
	return out
}

// ModelProvider 是决策所用的大模型接口；实现需自行处理重试与熔断。
type ModelProvider interface {
	ID() string
	Enabled() bool
	SupportsVision() bool
	ExpectsJSON() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}
