package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"okxagent/internal/agent"
	"okxagent/internal/chart"
	"okxagent/internal/config"
	"okxagent/internal/gateway"
	"okxagent/internal/gateway/notifier"
	"okxagent/internal/gateway/okx"
	"okxagent/internal/gateway/provider"
	"okxagent/internal/logger"
	"okxagent/internal/market"
	"okxagent/internal/prompt"
	"okxagent/internal/scheduler"
	"okxagent/internal/snapshot"
	"okxagent/internal/store/decisionlog"
	"okxagent/internal/store/orderlog"
	"okxagent/internal/trade"
	"okxagent/internal/transport/http/api"
	"okxagent/internal/trigger"

	"github.com/google/wire"
)

// ProviderSet 应用对象图。
var ProviderSet = wire.NewSet(
	ProvideOKXClient,
	ProvideMarketSource,
	ProvideSnapshotBuilder,
	ProvidePromptStore,
	ProvideModelProvider,
	ProvideDecisionLog,
	ProvideOrderLog,
	ProvideExecutor,
	ProvideTriggerManager,
	ProvideNotifier,
	ProvideAgent,
	ProvideLoop,
	ProvideHTTPServer,
	NewApp,
)

// ProvideOKXClient 也被 CLI 的账户/下单子命令直接使用。
func ProvideOKXClient(cfg *config.Config) *okx.Client {
	return okx.NewClient(okx.Config{
		BaseURL:    cfg.OKX.BaseURL,
		APIKey:     cfg.OKX.APIKey,
		APISecret:  cfg.OKX.APISecret,
		Passphrase: cfg.OKX.Passphrase,
		Simulated:  cfg.OKX.Simulated,
		Proxy:      cfg.OKX.Proxy,
		Timeout:    cfg.OKX.Timeout(),
		Retries:    cfg.OKX.Retries,
		RetryCode:  cfg.OKX.RetryCode,
	})
}

func ProvideMarketSource(cfg *config.Config, client *okx.Client) (market.Source, error) {
	return gateway.NewSourceFromConfig(cfg, client)
}

func ProvideSnapshotBuilder(cfg *config.Config, src market.Source) *snapshot.Builder {
	return snapshot.NewBuilder(src, snapshot.Options{
		IntradayBar: cfg.Market.IntradayBar,
		SwingBar:    cfg.Market.SwingBar,
		Keep:        cfg.Market.Keep,
		SignalBar:   cfg.Market.SignalBar,
		SMAShort:    cfg.Market.SMAShort,
		SMALong:     cfg.Market.SMALong,
	})
}

func ProvidePromptStore(cfg *config.Config) (*prompt.Store, error) {
	return prompt.NewStore(cfg.Prompt.Dir, cfg.Prompt.SystemFile, cfg.Prompt.UserFile)
}

func ProvideModelProvider(cfg *config.Config) (provider.ModelProvider, error) {
	return provider.NewFromConfig(cfg.LLM)
}

func ProvideDecisionLog(cfg *config.Config) (*decisionlog.Store, func(), error) {
	s, err := decisionlog.Open(cfg.Store.DecisionDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open decision log: %w", err)
	}
	return s, closer("decision log", s), nil
}

func ProvideOrderLog(cfg *config.Config) (*orderlog.Store, func(), error) {
	s, err := orderlog.Open(cfg.Store.OrderDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open order log: %w", err)
	}
	return s, closer("order log", s), nil
}

func closer(name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warnf("关闭 %s 失败: %v", name, err)
		}
	}
}

func ProvideExecutor(cfg *config.Config, client *okx.Client, orders *orderlog.Store) *trade.Executor {
	return trade.NewExecutor(client, orders, trade.OptionsFromConfig(cfg.Trading))
}

func ProvideTriggerManager(cfg *config.Config, client *okx.Client) *trigger.Manager {
	var stream trigger.Streamer
	if cfg.Trigger.UseWebsocket {
		stream = okx.NewTickerStream(cfg.OKX.WSPublicURL, cfg.OKX.Proxy)
	}
	return trigger.NewManager(client, stream, trigger.OptionsFromConfig(cfg.Trigger))
}

func ProvideNotifier(cfg *config.Config) notifier.TextNotifier {
	return notifier.FromConfig(cfg.Notify.Telegram)
}

// ProvideAgent 没有 API 凭证时不读取账户，prompt 中账户为空。
func ProvideAgent(cfg *config.Config, client *okx.Client, snaps *snapshot.Builder, prompts *prompt.Store,
	model provider.ModelProvider, exec *trade.Executor, decisions *decisionlog.Store, note notifier.TextNotifier) *agent.Agent {
	deps := agent.Deps{
		Snapshots: snaps,
		Prompts:   prompts,
		Model:     model,
		Executor:  exec,
		Store:     decisions,
		Notifier:  note,
	}
	if client.HasCredentials() {
		deps.Account = client
	}
	if cfg.Chart.Enabled {
		renderPNG := cfg.Chart.RenderPNG
		if renderPNG {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := chart.EnsureHeadlessAvailable(ctx); err != nil {
				logger.Warnf("headless chrome 不可用，图表只输出 HTML: %v", err)
				renderPNG = false
			}
			cancel()
		}
		deps.Charts = chart.NewRenderer(cfg.Chart.Dir, renderPNG)
	}
	return agent.New(deps, agent.OptionsFromConfig(cfg))
}

func ProvideLoop(cfg *config.Config, a *agent.Agent, triggers *trigger.Manager) (*agent.Loop, error) {
	opts, err := scheduler.OptionsFromConfig(cfg.Loop)
	if err != nil {
		return nil, err
	}
	return agent.NewLoop(a, scheduler.NewAlignedScheduler(opts), triggers), nil
}

// ProvideHTTPServer http_addr 为空时不启动 HTTP 服务。
func ProvideHTTPServer(cfg *config.Config, a *agent.Agent, decisions *decisionlog.Store, orders *orderlog.Store,
	snaps *snapshot.Builder, triggers *trigger.Manager) *api.Server {
	if cfg.App.HTTPAddr == "" {
		return nil
	}
	return api.NewServer(api.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Agent:     a,
		Decisions: decisions,
		Orders:    orders,
		Snapshots: snaps,
		Triggers:  triggers,
	})
}
