package app

import (
	"context"
	"fmt"

	"okxagent/internal/agent"
	"okxagent/internal/config"
	"okxagent/internal/gateway/okx"
	"okxagent/internal/logger"
	"okxagent/internal/prompt"
	"okxagent/internal/snapshot"
	"okxagent/internal/trade"
	"okxagent/internal/transport/http/api"
	"okxagent/internal/trigger"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：持有组件，启动循环与 HTTP 服务。
type App struct {
	Config    *config.Config
	Client    *okx.Client
	Snapshots *snapshot.Builder
	Prompts   *prompt.Store
	Agent     *agent.Agent
	Loop      *agent.Loop
	Executor  *trade.Executor
	Triggers  *trigger.Manager
	HTTP      *api.Server
	Summary   *StartupSummary

	cleanup func()
}

func NewApp(cfg *config.Config, client *okx.Client, snaps *snapshot.Builder, prompts *prompt.Store, a *agent.Agent,
	loop *agent.Loop, exec *trade.Executor, triggers *trigger.Manager, srv *api.Server) *App {
	return &App{
		Config:    cfg,
		Client:    client,
		Snapshots: snaps,
		Prompts:   prompts,
		Agent:     a,
		Loop:      loop,
		Executor:  exec,
		Triggers:  triggers,
		HTTP:      srv,
		Summary:   NewStartupSummary(cfg, prompts),
	}
}

// Build 根据配置构建应用对象（不启动）。调用方负责 Close。
func Build(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	a, cleanup, err := buildAppWithWire(cfg)
	if err != nil {
		return nil, err
	}
	a.cleanup = cleanup
	return a, nil
}

// Run 启动循环与 HTTP 服务；循环结束（max_cycles 或 ctx 取消）后一并退出。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Loop == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	group, gctx := errgroup.WithContext(ctx)
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.HTTP != nil {
		group.Go(func() error {
			if err := a.HTTP.Start(loopCtx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	if a.Config.Prompt.Watch && a.Prompts != nil {
		if err := a.Prompts.Watch(loopCtx); err != nil {
			logger.Warnf("prompt 热加载未启用: %v", err)
		}
	}
	group.Go(func() error {
		defer stop()
		return a.Loop.Run(loopCtx)
	})
	return group.Wait()
}

// RunOnce 执行单轮决策。
func (a *App) RunOnce(ctx context.Context) (agent.CycleReport, error) {
	if a == nil || a.Agent == nil {
		return agent.CycleReport{}, fmt.Errorf("app not initialized")
	}
	return a.Agent.RunCycle(ctx)
}

func (a *App) Close() {
	if a != nil && a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}
