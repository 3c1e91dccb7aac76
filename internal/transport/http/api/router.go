package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"okxagent/internal/agent"
	"okxagent/internal/pkg/symbol"
	"okxagent/internal/snapshot"
	"okxagent/internal/store/decisionlog"
	"okxagent/internal/store/orderlog"
	"okxagent/internal/trigger"

	"github.com/gin-gonic/gin"
)

type StatusProvider interface {
	Status() agent.Status
	LastReport() (agent.CycleReport, bool)
}

type DecisionReader interface {
	Recent(ctx context.Context, limit int) ([]decisionlog.Record, error)
	Get(ctx context.Context, traceID string) (decisionlog.Record, error)
}

type OrderReader interface {
	Recent(ctx context.Context, limit int, instID string) ([]orderlog.OrderLogModel, error)
}

type SnapshotBuilder interface {
	Build(ctx context.Context, symbol string) (snapshot.PerpSnapshot, error)
}

type TriggerWatcher interface {
	Watch(ctx context.Context, cond trigger.Condition) (*trigger.Watch, error)
}

const (
	defaultLimit      = 20
	maxLimit          = 500
	maxTriggerTimeout = 30 * time.Minute
)

// Router 挂载 /api 下的查询与触发接口。
type Router struct {
	cfg ServerConfig
}

func NewRouter(cfg ServerConfig) *Router { return &Router{cfg: cfg} }

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/decisions/:trace_id", r.handleDecisionByTrace)
	group.GET("/orders", r.handleOrders)
	group.GET("/snapshot/:symbol", r.handleSnapshot)
	group.POST("/triggers", r.handleTrigger)
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " 未启用"})
}

func parseLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func (r *Router) handleStatus(c *gin.Context) {
	if r.cfg.Agent == nil {
		unavailable(c, "agent")
		return
	}
	resp := gin.H{"status": r.cfg.Agent.Status()}
	if rep, ok := r.cfg.Agent.LastReport(); ok {
		resp["last"] = gin.H{
			"trace_id":   rep.TraceID,
			"seq":        rep.Seq,
			"started_at": rep.StartedAt,
			"duration":   rep.Duration.String(),
			"decisions":  rep.Result.Decisions,
			"actions":    rep.Actions,
			"wake":       rep.Result.WakeTrigger,
			"charts":     rep.Charts,
			"error":      rep.Error,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleDecisions(c *gin.Context) {
	if r.cfg.Decisions == nil {
		unavailable(c, "决策日志")
		return
	}
	recs, err := r.cfg.Decisions.Recent(c.Request.Context(), parseLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if c.Query("full") != "1" {
		for i := range recs {
			recs[i].System, recs[i].User = "", ""
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": recs, "count": len(recs)})
}

func (r *Router) handleDecisionByTrace(c *gin.Context) {
	if r.cfg.Decisions == nil {
		unavailable(c, "决策日志")
		return
	}
	rec, err := r.cfg.Decisions.Get(c.Request.Context(), c.Param("trace_id"))
	switch {
	case errors.Is(err, decisionlog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trace 不存在"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, rec)
	}
}

func (r *Router) handleOrders(c *gin.Context) {
	if r.cfg.Orders == nil {
		unavailable(c, "订单日志")
		return
	}
	instID := ""
	if raw := strings.TrimSpace(c.Query("symbol")); raw != "" {
		instID = symbol.ToInstID(raw)
	}
	rows, err := r.cfg.Orders.Recent(c.Request.Context(), parseLimit(c), instID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "count": len(rows)})
}

// resolveSymbol 路径参数不能带 "/"，因此也接受 BTC-USDT-SWAP 或 BTC。
func resolveSymbol(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(raw, "/"):
		return raw
	case strings.Contains(raw, "-"):
		return symbol.FromInstID(raw)
	default:
		return raw + "/USDT:USDT"
	}
}

func (r *Router) handleSnapshot(c *gin.Context) {
	if r.cfg.Snapshots == nil {
		unavailable(c, "行情快照")
		return
	}
	raw := c.Param("symbol")
	if strings.TrimSpace(raw) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	snap, err := r.cfg.Snapshots.Build(c.Request.Context(), resolveSymbol(raw))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

type triggerRequest struct {
	Symbol         string  `json:"symbol" binding:"required"`
	Direction      string  `json:"direction" binding:"required"`
	Price          float64 `json:"price" binding:"required"`
	Tolerance      float64 `json:"tolerance"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// handleTrigger 阻塞等待价格触发或超时。
func (r *Router) handleTrigger(c *gin.Context) {
	if r.cfg.Triggers == nil {
		unavailable(c, "价格触发")
		return
	}
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cond := trigger.Condition{
		InstID:    symbol.ToInstID(resolveSymbol(req.Symbol)),
		Direction: req.Direction,
		Target:    req.Price,
		Tolerance: req.Tolerance,
	}
	w, err := r.cfg.Triggers.Watch(c.Request.Context(), cond)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout > maxTriggerTimeout {
		timeout = maxTriggerTimeout
	}
	c.JSON(http.StatusOK, w.Wait(timeout))
}
