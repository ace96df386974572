package server

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"strings"

	v1 "github.com/Sophix-ma/Mindra/api/sidebar/v1"
	"github.com/Sophix-ma/Mindra/internal/biz"
	"github.com/Sophix-ma/Mindra/internal/conf"
	sidebarErrors "github.com/Sophix-ma/Mindra/internal/errors"
	"github.com/Sophix-ma/Mindra/internal/service"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
// 常规接口走 JSON，对话类接口走 SSE
func NewHTTPServer(c *conf.Bootstrap, sidebar *service.SidebarService, account *service.AccountService) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if d := c.Server.Http.TimeoutDuration(); d > 0 {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)

	srv.Handle("/metrics", promhttp.Handler())

	r := srv.Route("/v1")

	r.POST("/account/register", func(ctx http.Context) error {
		var req v1.RegisterRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := account.Register(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/account/login", func(ctx http.Context) error {
		var req v1.LoginRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := account.Login(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/account/username", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		var req v1.ChangeUsernameRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := account.ChangeUsername(ctx, userID, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/account/password", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		var req v1.ChangePasswordRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := account.ChangePassword(ctx, userID, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/balance", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		reply, err := sidebar.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/usage/history", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		reply, err := sidebar.UsageHistory(ctx, userID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.DELETE("/usage/history", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		reply, err := sidebar.PurgeUsage(ctx, userID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/conversation/reset", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		reply, err := sidebar.ResetConversation(ctx, userID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/chat", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		var req v1.ChatRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		events, err := sidebar.Chat(ctx, userID, &req)
		if err != nil {
			return err
		}
		return writeStream(ctx, events)
	})

	r.POST("/summarize", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		var req v1.SummarizeRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		events, err := sidebar.Summarize(ctx, userID, &req)
		if err != nil {
			return err
		}
		return writeStream(ctx, events)
	})

	r.POST("/explain", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		var req v1.TextRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		events, err := sidebar.Explain(ctx, userID, &req)
		if err != nil {
			return err
		}
		return writeStream(ctx, events)
	})

	r.POST("/translate", func(ctx http.Context) error {
		userID, err := authenticate(ctx, account)
		if err != nil {
			return err
		}
		var req v1.TextRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		events, err := sidebar.Translate(ctx, userID, &req)
		if err != nil {
			return err
		}
		return writeStream(ctx, events)
	})

	return srv
}

// authenticate 校验 Authorization: Bearer <token>，返回用户标识
func authenticate(ctx http.Context, account *service.AccountService) (string, error) {
	auth := ctx.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", sidebarErrors.New(401, sidebarErrors.ErrCodeTokenInvalid,
			sidebarErrors.ReasonTokenInvalid, "缺少登录令牌")
	}
	return account.VerifyToken(strings.TrimPrefix(auth, "Bearer "))
}

// writeStream 把事件 channel 转为 SSE 响应
// 每条事件一帧，Complete/Error 后结束；
// 写失败后继续排空 channel，让生产协程得以收尾
func writeStream(ctx http.Context, events <-chan biz.Event) error {
	w := ctx.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(nethttp.StatusOK)

	flusher, _ := w.(nethttp.Flusher)

	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue
		}
		frame := v1.StreamEvent{
			Content:   ev.Content,
			Reasoning: ev.Reasoning,
			Message:   ev.Message,
		}
		switch ev.Kind {
		case biz.EventDelta:
			frame.Type = "delta"
		case biz.EventComplete:
			frame.Type = "complete"
		case biz.EventError:
			frame.Type = "error"
		}
		b, err := json.Marshal(frame)
		if err != nil {
			writeErr = err
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			writeErr = err
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return writeErr
}
