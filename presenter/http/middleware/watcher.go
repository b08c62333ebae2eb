package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/omni/messenger-watcher/logging"
	"github.com/omni/messenger-watcher/monitor"
	"github.com/omni/messenger-watcher/presenter/http/render"
	"github.com/omni/messenger-watcher/watcher"
)

type ctxKey int

const (
	monitorCtxKey ctxKey = iota
	domainCtxKey
	txHashCtxKey
	msgHashCtxKey
)

// GetMonitorMiddleware resolves the {watcherID} url param into its monitor.
func GetMonitorMiddleware(monitors map[string]*monitor.Monitor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			watcherID := chi.URLParam(r, "watcherID")

			m, ok := monitors[watcherID]
			if !ok || m == nil {
				render.Error(w, r, render.WithStatus(http.StatusNotFound, fmt.Errorf("watcher with id %s not found", watcherID)))
				return
			}

			ctx := context.WithValue(r.Context(), monitorCtxKey, m)
			ctx = logging.WithLogger(ctx, logging.LoggerFromContext(ctx).WithField("watcher_id", watcherID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Monitor(ctx context.Context) *monitor.Monitor {
	m, _ := ctx.Value(monitorCtxKey).(*monitor.Monitor)
	return m
}

func GetDomainMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		domain, err := watcher.ParseDomain(chi.URLParam(r, "domain"))
		if err != nil {
			render.Error(w, r, render.WithStatus(http.StatusBadRequest, err))
			return
		}

		ctx := context.WithValue(r.Context(), domainCtxKey, domain)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func Domain(ctx context.Context) watcher.Domain {
	d, _ := ctx.Value(domainCtxKey).(watcher.Domain)
	return d
}

// GetTxHashMiddleware and GetMsgHashMiddleware expect the route pattern to
// validate the hash format.
func GetTxHashMiddleware(next http.Handler) http.Handler {
	return hashMiddleware("txHash", "tx_hash", txHashCtxKey, next)
}

func GetMsgHashMiddleware(next http.Handler) http.Handler {
	return hashMiddleware("msgHash", "msg_hash", msgHashCtxKey, next)
}

func hashMiddleware(param, field string, key ctxKey, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := common.HexToHash(chi.URLParam(r, param))

		ctx := context.WithValue(r.Context(), key, hash)
		ctx = logging.WithLogger(ctx, logging.LoggerFromContext(ctx).WithField(field, hash))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TxHash(ctx context.Context) common.Hash {
	h, _ := ctx.Value(txHashCtxKey).(common.Hash)
	return h
}

func MsgHash(ctx context.Context) common.Hash {
	h, _ := ctx.Value(msgHashCtxKey).(common.Hash)
	return h
}
