package presenter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/omni/messenger-watcher/cache"
	"github.com/omni/messenger-watcher/config"
	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/logging"
	"github.com/omni/messenger-watcher/monitor"
	"github.com/omni/messenger-watcher/presenter/http/middleware"
	"github.com/omni/messenger-watcher/presenter/http/render"
	"github.com/omni/messenger-watcher/repository"
	"github.com/omni/messenger-watcher/watcher"
)

const (
	hashPattern      = "0x[0-9a-fA-F]{64}"
	watcherIDPattern = "[0-9a-zA-Z_\\-]+"
)

type Presenter struct {
	logger   logging.Logger
	cfg      *config.PresenterConfig
	repo     *repository.Repo
	cache    cache.RelayCache
	monitors map[string]*monitor.Monitor
	root     chi.Router
}

func NewPresenter(logger logging.Logger, cfg *config.PresenterConfig, repo *repository.Repo, relayCache cache.RelayCache, monitors map[string]*monitor.Monitor) *Presenter {
	p := &Presenter{
		logger:   logger,
		cfg:      cfg,
		repo:     repo,
		cache:    relayCache,
		monitors: monitors,
		root:     chi.NewMux(),
	}
	p.routes()
	return p
}

func (p *Presenter) routes() {
	p.root.Use(chimiddleware.Throttle(50))
	p.root.Use(chimiddleware.RequestID)
	p.root.Use(middleware.NewLoggerMiddleware(p.logger))
	p.root.Use(middleware.Recoverer)

	p.root.Route(fmt.Sprintf("/watcher/{watcherID:%s}", watcherIDPattern), func(r chi.Router) {
		r.Use(middleware.GetMonitorMiddleware(p.monitors))

		r.Route(fmt.Sprintf("/message/{msgHash:%s}", hashPattern), func(r chi.Router) {
			r.Use(middleware.GetMsgHashMiddleware)
			r.Get("/", p.wrapJSONHandler(p.GetMessage))
			r.Delete("/track", p.wrapJSONHandler(p.UntrackMessage))
		})

		r.Route("/{domain}", func(r chi.Router) {
			r.Use(middleware.GetDomainMiddleware)
			r.Route(fmt.Sprintf("/tx/{txHash:%s}", hashPattern), func(r chi.Router) {
				r.Use(middleware.GetTxHashMiddleware)
				r.Get("/messages", p.wrapJSONHandler(p.GetTxMessages))
				r.Post("/track", p.wrapJSONHandler(p.TrackTx))
			})
			r.With(middleware.GetMsgHashMiddleware).
				Get(fmt.Sprintf("/relay/{msgHash:%s}", hashPattern), p.wrapJSONHandler(p.GetRelay))
		})
	})
}

func (p *Presenter) Handler() http.Handler {
	return p.root
}

func (p *Presenter) Serve() error {
	p.logger.WithField("addr", p.cfg.Host).Info("starting presenter service")
	return http.ListenAndServe(p.cfg.Host, p.root)
}

func (p *Presenter) wrapJSONHandler(handler func(r *http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			render.Error(w, r, err)
			return
		}
		render.JSON(w, r, http.StatusOK, res)
	}
}

func (p *Presenter) GetTxMessages(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	w := middleware.Monitor(ctx).Watcher()
	domain := middleware.Domain(ctx)
	txHash := middleware.TxHash(ctx)

	src, err := w.Side(domain)
	if err != nil {
		return nil, withErrorStatus(err)
	}
	msgs, err := w.SentMessagesFrom(ctx, domain, txHash)
	if err != nil {
		return nil, withErrorStatus(err)
	}

	res := &TxMessagesResult{
		WatcherID: w.ID,
		Domain:    string(domain),
		ChainID:   src.Client.ChainID(),
		TxHash:    txHash,
		Messages:  make([]*SentMessageInfo, 0, len(msgs)),
	}
	hashes := make([]common.Hash, 0, len(msgs))
	for _, msg := range msgs {
		info, err := sentMessageToInfo(msg)
		if err != nil {
			return nil, fmt.Errorf("can't compute message hash: %w", err)
		}
		res.Messages = append(res.Messages, info)
		hashes = append(hashes, info.MsgHash)
	}

	relays, err := p.repo.Relays.FindByMsgHashes(ctx, w.ID, hashes)
	if err != nil {
		return nil, err
	}
	stored := make(map[common.Hash]*RelayResult, len(relays))
	for _, relay := range relays {
		stored[relay.MsgHash] = storedRelayToResult(relay)
	}
	for _, info := range res.Messages {
		info.Relay = stored[info.MsgHash]
	}
	return res, nil
}

func (p *Presenter) TrackTx(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	m := middleware.Monitor(ctx)
	domain := middleware.Domain(ctx)
	txHash := middleware.TxHash(ctx)

	msgs, err := m.Tracker().Track(ctx, domain, txHash)
	if err != nil {
		return nil, withErrorStatus(err)
	}

	res := &TrackResult{
		WatcherID: m.Watcher().ID,
		Domain:    string(domain),
		TxHash:    txHash,
		Messages:  make([]*MessageInfo, len(msgs)),
	}
	for i, msg := range msgs {
		res.Messages[i] = messageToInfo(msg)
	}
	return res, nil
}

// GetRelay resolves the relay of a message on the requested destination
// domain. With wait=true the request blocks for at most the configured wait
// timeout and reports a pending relay when it expires.
func (p *Presenter) GetRelay(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	w := middleware.Monitor(ctx).Watcher()
	domain := middleware.Domain(ctx)
	msgHash := middleware.MsgHash(ctx)
	logger := logging.LoggerFromContext(ctx).WithField("domain", domain)

	dst, err := w.Side(domain)
	if err != nil {
		return nil, withErrorStatus(err)
	}
	chainID := dst.Client.ChainID()

	if relay := p.cachedRelay(ctx, w, domain, msgHash); relay != nil {
		return relayToResult(w.ID, domain, chainID, msgHash, relay), nil
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	resolveCtx := ctx
	if wait {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, p.cfg.WaitTimeout)
		defer cancel()
	}

	relay, err := w.RelayFor(resolveCtx, domain, msgHash, wait)
	if err != nil {
		// Only the expiry of the wait itself means pending, endpoint
		// timeouts surface as errors.
		if !wait || !errors.Is(resolveCtx.Err(), context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, withErrorStatus(err)
		}
		logger.WithField("timeout", p.cfg.WaitTimeout).Debug("relay wait timed out")
	}
	if relay != nil {
		if err = p.cache.Set(ctx, w.ID, relayToCached(domain, chainID, relay)); err != nil {
			logger.WithError(err).Warn("can't cache resolved relay")
		}
	}
	return relayToResult(w.ID, domain, chainID, msgHash, relay), nil
}

// cachedRelay returns nil on a miss or when the cached location no longer
// holds the relay, the caller falls back to a scan then.
func (p *Presenter) cachedRelay(ctx context.Context, w *watcher.Watcher, domain watcher.Domain, msgHash common.Hash) *watcher.Relay {
	logger := logging.LoggerFromContext(ctx)
	cached, err := p.cache.Get(ctx, w.ID, msgHash)
	if err != nil {
		logger.WithError(err).Warn("can't read relay cache")
		return nil
	}
	if cached == nil || cached.Domain != string(domain) {
		return nil
	}
	relay, err := w.RelayInTx(ctx, domain, cached.TxHash, msgHash)
	if err != nil {
		logger.WithError(err).Warn("can't check cached relay location")
		return nil
	}
	if relay == nil {
		logger.WithField("tx_hash", cached.TxHash).Warn("cached relay location does not hold the relay")
	}
	return relay
}

func (p *Presenter) GetMessage(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	m := middleware.Monitor(ctx)
	watcherID := m.Watcher().ID
	msgHash := middleware.MsgHash(ctx)

	msg, err := p.repo.Messages.GetByMsgHash(ctx, watcherID, msgHash)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, render.WithStatus(http.StatusNotFound, fmt.Errorf("message %s not found", msgHash))
		}
		return nil, err
	}
	res := &MessageResult{
		Message: messageToInfo(msg),
		Tracked: m.Tracker().IsTracked(msgHash),
	}

	relay, err := p.repo.Relays.GetByMsgHash(ctx, watcherID, msgHash)
	if err = db.IgnoreErrNotFound(err); err != nil {
		return nil, err
	}
	if relay != nil {
		res.Relay = storedRelayToResult(relay)
	}
	return res, nil
}

func (p *Presenter) UntrackMessage(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	m := middleware.Monitor(ctx)
	msgHash := middleware.MsgHash(ctx)

	if !m.Tracker().Untrack(msgHash) {
		return nil, render.WithStatus(http.StatusNotFound, fmt.Errorf("message %s is not tracked", msgHash))
	}
	return &UntrackResult{
		MsgHash:   msgHash,
		Untracked: true,
	}, nil
}
