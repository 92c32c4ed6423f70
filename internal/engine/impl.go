package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"terminal-core/internal/events"
	"terminal-core/internal/monitor"
	"terminal-core/internal/persistence"
	"terminal-core/internal/position"
	"terminal-core/internal/reconciliation"
	"terminal-core/internal/state"
	"terminal-core/internal/symbols"
	"terminal-core/internal/terminal"
	"terminal-core/pkg/cache"
	"terminal-core/pkg/db"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/logger"
)

// Update reasons published on events.EventSessionUpdate.
const (
	ReasonEdit     = "edit"
	ReasonTick     = "tick"
	ReasonPosition = "position"
	ReasonClosed   = "closed"
)

// Impl implements the Service interface by composing existing modules.
type Impl struct {
	catalog  *symbols.Catalog
	prices   *cache.PriceCache
	stateMgr *state.Manager
	recon    *reconciliation.Service
	bus      *events.Bus
	queries  *db.Queries
	writer   *persistence.BatchWriter
	metrics  *monitor.Metrics
	defaults terminal.Defaults
	log      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*entry

	// System metadata
	meta SystemStatus
}

type entry struct {
	session    *terminal.Session
	positionID string
	openedAt   time.Time
	cancel     context.CancelFunc
}

// Config holds the configuration for creating an engine implementation.
type Config struct {
	Catalog  *symbols.Catalog
	Prices   *cache.PriceCache
	StateMgr *state.Manager
	Recon    *reconciliation.Service
	Bus      *events.Bus
	// Queries stores assembled payloads; nil disables the audit trail.
	Queries *db.Queries
	// Writer batches payload inserts; without it they are written inline.
	Writer   *persistence.BatchWriter
	Metrics  *monitor.Metrics
	Defaults terminal.Defaults
	Meta     SystemStatus
}

// NewImpl creates a new engine implementation.
func NewImpl(cfg Config) *Impl {
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Prices == nil {
		cfg.Prices = cache.NewPriceCache()
	}
	if cfg.StateMgr == nil {
		cfg.StateMgr = state.NewManager(nil, cfg.Bus)
	}
	meta := cfg.Meta
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}
	return &Impl{
		catalog:  cfg.Catalog,
		prices:   cfg.Prices,
		stateMgr: cfg.StateMgr,
		recon:    cfg.Recon,
		bus:      cfg.Bus,
		queries:  cfg.Queries,
		writer:   cfg.Writer,
		metrics:  cfg.Metrics,
		defaults: cfg.Defaults,
		log:      logger.Named("engine"),
		sessions: make(map[string]*entry),
		meta:     meta,
	}
}

// --- Session lifecycle ---

func (e *Impl) OpenSession(ctx context.Context, req OpenRequest) (terminal.View, error) {
	var pos *position.Entity
	symbolID := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.PositionID != "" {
		p, err := e.lookupPosition(ctx, req.PositionID)
		if err != nil {
			return terminal.View{}, err
		}
		if symbolID != "" && !strings.EqualFold(symbolID, p.Symbol) {
			return terminal.View{}, fmt.Errorf("%w: %s vs %s", ErrSymbolMismatch, p.Symbol, symbolID)
		}
		symbolID = p.Symbol
		pos = &p
	}
	if e.catalog == nil {
		return terminal.View{}, fmt.Errorf("%w: %s", symbols.ErrUnknownSymbol, symbolID)
	}
	sym, err := e.catalog.Get(symbolID)
	if err != nil {
		return terminal.View{}, err
	}

	leverage := req.Leverage
	if leverage <= 0 && pos != nil {
		leverage = pos.Leverage
	}

	id := uuid.NewString()
	s := terminal.NewSession(terminal.Options{
		ID:       id,
		Symbol:   sym,
		Leverage: leverage,
		Prices:   e.prices,
		Position: pos,
		Defaults: e.defaults,
	})

	sctx, cancel := context.WithCancel(context.Background())
	ent := &entry{session: s, openedAt: time.Now(), cancel: cancel}
	if pos != nil {
		ent.positionID = pos.ID
	}
	e.watch(sctx, ent)

	e.mu.Lock()
	e.sessions[id] = ent
	e.mu.Unlock()

	e.metrics.SessionOpened()
	e.log.Info(i18n.Format("SessionOpened", id, sym.ID, ent.positionID))
	return s.View(), nil
}

// lookupPosition prefers the in-memory snapshot and falls back to a refresh.
func (e *Impl) lookupPosition(ctx context.Context, id string) (position.Entity, error) {
	if p, err := e.stateMgr.Position(id); err == nil {
		return p, nil
	}
	if e.recon != nil {
		if _, err := e.recon.Refresh(ctx, id); err == nil {
			if p, err := e.stateMgr.Position(id); err == nil {
				return p, nil
			}
		} else if !errors.Is(err, db.ErrNotFound) {
			return position.Entity{}, err
		}
	}
	return position.Entity{}, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
}

// watch drains ticks and position changes into the session until ctx ends.
func (e *Impl) watch(ctx context.Context, ent *entry) {
	ticks, unsubTicks := e.bus.Subscribe(events.EventPriceTick, 64)
	changes, unsubChanges := e.bus.SubscribeLatest(events.EventPositionChange)
	s := ent.session
	symbol := s.Symbol().ID

	go func() {
		defer unsubTicks()
		defer unsubChanges()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ticks:
				if !ok {
					return
				}
				t, ok := msg.(events.PriceTick)
				if !ok || !strings.EqualFold(t.Symbol, symbol) {
					continue
				}
				if s.OnPriceTick(t.Price, t.Timestamp) {
					e.notify(s.ID(), ReasonTick)
				}
			case _, ok := <-changes:
				if !ok {
					return
				}
				if ent.positionID == "" {
					continue
				}
				// the slot only signals a change; the state manager holds the newest snapshot
				p, err := e.stateMgr.Position(ent.positionID)
				if err != nil || !s.Supersedes(p) {
					continue
				}
				e.applyToSession(s, p)
			}
		}
	}()
}

func (e *Impl) applyToSession(s *terminal.Session, p position.Entity) {
	if err := s.ApplyPosition(p); err != nil {
		if errors.Is(err, terminal.ErrStaleSnapshot) {
			e.log.Debug(i18n.Format("SessionPositionStale", s.ID(), p.Version))
			return
		}
		e.log.Warn("apply position", zap.String("session", s.ID()), zap.Error(err))
		return
	}
	e.notify(s.ID(), ReasonPosition)
}

func (e *Impl) notify(id, reason string) {
	e.bus.Publish(events.EventSessionUpdate, events.SessionUpdate{SessionID: id, Reason: reason})
}

func (e *Impl) get(id string) (*entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ent, nil
}

func (e *Impl) Session(ctx context.Context, id string) (terminal.View, error) {
	ent, err := e.get(id)
	if err != nil {
		return terminal.View{}, err
	}
	return ent.session.View(), nil
}

func (e *Impl) ListSessions(ctx context.Context) []SessionInfo {
	e.mu.RLock()
	out := make([]SessionInfo, 0, len(e.sessions))
	for id, ent := range e.sessions {
		out = append(out, SessionInfo{
			ID:         id,
			Symbol:     ent.session.Symbol().ID,
			PositionID: ent.positionID,
			ReadOnly:   ent.session.ReadOnly(),
			Errors:     ent.session.ErrorCount(),
			OpenedAt:   ent.openedAt,
		})
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

func (e *Impl) CloseSession(ctx context.Context, id string) error {
	e.mu.Lock()
	ent, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	ent.cancel()
	e.metrics.SessionClosed()
	e.notify(id, ReasonClosed)
	e.log.Info(i18n.Format("SessionClosed", id))
	return nil
}

// Close ends every session; used on shutdown.
func (e *Impl) Close() {
	e.mu.Lock()
	all := e.sessions
	e.sessions = make(map[string]*entry)
	e.mu.Unlock()
	for id, ent := range all {
		ent.cancel()
		e.metrics.SessionClosed()
		e.notify(id, ReasonClosed)
	}
}

// --- Draft editing ---

func (e *Impl) Edit(ctx context.Context, id, key, value string) (EditResult, error) {
	ent, err := e.get(id)
	if err != nil {
		return EditResult{}, err
	}
	s := ent.session
	timer := e.metrics.EditTimer()
	err = s.Edit(key, value)
	timer.Stop()
	if err != nil {
		return EditResult{}, err
	}

	if panel, err := s.PanelOf(key); err == nil {
		e.metrics.FieldEdited(string(panel))
	}
	field := terminal.FieldView{Key: key}
	field.Value, _ = s.Value(key)
	if fe, _ := s.FieldError(key); fe != nil {
		e.metrics.FieldFailed(string(fe.Kind))
		field.Error = fe
		field.Message = fe.Message()
	}
	e.notify(id, ReasonEdit)
	return EditResult{View: s.View(), Field: field}, nil
}

func (e *Impl) TogglePanel(ctx context.Context, id string, panel terminal.PanelName) (terminal.View, error) {
	ent, err := e.get(id)
	if err != nil {
		return terminal.View{}, err
	}
	st, err := ent.session.TogglePanel(panel)
	if err != nil {
		return terminal.View{}, err
	}
	key := "PanelCollapsed"
	if st == terminal.Expanded {
		key = "PanelExpanded"
	}
	e.log.Debug(i18n.Format(key, id, panel))
	e.notify(id, ReasonEdit)
	return ent.session.View(), nil
}

func (e *Impl) AddTarget(ctx context.Context, id, group string) (terminal.View, error) {
	ent, err := e.get(id)
	if err != nil {
		return terminal.View{}, err
	}
	if _, err := ent.session.AddTarget(group); err != nil {
		return terminal.View{}, err
	}
	e.notify(id, ReasonEdit)
	return ent.session.View(), nil
}

// RemoveTarget drops the boundary target, or the addressed one when target is set.
func (e *Impl) RemoveTarget(ctx context.Context, id, group string, target *int) (terminal.View, error) {
	ent, err := e.get(id)
	if err != nil {
		return terminal.View{}, err
	}
	if target == nil {
		err = ent.session.RemoveTarget(group)
	} else {
		var tid position.TargetID
		tid, err = position.TargetIDFromExternal(*target)
		if err != nil {
			return terminal.View{}, fmt.Errorf("%w: %v", terminal.ErrUnknownTarget, err)
		}
		err = ent.session.RemoveTargetID(group, tid)
	}
	if err != nil {
		return terminal.View{}, err
	}
	e.notify(id, ReasonEdit)
	return ent.session.View(), nil
}

func (e *Impl) Assemble(ctx context.Context, id string) (terminal.Payload, error) {
	ent, err := e.get(id)
	if err != nil {
		return terminal.Payload{}, err
	}
	s := ent.session
	timer := e.metrics.AssembleTimer()
	payload, err := s.Assemble()
	timer.Stop()
	if err != nil {
		if errors.Is(err, terminal.ErrInvalidDraft) {
			e.metrics.Payload(monitor.PayloadRejected)
			e.log.Info(i18n.Format("PayloadRejected", id, s.ErrorCount()))
		}
		return terminal.Payload{}, err
	}

	e.metrics.Payload(monitor.PayloadAssembled)
	e.log.Info(i18n.Format("PayloadAssembled", id, len(payload.DCATargets), len(payload.TakeProfitTargets), len(payload.ReduceTargets)))
	if e.queries != nil {
		body, err := sonic.Marshal(payload)
		if err != nil {
			return terminal.Payload{}, fmt.Errorf("encode payload: %w", err)
		}
		rec := db.PayloadRecord{
			SessionID:       id,
			PositionID:      payload.PositionID,
			PositionVersion: payload.PositionVersion,
			Symbol:          payload.Symbol,
			Body:            body,
		}
		if e.writer != nil {
			e.writer.Write(rec)
		} else if _, err := e.queries.InsertPayload(ctx, rec); err != nil {
			e.log.Warn("store payload", zap.String("session", id), zap.Error(err))
		}
	}
	return payload, nil
}

func (e *Impl) Payloads(ctx context.Context, id string, limit int) ([]PayloadInfo, error) {
	if _, err := e.get(id); err != nil {
		return nil, err
	}
	if e.queries == nil {
		return nil, nil
	}
	if e.writer != nil {
		// a failed batch is already logged and dropped
		_ = e.writer.Flush(ctx)
	}
	recs, err := e.queries.ListPayloads(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	out := make([]PayloadInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, PayloadInfo{
			ID:              r.ID,
			PositionID:      r.PositionID,
			PositionVersion: r.PositionVersion,
			Payload:         r.Body,
			CreatedAt:       r.CreatedAt,
		})
	}
	return out, nil
}

// --- Positions ---

// RefreshPosition refetches the session's position and applies the newest
// snapshot known to the state manager before returning the view.
func (e *Impl) RefreshPosition(ctx context.Context, id string) (terminal.View, error) {
	ent, err := e.get(id)
	if err != nil {
		return terminal.View{}, err
	}
	if ent.positionID == "" {
		return terminal.View{}, ErrNoPosition
	}
	if e.recon != nil {
		if _, err := e.recon.Refresh(ctx, ent.positionID); err != nil {
			return terminal.View{}, err
		}
	}
	latest, err := e.stateMgr.Position(ent.positionID)
	if err != nil {
		return terminal.View{}, fmt.Errorf("%w: %s", ErrPositionNotFound, ent.positionID)
	}
	e.applyToSession(ent.session, latest)
	return ent.session.View(), nil
}

// ApplyPosition ingests a snapshot pushed by the position service.
func (e *Impl) ApplyPosition(ctx context.Context, p position.Entity) (bool, error) {
	applied, err := e.stateMgr.Apply(ctx, p)
	if err != nil {
		return false, err
	}
	if applied {
		e.metrics.PositionRefresh(monitor.RefreshApplied)
	} else {
		e.metrics.PositionRefresh(monitor.RefreshStale)
	}
	return applied, nil
}

// Updates streams a fresh view whenever the session changes. Slow readers miss
// intermediate views, never the latest one. The channel closes with the session.
func (e *Impl) Updates(ctx context.Context, id string) (<-chan terminal.View, func(), error) {
	ent, err := e.get(id)
	if err != nil {
		return nil, nil, err
	}
	src, unsub := e.bus.Subscribe(events.EventSessionUpdate, 32)
	out := make(chan terminal.View, 1)
	wctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() { once.Do(cancel) }

	go func() {
		defer close(out)
		defer unsub()
		for {
			select {
			case <-wctx.Done():
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				u, ok := msg.(events.SessionUpdate)
				if !ok || u.SessionID != id {
					continue
				}
				if _, err := e.get(id); err != nil {
					return
				}
				v := ent.session.View()
				select {
				case <-out:
				default:
				}
				out <- v
			}
		}
	}()
	return out, stop, nil
}

// --- Symbols and system ---

func (e *Impl) Symbols(ctx context.Context) []SymbolInfo {
	if e.catalog == nil {
		return nil
	}
	list := e.catalog.List()
	out := make([]SymbolInfo, 0, len(list))
	for _, s := range list {
		info := SymbolInfo{Symbol: s}
		if t, ok := e.prices.Latest(s.ID); ok {
			at := t.At
			info.LastPrice = t.Price
			info.PriceAt = &at
		}
		out = append(out, info)
	}
	return out
}

func (e *Impl) GetSystemStatus(ctx context.Context) *SystemStatus {
	e.mu.RLock()
	n := len(e.sessions)
	e.mu.RUnlock()

	st := e.meta
	st.Uptime = time.Since(st.StartedAt).Truncate(time.Second).String()
	st.Sessions = n
	st.Positions = len(e.stateMgr.Positions())
	st.StaleSnapshots = e.stateMgr.StaleCount()
	st.CachedPrices = e.prices.Len()
	if e.writer != nil {
		st.PayloadWriter = &PayloadWriterStatus{
			Pending:            e.writer.Pending(),
			BatchWriterMetrics: e.writer.GetMetrics(),
		}
	}
	return &st
}
