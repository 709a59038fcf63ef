// Package session owns one ledger and everything that acts on it. A Session
// is single-threaded: either run its event loop with Run and talk to it
// through Submit, or drive it directly from one goroutine via a Bus.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scrapyard.dev/internal/catalogs"
	"scrapyard.dev/internal/cfgnode"
	"scrapyard.dev/internal/display"
	"scrapyard.dev/internal/gate"
	"scrapyard.dev/internal/ledger"
	"scrapyard.dev/internal/pricing"
	"scrapyard.dev/internal/protocol"
	"scrapyard.dev/internal/settlement"
	"scrapyard.dev/internal/tuning"
	"scrapyard.dev/internal/vessel"
)

type Config struct {
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs

	// Optional collaborators. Nil selects the in-memory defaults.
	Splitter pricing.CostSplitter
	Treasury settlement.Treasury
	Tech     gate.TechGate
}

type Session struct {
	id  string
	log *zap.Logger

	cats     *catalogs.Catalogs
	tun      tuning.Tuning
	summary  bool
	ledger   *ledger.Ledger
	pricer   *pricing.Pricer
	settler  *settlement.Settler
	treasury settlement.Treasury
	research *gate.StaticGate
	tech     gate.TechGate

	inbox  chan Envelope
	reload chan tuning.Tuning
	stop   chan struct{}

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	settlementLogger SettlementLogger
	index            Index
	saveSink         chan<- SaveEntry

	deregister func()
	stats      stats
}

func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.Catalogs == nil {
		return nil, errors.New("session: catalogs are required")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger = logger.With(zap.String("session", id))

	s := &Session{
		id:       id,
		log:      logger,
		cats:     cfg.Catalogs,
		tun:      cfg.Tuning,
		summary:  cfg.Tuning.SummaryMode(),
		ledger:   ledger.New(),
		research: gate.NewStaticGate(),
		treasury: cfg.Treasury,
		tech:     cfg.Tech,
		inbox:    make(chan Envelope, 256),
		reload:   make(chan tuning.Tuning, 1),
		stop:     make(chan struct{}),
	}
	if s.treasury == nil {
		s.treasury = settlement.NewFunds(0)
	}
	if s.tech == nil {
		s.tech = s.research
	}
	s.pricer = pricing.New(cfg.Catalogs, cfg.Splitter)
	s.pricer.SetScaleExponent(cfg.Tuning.Pricing.ScaleExponent)
	s.settler = settlement.New(s.ledger, s.pricer, cfg.Tuning.Settlement(), logger.Named("settlement"))
	return s, nil
}

func (s *Session) ID() string             { return s.id }
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }
func (s *Session) Tuning() tuning.Tuning  { return s.tun }

func (s *Session) SetSettlementLogger(l SettlementLogger) { s.settlementLogger = l }
func (s *Session) SetIndex(ix Index)                      { s.index = ix }
func (s *Session) SetSaveSink(ch chan<- SaveEntry)        { s.saveSink = ch }

// Balance reports the treasury balance when the treasury can tell.
func (s *Session) Balance() (float64, bool) {
	b, ok := s.treasury.(interface{ Balance() float64 })
	if !ok {
		return 0, false
	}
	return b.Balance(), true
}

// Envelope is one request for the event loop. Reply receives exactly one
// value: a protocol response message or a *protocol.Error.
type Envelope struct {
	ConnID string
	Msg    any
	Reply  chan<- any
}

func (s *Session) Inbox() chan<- Envelope { return s.inbox }

// Reload queues a tuning change for the event loop. A pending change that
// has not been applied yet is replaced.
func (s *Session) Reload(t tuning.Tuning) {
	for {
		select {
		case s.reload <- t:
			return
		default:
		}
		select {
		case <-s.reload:
		default:
		}
	}
}

func (s *Session) Run(ctx context.Context) error {
	s.log.Info("session loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case env := <-s.inbox:
			resp := s.dispatch(env)
			if env.Reply != nil {
				select {
				case env.Reply <- resp:
				default:
				}
			}
		case t := <-s.reload:
			s.ApplyTuning(t)
		}
	}
}

func (s *Session) Stop() { close(s.stop) }

// Submit hands msg to the event loop and waits for its reply.
func (s *Session) Submit(ctx context.Context, connID string, msg any) (any, error) {
	reply := make(chan any, 1)
	select {
	case s.inbox <- Envelope{ConnID: connID, Msg: msg, Reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		if perr, ok := r.(*protocol.Error); ok {
			return nil, perr
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ApplyTuning switches to new settings. The ledger is untouched, and a
// toggled summary view survives unless resource_display itself changed.
func (s *Session) ApplyTuning(t tuning.Tuning) {
	if t.ResourceDisplay != s.tun.ResourceDisplay {
		s.summary = t.SummaryMode()
	}
	s.tun = t
	s.pricer.SetScaleExponent(t.Pricing.ScaleExponent)
	s.settler.SetConfig(t.Settlement())
	s.log.Info("tuning applied",
		zap.Bool("recover_resources", t.RecoverResources),
		zap.String("resource_display", t.ResourceDisplay),
		zap.Float64("scale_exponent", t.Pricing.ScaleExponent),
	)
}

// Rollout settles a vessel leaving the assembly building.
func (s *Session) Rollout(v *vessel.Snapshot) (settlement.Result, error) {
	if err := v.Validate(); err != nil {
		s.stats.errors.Add(1)
		return settlement.Result{}, err
	}
	res := s.settler.Rollout(v, s.treasury)
	s.stats.rollouts.Add(1)
	s.afterSettlement(res)
	return res, nil
}

// Recover settles a recovered vessel. A nil factor is derived from where
// the vessel came down.
func (s *Session) Recover(v *vessel.Snapshot, factor *float64) (settlement.Result, error) {
	if err := v.Validate(); err != nil {
		s.stats.errors.Add(1)
		return settlement.Result{}, err
	}
	f := s.tun.Curve().Factor(v.LandedAt, v.Latitude, v.Longitude)
	if factor != nil {
		f = *factor
	}
	res := s.settler.Recover(v, f, s.treasury)
	s.stats.recoveries.Add(1)
	s.afterSettlement(res)
	return res, nil
}

func (s *Session) Preview(v *vessel.Snapshot) (settlement.Estimate, error) {
	if err := v.Validate(); err != nil {
		return settlement.Estimate{}, err
	}
	return s.settler.Preview(v), nil
}

func (s *Session) afterSettlement(res settlement.Result) {
	s.stats.observe(s.ledger)
	bal, _ := s.Balance()
	entry := SettlementEntry{SessionID: s.id, At: time.Now().UTC(), Result: res, Balance: bal}
	if s.settlementLogger != nil {
		if err := s.settlementLogger.WriteSettlement(entry); err != nil {
			s.log.Warn("settlement journal write failed", zap.String("result", res.ID), zap.Error(err))
		}
	}
	if s.index != nil {
		s.index.RecordSettlement(entry)
	}
}

// SaveInto writes the ledger section under root, replacing any section an
// earlier save left there.
func (s *Session) SaveInto(root *cfgnode.Node) {
	root.RemoveNodes(ledger.RootSection)
	ledger.Encode(s.ledger, root)
	s.stats.saves.Add(1)
}

// Save encodes the ledger as save-node text and hands a copy to the save
// sink, if any. slot names the save game.
func (s *Session) Save(slot string) []byte {
	root := cfgnode.New("")
	s.SaveInto(root)
	text := cfgnode.Marshal(root)

	if s.saveSink != nil {
		entry := SaveEntry{
			SessionID: s.id,
			Slot:      slot,
			At:        time.Now().UTC(),
			Node:      text,
			Parts:     s.ledger.Parts.Len(),
			Resources: s.ledger.Resources.Len(),
		}
		select {
		case s.saveSink <- entry:
		default:
			s.log.Warn("save sink full, dropping save copy", zap.String("slot", slot))
		}
	}
	return text
}

// Load replaces the ledger with the section under root. When the section is
// missing the ledger keeps its previous content. A successful load is
// journaled with the decoded ledger so replay can start over from it.
func (s *Session) Load(root *cfgnode.Node) (ledger.DecodeStats, error) {
	st, err := ledger.Decode(root, s.ledger)
	if err != nil {
		s.stats.errors.Add(1)
		s.log.Error("ledger load aborted", zap.Error(err))
		return st, err
	}
	s.stats.loads.Add(1)
	s.stats.observe(s.ledger)
	if s.settlementLogger != nil {
		bal, _ := s.Balance()
		entry := SettlementEntry{
			SessionID: s.id,
			At:        time.Now().UTC(),
			Balance:   bal,
			Load: &LedgerImage{
				Parts:     s.ledger.Parts.Snapshot(),
				Resources: s.ledger.Resources.Snapshot(),
			},
		}
		if err := s.settlementLogger.WriteSettlement(entry); err != nil {
			s.log.Warn("load journal write failed", zap.Error(err))
		}
	}
	s.log.Info("ledger loaded",
		zap.Int("parts", st.Parts),
		zap.Int("resources", st.Resources),
		zap.Int("dropped", st.Dropped),
	)
	return st, nil
}

func (s *Session) SetResearch(techs []string) { s.research.Replace(techs) }

func (s *Session) SetResourceDisplay(mode string) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case tuning.DisplayDetail:
		s.summary = false
	case tuning.DisplaySummary:
		s.summary = true
	default:
		return fmt.Errorf("unknown resource display %q", mode)
	}
	return nil
}

func (s *Session) ResourceDisplay() string {
	if s.summary {
		return tuning.DisplaySummary
	}
	return tuning.DisplayDetail
}

func (s *Session) rules() gate.Rules {
	return gate.Rules{
		Parts:            &s.cats.Parts,
		Ledger:           s.ledger,
		Tech:             s.tech,
		RecoverResources: s.tun.RecoverResources,
		Summary:          s.summary,
	}
}

// Counters builds the part list lines for names against the vessel being
// assembled (nil when none).
func (s *Session) Counters(v *vessel.Snapshot, names []string) []protocol.Entry {
	rules := s.rules()
	board := display.Board{Ledger: s.ledger, Pricer: s.pricer}
	formats := display.Formats{
		Qty:         s.tun.Display.QtyFormat,
		MissingQty:  s.tun.Display.MissingQtyFormat,
		Tank:        s.tun.Display.TankFormat,
		TankMissing: s.tun.Display.TankMissingFormat,
	}

	out := make([]protocol.Entry, 0, len(names))
	for _, name := range names {
		vis := rules.Visible(name)
		e := protocol.Entry{Name: name, Visible: vis.Visible, Experimental: vis.Experimental}
		switch {
		case name == gate.FolderName:
			e.Text = formats.RenderFolder(board.Folder(v, s.tun.Display.SummaryResources))
		case s.pricer.IsResource(name):
			c := board.Resource(v, name)
			e.Counter, e.Text = &c, formats.Render(c)
		default:
			c := board.Part(v, name)
			e.Counter, e.Text = &c, formats.Render(c)
		}
		out = append(out, e)
	}
	return out
}

func (s *Session) Placement(v *vessel.Snapshot, heldRoot int) (gate.Placement, error) {
	if err := v.Validate(); err != nil {
		return gate.Placement{}, err
	}
	if heldRoot < 0 || heldRoot >= len(v.Parts) {
		return gate.Placement{}, fmt.Errorf("%w: held_root=%d", vessel.ErrBadParent, heldRoot)
	}
	p := s.rules().CheckPlacement(v, heldRoot)
	if !p.Allowed {
		s.log.Info("held selection exceeds stock", zap.Int("shortfalls", len(p.Shortfalls)))
	}
	return p, nil
}

// LedgerState is a read-only copy of the session for admin views.
type LedgerState struct {
	SessionID        string             `json:"session_id"`
	Parts            map[string]float64 `json:"parts"`
	Resources        map[string]float64 `json:"resources"`
	Balance          *float64           `json:"balance,omitempty"`
	RecoverResources bool               `json:"recover_resources"`
	ResourceDisplay  string             `json:"resource_display"`
	Research         []string           `json:"research"`
}

type stateRequest struct{}

func (s *Session) State() LedgerState {
	st := LedgerState{
		SessionID:        s.id,
		Parts:            s.ledger.Parts.Snapshot(),
		Resources:        s.ledger.Resources.Snapshot(),
		RecoverResources: s.tun.RecoverResources,
		ResourceDisplay:  s.ResourceDisplay(),
		Research:         s.research.Techs(),
	}
	if b, ok := s.Balance(); ok {
		st.Balance = &b
	}
	return st
}

// QueryState asks the event loop for a LedgerState.
func (s *Session) QueryState(ctx context.Context) (LedgerState, error) {
	r, err := s.Submit(ctx, "admin", stateRequest{})
	if err != nil {
		return LedgerState{}, err
	}
	st, _ := r.(LedgerState)
	return st, nil
}

type stats struct {
	rollouts   atomic.Uint64
	recoveries atomic.Uint64
	saves      atomic.Uint64
	loads      atomic.Uint64
	errors     atomic.Uint64

	partKeys       atomic.Int64
	resourceKeys   atomic.Int64
	partUnits      atomic.Uint64
	resourceAmount atomic.Uint64
}

func (st *stats) observe(l *ledger.Ledger) {
	st.partKeys.Store(int64(l.Parts.Len()))
	st.resourceKeys.Store(int64(l.Resources.Len()))
	st.partUnits.Store(math.Float64bits(l.Parts.Total()))
	st.resourceAmount.Store(math.Float64bits(l.Resources.Total()))
}

// Stats is safe to read from any goroutine.
type Stats struct {
	Rollouts       uint64
	Recoveries     uint64
	Saves          uint64
	Loads          uint64
	Errors         uint64
	PartKeys       int64
	ResourceKeys   int64
	PartUnits      float64
	ResourceAmount float64
	InboxDepth     int
}

func (s *Session) Stats() Stats {
	return Stats{
		Rollouts:       s.stats.rollouts.Load(),
		Recoveries:     s.stats.recoveries.Load(),
		Saves:          s.stats.saves.Load(),
		Loads:          s.stats.loads.Load(),
		Errors:         s.stats.errors.Load(),
		PartKeys:       s.stats.partKeys.Load(),
		ResourceKeys:   s.stats.resourceKeys.Load(),
		PartUnits:      math.Float64frombits(s.stats.partUnits.Load()),
		ResourceAmount: math.Float64frombits(s.stats.resourceAmount.Load()),
		InboxDepth:     len(s.inbox),
	}
}
