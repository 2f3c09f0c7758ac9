package permission

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"loom/pkg/logger"
)

// Gate is the permission gate. Checks classify the request, consult the
// allow lists and the approval mode, and escalate to the approver only
// when neither decides.
type Gate struct {
	mu sync.RWMutex

	mode Mode

	// readPaths are prefixes under which reads are always granted. Writes
	// under them are granted only in auto-edit mode.
	readPaths []string

	// writePaths are prefixes under which writes are granted regardless of
	// mode. Populated by remembered write approvals.
	writePaths []string

	commands map[string]bool
	hosts    map[string]bool

	approver Approver
	store    Store
	log      zerolog.Logger
}

// Config configures a Gate.
type Config struct {
	Mode Mode

	// WorkDir seeds the path allow list. Required.
	WorkDir string

	AllowPaths    []string
	AllowCommands []string
	AllowHosts    []string

	// Approver handles escalations. A nil approver refuses everything
	// policy does not grant.
	Approver Approver

	// Store persists remembered approvals. Optional.
	Store Store
}

// NewGate creates a gate seeded with the working directory and any
// configured allow-list entries, then overlays persisted entries from the
// store.
func NewGate(cfg Config) (*Gate, error) {
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("permission gate requires a working directory")
	}
	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeSuggest
	}

	g := &Gate{
		mode:      mode,
		readPaths: []string{workDir},
		commands:  make(map[string]bool),
		hosts:     make(map[string]bool),
		approver:  cfg.Approver,
		store:     cfg.Store,
		log:       logger.Component("permission"),
	}

	for _, p := range cfg.AllowPaths {
		g.addLocked(Entry{Kind: KindRead, Value: p})
	}
	for _, c := range cfg.AllowCommands {
		g.addLocked(Entry{Kind: KindExecute, Value: c})
	}
	for _, h := range cfg.AllowHosts {
		g.addLocked(Entry{Kind: KindFetch, Value: h})
	}

	if cfg.Store != nil {
		entries, err := cfg.Store.LoadEntries()
		if err != nil {
			return nil, fmt.Errorf("load persisted allow list: %w", err)
		}
		for _, e := range entries {
			g.addLocked(e)
		}
	}

	return g, nil
}

// Mode returns the current approval mode.
func (g *Gate) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// SetMode changes the approval mode.
func (g *Gate) SetMode(m Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = m
}

// Check decides one request. It never returns an allowed decision for a
// request it could not classify.
func (g *Gate) Check(ctx context.Context, req Request) (Decision, error) {
	key := g.normalize(req)
	if key == "" {
		g.log.Warn().Str("kind", string(req.Kind)).Str("target", req.Target).
			Msg("Refusing unclassifiable target")
		return g.decision(false, "unclassifiable target", key, false), nil
	}

	if d, ok := g.checkPolicy(req.Kind, key); ok {
		return d, nil
	}

	return g.escalate(ctx, req, key)
}

// checkPolicy applies the allow lists and the mode. The second return
// value reports whether policy decided; false means escalate.
func (g *Gate) checkPolicy(kind Kind, key string) (Decision, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.mode == ModeFullAuto {
		return g.decision(true, "mode full-auto", key, false), true
	}

	switch kind {
	case KindRead:
		if matchPath(key, g.readPaths) || matchPath(key, g.writePaths) {
			return g.decision(true, "allow-list path", key, false), true
		}

	case KindWrite:
		if matchPath(key, g.writePaths) {
			return g.decision(true, "allow-list path", key, false), true
		}
		if g.mode == ModeAutoEdit && matchPath(key, g.readPaths) {
			return g.decision(true, "mode auto-edit", key, false), true
		}

	case KindExecute:
		if isReadOnlyCommand(key) {
			return g.decision(true, "read-only command", key, false), true
		}
		if g.commands[key] {
			return g.decision(true, "allow-list command", key, false), true
		}

	case KindFetch:
		if g.hosts[key] {
			return g.decision(true, "allow-list host", key, false), true
		}
	}

	return Decision{}, false
}

// escalate asks the approver. An approval with remember set memoizes the
// key; a denial decides this request only and is never memoized.
func (g *Gate) escalate(ctx context.Context, req Request, key string) (Decision, error) {
	g.mu.RLock()
	approver := g.approver
	g.mu.RUnlock()

	if approver == nil {
		g.log.Warn().Str("kind", string(req.Kind)).Str("key", key).
			Msg("No approver configured, refusing")
		return g.decision(false, "no approver available", key, false), nil
	}

	verdict, err := approver.Approve(ctx, req)
	if err != nil {
		return g.decision(false, "approval failed", key, false), fmt.Errorf("approval: %w", err)
	}

	if !verdict.Allow {
		g.log.Info().Str("kind", string(req.Kind)).Str("key", key).
			Str("tool", req.Tool).Msg("Request denied by approver")
		return g.decision(false, "denied", key, false), nil
	}

	remembered := false
	if verdict.Remember {
		g.AddToAllowList(req.Kind, key)
		remembered = true
	}

	g.log.Info().Str("kind", string(req.Kind)).Str("key", key).
		Bool("remembered", remembered).Msg("Request approved")
	return g.decision(true, "approved", key, remembered), nil
}

// AddToAllowList memoizes a normalized key for a kind and persists it when
// a store is configured.
func (g *Gate) AddToAllowList(kind Kind, value string) {
	g.mu.Lock()
	e := Entry{Kind: kind, Value: value}
	g.addLocked(e)
	store := g.store
	g.mu.Unlock()

	if store != nil {
		if err := store.SaveEntry(e); err != nil {
			g.log.Warn().Err(err).Str("kind", string(kind)).Str("value", value).
				Msg("Failed to persist allow-list entry")
		}
	}
}

// Seed inserts an entry without persisting it. Used for policy-file
// entries, which already live on disk.
func (g *Gate) Seed(e Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addLocked(e)
}

// addLocked inserts an entry. Caller holds the lock (or has exclusive
// access during construction).
func (g *Gate) addLocked(e Entry) {
	switch e.Kind {
	case KindRead:
		if p, err := filepath.Abs(expandPath(e.Value)); err == nil {
			g.readPaths = append(g.readPaths, p)
		}
	case KindWrite:
		if p, err := filepath.Abs(expandPath(e.Value)); err == nil {
			g.writePaths = append(g.writePaths, p)
		}
	case KindExecute:
		if key := commandKey(e.Value); key != "" {
			g.commands[key] = true
		}
	case KindFetch:
		if e.Value != "" {
			g.hosts[e.Value] = true
		}
	}
}

// Entries snapshots the current allow lists.
func (g *Gate) Entries() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Entry
	for _, p := range g.readPaths {
		out = append(out, Entry{Kind: KindRead, Value: p})
	}
	for _, p := range g.writePaths {
		out = append(out, Entry{Kind: KindWrite, Value: p})
	}
	for c := range g.commands {
		out = append(out, Entry{Kind: KindExecute, Value: c})
	}
	for h := range g.hosts {
		out = append(out, Entry{Kind: KindFetch, Value: h})
	}
	return out
}

// normalize derives the allow-list key for a request.
func (g *Gate) normalize(req Request) string {
	switch req.Kind {
	case KindRead, KindWrite:
		if req.Target == "" {
			return ""
		}
		p, err := filepath.Abs(expandPath(req.Target))
		if err != nil {
			return ""
		}
		return p
	case KindExecute:
		return commandKey(req.Target)
	case KindFetch:
		return hostKey(req.Target)
	default:
		return ""
	}
}

func (g *Gate) decision(allowed bool, reason, key string, remembered bool) Decision {
	return Decision{
		Allowed:    allowed,
		Reason:     reason,
		Key:        key,
		Remembered: remembered,
		DecidedAt:  time.Now(),
	}
}
