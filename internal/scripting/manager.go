package scripting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/game/dice"
)

// EntryPoint is the global function every generator script must define. It
// receives the request parameters as a table and returns the generated value.
const EntryPoint = "generate"

var (
	// ErrUnknownGenerator reports a generator name with no loaded script.
	ErrUnknownGenerator = errors.New("scripting: unknown generator")
	// ErrScript reports a script that failed to load or raised at runtime.
	ErrScript = errors.New("scripting: script failed")
)

// generator is one loaded script and its VM. The VM is single-threaded: mu
// serialises every call, and roller is rebound to the caller's Source for the
// duration of that call.
type generator struct {
	mu     sync.Mutex
	name   string
	L      *lua.LState
	cancel context.CancelFunc
	roller *dice.Roller
	// callErr is the typed error a module raised during the current call.
	callErr error
}

// Manager owns one sandboxed LState per generator script.
//
// Manager is safe for concurrent Generate calls. Calls to the same generator
// are serialised; different generators run concurrently.
type Manager struct {
	mu        sync.RWMutex
	gens      map[string]*generator
	lib       *content.Library
	logger    *zap.Logger
	instLimit int
	maxSample int
}

// DefaultMaxSample caps engine.table.sample when NewManager is given no limit.
const DefaultMaxSample = 100

// NewManager creates a Manager whose engine.* modules read from lib.
//
// Precondition: lib and logger must be non-nil; instLimit <= 0 uses
// DefaultInstructionLimit; maxSample <= 0 uses DefaultMaxSample.
// Postcondition: Returns a non-nil Manager with no generators loaded.
func NewManager(lib *content.Library, logger *zap.Logger, instLimit, maxSample int) *Manager {
	if lib == nil {
		panic("scripting: NewManager requires a non-nil content library")
	}
	if logger == nil {
		panic("scripting: NewManager requires a non-nil logger")
	}
	if maxSample <= 0 {
		maxSample = DefaultMaxSample
	}
	return &Manager{
		gens:      make(map[string]*generator),
		lib:       lib,
		logger:    logger,
		instLimit: instLimit,
		maxSample: maxSample,
	}
}

// LoadLibrary loads every script in the manager's content library, in name
// order. Loading stops at the first failure.
func (m *Manager) LoadLibrary() error {
	for _, name := range m.lib.ScriptNames() {
		if err := m.Load(name, m.lib.Scripts[name]); err != nil {
			return err
		}
	}
	return nil
}

// Load creates a sandboxed VM for name, registers all engine.* modules and
// executes source. A previously loaded generator with the same name is
// replaced.
//
// Precondition: name must be non-empty.
// Postcondition: the generator is registered, or an error wrapping ErrScript
// is returned when source fails to execute or does not define EntryPoint.
func (m *Manager) Load(name, source string) error {
	L, cancel := NewSandboxedState(m.instLimit)
	g := &generator{name: name, L: L, cancel: cancel}
	m.registerModules(L, g)

	if err := L.DoString(source); err != nil {
		g.close()
		return fmt.Errorf("%w: loading %q: %v", ErrScript, name, err)
	}
	if _, ok := L.GetGlobal(EntryPoint).(*lua.LFunction); !ok {
		g.close()
		return fmt.Errorf("%w: %q does not define function %s", ErrScript, name, EntryPoint)
	}

	m.mu.Lock()
	if old, ok := m.gens[name]; ok {
		old.mu.Lock()
		old.close()
		old.mu.Unlock()
	}
	m.gens[name] = g
	m.mu.Unlock()
	m.logger.Debug("generator loaded", zap.String("generator", name))
	return nil
}

// Names returns the loaded generator names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.gens))
	for n := range m.gens {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Generate runs the named generator's EntryPoint with params and returns its
// result converted to Go values: tables become map[string]any or []any,
// numbers become int64 when integral and float64 otherwise.
//
// Every draw the script makes comes from src, so a seeded Source replays the
// same output. ctx cancellation and the instruction limit both abort the run.
//
// Precondition: src must be non-nil.
// Postcondition: returns ErrUnknownGenerator for an unloaded name and an error
// wrapping ErrScript for any Lua failure. A request an engine module rejects
// as out of bounds also wraps that module's typed error.
func (m *Manager) Generate(ctx context.Context, name string, params map[string]any, src dice.Source) (any, error) {
	m.mu.RLock()
	g, ok := m.gens[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.L == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
	}

	g.roller = dice.NewLoggedRoller(src, m.logger)
	g.callErr = nil
	defer func() { g.roller, g.callErr = nil, nil }()

	runCtx, cancel := newCountingContext(ctx, m.instLimit)
	defer cancel()
	g.L.SetContext(runCtx)
	defer g.L.RemoveContext()

	arg, err := toLua(g.L, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %q params: %v", ErrScript, name, err)
	}

	start := time.Now()
	if err := g.L.CallByParam(lua.P{
		Fn:      g.L.GetGlobal(EntryPoint),
		NRet:    1,
		Protect: true,
	}, arg); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("generator", name),
			zap.Error(err),
		)
		if g.callErr != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrScript, name, g.callErr)
		}
		return nil, fmt.Errorf("%w: %q: %v", ErrScript, name, err)
	}
	ret := g.L.Get(-1)
	g.L.Pop(1)

	out, err := fromLua(ret)
	if err != nil {
		return nil, fmt.Errorf("%w: %q result: %v", ErrScript, name, err)
	}
	m.logger.Debug("generator run",
		zap.String("generator", name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// Close releases every VM. The Manager must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, g := range m.gens {
		g.mu.Lock()
		g.close()
		g.mu.Unlock()
		delete(m.gens, name)
	}
}

func (g *generator) close() {
	if g.L == nil {
		return
	}
	g.cancel()
	g.L.Close()
	g.L = nil
}
