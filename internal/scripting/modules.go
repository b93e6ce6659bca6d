package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/game/encounter"
	"github.com/cory-johannsen/loreforge/internal/game/table"
)

// registerModules registers all engine.* Lua tables into L. Modules that draw
// randomness use the Roller bound to g for the current call; calling them
// outside Generate raises a Lua error.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L with dice, table, name,
// encounter and log sub-tables.
func (m *Manager) registerModules(L *lua.LState, g *generator) {
	engine := L.NewTable()
	L.SetField(engine, "dice", m.diceModule(L, g))
	L.SetField(engine, "table", m.tableModule(L, g))
	L.SetField(engine, "name", m.nameModule(L, g))
	L.SetField(engine, "encounter", m.encounterModule(L))
	L.SetField(engine, "log", m.logModule(L, g))
	L.SetGlobal("engine", engine)
}

// raise records err as the call's typed failure and raises it in L, so
// Generate can report the cause rather than only the Lua message.
func (g *generator) raise(L *lua.LState, err error) {
	g.callErr = err
	L.RaiseError("%s", err.Error())
}

// mustRoller returns the Roller bound for the running call or raises.
func (g *generator) mustRoller(L *lua.LState) *dice.Roller {
	if g.roller == nil {
		L.RaiseError("engine: no dice source bound outside generate()")
	}
	return g.roller
}

func (m *Manager) diceModule(L *lua.LState, g *generator) *lua.LTable {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		// engine.dice.roll(expr) -> {expression, rolls, dice_sum, modifier, total}
		"roll": func(L *lua.LState) int {
			res, err := g.mustRoller(L).RollExpr(L.CheckString(1))
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			rolls := L.CreateTable(len(res.Dice), 0)
			sum := 0
			for _, d := range res.Dice {
				rolls.Append(lua.LNumber(d))
				sum += d
			}
			t := L.NewTable()
			t.RawSetString("expression", lua.LString(res.Expression))
			t.RawSetString("rolls", rolls)
			t.RawSetString("dice_sum", lua.LNumber(sum))
			t.RawSetString("modifier", lua.LNumber(res.Modifier))
			t.RawSetString("total", lua.LNumber(res.Total()))
			L.Push(t)
			return 1
		},
		// engine.dice.parse(expr) -> {count, sides, modifier, notation} | nil, err
		"parse": func(L *lua.LState) int {
			e, err := dice.Parse(L.CheckString(1))
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			t := L.NewTable()
			t.RawSetString("count", lua.LNumber(e.Count))
			t.RawSetString("sides", lua.LNumber(e.Sides))
			t.RawSetString("modifier", lua.LNumber(e.Modifier))
			t.RawSetString("notation", lua.LString(e.String()))
			L.Push(t)
			return 1
		},
		// engine.dice.inline(text) -> text with every dice span rolled
		"inline": func(L *lua.LState) int {
			out, err := g.mustRoller(L).RollInline(L.CheckString(1))
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LString(out))
			return 1
		},
		// engine.dice.between(lo, hi) -> uniform int in [lo, hi]
		"between": func(L *lua.LState) int {
			lo, hi := L.CheckInt(1), L.CheckInt(2)
			if hi < lo {
				L.ArgError(2, "hi must be >= lo")
				return 0
			}
			L.Push(lua.LNumber(dice.Between(g.mustRoller(L).Source(), lo, hi)))
			return 1
		},
	})
	return mod
}

func (m *Manager) tableModule(L *lua.LState, g *generator) *lua.LTable {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		// engine.table.sample(id [, n]) -> array of row tables, n <= the
		// manager's sample limit
		"sample": func(L *lua.LState) int {
			n := L.OptInt(2, 1)
			if n > m.maxSample {
				g.raise(L, fmt.Errorf("%w: sample of %d rows exceeds the limit of %d", table.ErrInvalidCount, n, m.maxSample))
				return 0
			}
			rows, err := m.lib.Sample(L.CheckString(1), n, g.mustRoller(L).Source())
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			out := L.CreateTable(len(rows), 0)
			for _, r := range rows {
				out.Append(rowToTable(L, r))
			}
			L.Push(out)
			return 1
		},
		// engine.table.pick(id) -> one row table
		"pick": func(L *lua.LState) int {
			rows, err := m.lib.Sample(L.CheckString(1), 1, g.mustRoller(L).Source())
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(rowToTable(L, rows[0]))
			return 1
		},
	})
	return mod
}

// rowToTable flattens a content row: every row carries kind and display; the
// payload fields of its kind are set alongside.
func rowToTable(L *lua.LState, r content.Row) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("kind", lua.LString(r.Kind))
	t.RawSetString("display", lua.LString(r.String()))
	switch r.Kind {
	case content.KindText:
		t.RawSetString("text", lua.LString(r.Text))
	case content.KindLoot:
		t.RawSetString("name", lua.LString(r.Loot.Name))
		t.RawSetString("amount", lua.LString(r.Loot.Amount))
	case content.KindRoom:
		t.RawSetString("name", lua.LString(r.Room.Name))
		t.RawSetString("feature", lua.LString(r.Room.Feature))
	case content.KindEncounter:
		t.RawSetString("monster", lua.LString(r.Encounter.Monster))
		t.RawSetString("cr", lua.LString(r.Encounter.CR.String()))
		t.RawSetString("count", lua.LString(r.Encounter.Count))
	}
	return t
}

func (m *Manager) nameModule(L *lua.LState, g *generator) *lua.LTable {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		// engine.name.expand(catalog [, pattern]) -> string
		"expand": func(L *lua.LState) int {
			name, err := m.lib.Name(L.CheckString(1), L.OptString(2, ""), g.mustRoller(L).Source())
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LString(name))
			return 1
		},
	})
	return mod
}

func (m *Manager) encounterModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		// engine.encounter.xp(cr) -> XP for one creature of cr
		"xp": func(L *lua.LState) int {
			cr, err := encounter.ParseCR(L.CheckString(1))
			if err != nil {
				L.ArgError(1, err.Error())
				return 0
			}
			xp, err := encounter.TotalXP([]encounter.Group{{CR: cr, Count: 1}}, m.lib.CRTable)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LNumber(xp))
			return 1
		},
		// engine.encounter.evaluate(monsters, party) -> report table
		// monsters: {{cr="1/4", count=3}, ...}; party: {{level=3, count=4}, ...}
		"evaluate": func(L *lua.LState) int {
			monsters, err := groupsArg(L.CheckTable(1))
			if err != nil {
				L.ArgError(1, err.Error())
				return 0
			}
			party, err := partyArg(L.CheckTable(2))
			if err != nil {
				L.ArgError(2, err.Error())
				return 0
			}
			rep, err := encounter.Evaluate(monsters, party, m.lib.CRTable, m.lib.Thresholds)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			t := L.NewTable()
			t.RawSetString("total_xp", lua.LNumber(rep.TotalXP))
			t.RawSetString("adjusted_xp", lua.LNumber(rep.AdjustedXP))
			t.RawSetString("monsters", lua.LNumber(rep.Monsters))
			t.RawSetString("tier", lua.LString(rep.Tier.String()))
			th := L.NewTable()
			for _, tier := range encounter.Tiers() {
				th.RawSetString(tier.String(), lua.LNumber(rep.Thresholds.For(tier)))
			}
			t.RawSetString("thresholds", th)
			L.Push(t)
			return 1
		},
		// engine.encounter.budget(party, tier) -> XP threshold of tier for party
		"budget": func(L *lua.LState) int {
			party, err := partyArg(L.CheckTable(1))
			if err != nil {
				L.ArgError(1, err.Error())
				return 0
			}
			tier, err := encounter.ParseTier(L.CheckString(2))
			if err != nil {
				L.ArgError(2, err.Error())
				return 0
			}
			xp, err := encounter.Budget(party, m.lib.Thresholds, tier)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lua.LNumber(xp))
			return 1
		},
	})
	return mod
}

func groupsArg(t *lua.LTable) ([]encounter.Group, error) {
	var out []encounter.Group
	for i := 1; i <= t.Len(); i++ {
		e, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("monster %d is not a table", i)
		}
		cr, err := encounter.ParseCR(lua.LVAsString(e.RawGetString("cr")))
		if err != nil {
			return nil, fmt.Errorf("monster %d: %w", i, err)
		}
		out = append(out, encounter.Group{CR: cr, Count: int(lua.LVAsNumber(e.RawGetString("count")))})
	}
	return out, nil
}

func partyArg(t *lua.LTable) (encounter.Party, error) {
	var out encounter.Party
	for i := 1; i <= t.Len(); i++ {
		e, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("party member %d is not a table", i)
		}
		out = append(out, encounter.Member{
			Level: int(lua.LVAsNumber(e.RawGetString("level"))),
			Count: int(lua.LVAsNumber(e.RawGetString("count"))),
		})
	}
	return out, nil
}

func (m *Manager) logModule(L *lua.LState, g *generator) *lua.LTable {
	mod := L.NewTable()
	logAt := func(fn func(string, ...zap.Field)) lua.LGFunction {
		return func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("generator", g.name))
			return 0
		}
	}
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"debug": logAt(m.logger.Debug),
		"info":  logAt(m.logger.Info),
		"warn":  logAt(m.logger.Warn),
		"error": logAt(m.logger.Error),
	})
	return mod
}
