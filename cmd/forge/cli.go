package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loreforge/internal/config"
	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/game/encounter"
	"github.com/cory-johannsen/loreforge/internal/observability"
	"github.com/cory-johannsen/loreforge/internal/scripting"
)

// errUsage marks command-line mistakes; run prints usage and exits 2.
var errUsage = errors.New("usage")

type app struct {
	lib       *content.Library
	logger    *zap.Logger
	src       dice.Source
	instLimit int
	maxSample int
	asJSON    bool
	out       io.Writer
}

type command struct {
	name  string
	usage string
	run   func(a *app, args []string) error
}

var commands = []command{
	{"roll", "roll <notation | text>", (*app).roll},
	{"parse", "parse <notation>", (*app).parse},
	{"sample", "sample [-n N] <table>", (*app).sample},
	{"name", "name [-n N] [-pattern P] <catalog>", (*app).name},
	{"encounter", "encounter -party CxL[,CxL] [-monster CxCR ...] [-tier T]", (*app).encounter},
	{"generate", "generate <generator> [key=value ...]", (*app).generate},
	{"list", "list [tables | names | generators]", (*app).list},
}

// run executes one forge invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("forge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to configuration file")
	contentDir := fs.String("content", "", "content directory; empty uses the embedded library")
	seed := fs.Uint64("seed", 0, "seed for replayable output; 0 draws from crypto/rand")
	asJSON := fs.Bool("json", false, "print results as JSON")
	verbose := fs.Bool("v", false, "log roll audit trails to stderr")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "forge: loading config: %v\n", err)
		return 1
	}
	cfg.Logging.Format = "console"
	cfg.Logging.Level = "warn"
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := observability.NewLogger("forge", cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "forge: initializing logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if *contentDir != "" {
		cfg.Content.Dir = *contentDir
	}
	lib, err := loadLibrary(cfg.Content.Dir)
	if err != nil {
		fmt.Fprintf(stderr, "forge: %v\n", err)
		return 1
	}

	s := *seed
	if s == 0 {
		s = cfg.Generator.Seed
	}
	a := &app{
		lib:       lib,
		logger:    logger,
		src:       newSource(s),
		instLimit: cfg.Scripting.InstructionLimit,
		maxSample: cfg.Generator.MaxSample,
		asJSON:    *asJSON,
		out:       stdout,
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(a, rest); err != nil {
			if errors.Is(err, errUsage) {
				fmt.Fprintf(stderr, "forge: %v\nusage: forge %s\n", err, c.usage)
				return 2
			}
			fmt.Fprintf(stderr, "forge %s: %v\n", name, err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "forge: unknown command %q\n", name)
	fs.Usage()
	return 2
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: forge [flags] <command> [args]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}

func loadLibrary(dir string) (*content.Library, error) {
	if dir == "" {
		return content.Default()
	}
	return content.LoadDir(dir)
}

func newSource(seed uint64) dice.Source {
	if seed == 0 {
		return dice.NewCryptoSource()
	}
	return dice.NewSeededSource(seed)
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// emit prints v as indented JSON when -json is set, otherwise each text line.
func (a *app) emit(v any, lines ...string) error {
	if a.asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(a.out, l); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) roll(args []string) error {
	if len(args) == 0 {
		return usageErr("roll needs a notation or text")
	}
	text := strings.Join(args, " ")
	roller := dice.NewLoggedRoller(a.src, a.logger)

	if _, err := dice.Parse(text); err == nil {
		res, err := roller.RollExpr(text)
		observability.RecordGeneration(observability.KindDice, err)
		if err != nil {
			return err
		}
		return a.emit(map[string]any{
			"expression": res.Expression,
			"dice":       res.Dice,
			"modifier":   res.Modifier,
			"total":      res.Total(),
		}, res.String())
	}

	out, err := roller.RollInline(text)
	observability.RecordGeneration(observability.KindDice, err)
	if err != nil {
		return err
	}
	return a.emit(map[string]string{"text": out}, out)
}

func (a *app) parse(args []string) error {
	if len(args) != 1 {
		return usageErr("parse takes exactly one notation")
	}
	e, err := dice.Parse(args[0])
	if err != nil {
		return err
	}
	return a.emit(map[string]any{
		"notation": e.String(),
		"count":    e.Count,
		"sides":    e.Sides,
		"modifier": e.Modifier,
	}, fmt.Sprintf("%s count=%d sides=%d modifier=%d", e, e.Count, e.Sides, e.Modifier))
}

func (a *app) sample(args []string) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	n := fs.Int("n", 1, "rows to draw")
	if err := fs.Parse(args); err != nil {
		return usageErr("%v", err)
	}
	if fs.NArg() != 1 {
		return usageErr("sample takes exactly one table id")
	}
	if *n > a.maxSample {
		return usageErr("-n %d exceeds the limit of %d", *n, a.maxSample)
	}
	rows, err := a.lib.Sample(fs.Arg(0), *n, a.src)
	observability.RecordGeneration(observability.KindTable, err)
	if err != nil {
		return err
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = r.String()
	}
	return a.emit(rows, lines...)
}

func (a *app) name(args []string) error {
	fs := flag.NewFlagSet("name", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	n := fs.Int("n", 1, "names to generate")
	pattern := fs.String("pattern", "", "pattern to expand; empty picks one of the catalog's patterns")
	if err := fs.Parse(args); err != nil {
		return usageErr("%v", err)
	}
	if fs.NArg() != 1 {
		return usageErr("name takes exactly one catalog id")
	}
	if *n < 1 || *n > a.maxSample {
		return usageErr("-n must be in [1, %d], got %d", a.maxSample, *n)
	}
	names := make([]string, 0, *n)
	for range *n {
		s, err := a.lib.Name(fs.Arg(0), *pattern, a.src)
		observability.RecordGeneration(observability.KindName, err)
		if err != nil {
			return err
		}
		names = append(names, s)
	}
	return a.emit(names, names...)
}

// groupsFlag collects repeated "COUNTxVALUE" flags, each possibly a comma list.
type groupsFlag []string

func (g *groupsFlag) String() string { return strings.Join(*g, ",") }

func (g *groupsFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*g = append(*g, part)
		}
	}
	return nil
}

// splitGroup splits "4x3" into count 4 and value "3". A bare value counts once.
func splitGroup(s string) (int, string, error) {
	countStr, value, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 1, s, nil
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 1 {
		return 0, "", fmt.Errorf("invalid count in %q", s)
	}
	return count, value, nil
}

func parseParty(specs []string) (encounter.Party, error) {
	party := make(encounter.Party, 0, len(specs))
	for _, s := range specs {
		count, value, err := splitGroup(s)
		if err != nil {
			return nil, err
		}
		level, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid level in %q", s)
		}
		party = append(party, encounter.Member{Level: level, Count: count})
	}
	return party, nil
}

func parseMonsters(specs []string) ([]encounter.Group, error) {
	groups := make([]encounter.Group, 0, len(specs))
	for _, s := range specs {
		count, value, err := splitGroup(s)
		if err != nil {
			return nil, err
		}
		cr, err := encounter.ParseCR(value)
		if err != nil {
			return nil, err
		}
		groups = append(groups, encounter.Group{CR: cr, Count: count})
	}
	return groups, nil
}

func (a *app) encounter(args []string) error {
	fs := flag.NewFlagSet("encounter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var partySpecs, monsterSpecs groupsFlag
	fs.Var(&partySpecs, "party", "characters as COUNTxLEVEL, e.g. 4x3 (repeatable)")
	fs.Var(&monsterSpecs, "monster", "monsters as COUNTxCR, e.g. 6x1/4 (repeatable)")
	tierName := fs.String("tier", "", "print the XP budget of this tier instead of rating monsters")
	if err := fs.Parse(args); err != nil {
		return usageErr("%v", err)
	}
	if len(partySpecs) == 0 {
		return usageErr("-party is required")
	}
	party, err := parseParty(partySpecs)
	if err != nil {
		return usageErr("%v", err)
	}

	if *tierName != "" {
		tier, err := encounter.ParseTier(*tierName)
		if err != nil {
			return usageErr("%v", err)
		}
		budget, err := encounter.Budget(party, a.lib.Thresholds, tier)
		observability.RecordGeneration(observability.KindEncounter, err)
		if err != nil {
			return err
		}
		return a.emit(map[string]any{"tier": tier, "budget": budget},
			fmt.Sprintf("%s budget: %d XP", tier, budget))
	}

	if len(monsterSpecs) == 0 {
		return usageErr("-monster or -tier is required")
	}
	monsters, err := parseMonsters(monsterSpecs)
	if err != nil {
		return usageErr("%v", err)
	}
	rep, err := encounter.Evaluate(monsters, party, a.lib.CRTable, a.lib.Thresholds)
	observability.RecordGeneration(observability.KindEncounter, err)
	if err != nil {
		return err
	}
	th := rep.Thresholds
	return a.emit(rep,
		fmt.Sprintf("%d monsters, %d XP (adjusted %d, x%g)", rep.Monsters, rep.TotalXP, rep.AdjustedXP, encounter.Multiplier(rep.Monsters)),
		fmt.Sprintf("thresholds: easy %d, medium %d, hard %d, deadly %d", th.Easy, th.Medium, th.Hard, th.Deadly),
		fmt.Sprintf("difficulty: %s", rep.Tier),
	)
}

// parseParam converts a command-line value to the JSON-shaped type a script
// would receive over HTTP: numbers become float64, true/false become bool.
func parseParam(v string) any {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if v == "true" || v == "false" {
		return v == "true"
	}
	return v
}

func (a *app) generate(args []string) error {
	if len(args) == 0 {
		return usageErr("generate needs a generator name")
	}
	params := make(map[string]any, len(args)-1)
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return usageErr("parameter %q is not key=value", kv)
		}
		params[k] = parseParam(v)
	}

	gens := scripting.NewManager(a.lib, a.logger, a.instLimit, a.maxSample)
	defer gens.Close()
	if err := gens.LoadLibrary(); err != nil {
		return err
	}
	out, err := gens.Generate(context.Background(), args[0], params, a.src)
	observability.RecordGeneration(observability.KindGenerator, err)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (a *app) list(args []string) error {
	if len(args) > 1 {
		return usageErr("list takes at most one section")
	}
	section := ""
	if len(args) == 1 {
		section = args[0]
	}
	sections := map[string][]string{
		"tables":     a.lib.TableIDs(),
		"names":      a.lib.CatalogIDs(),
		"generators": a.lib.ScriptNames(),
	}
	if section != "" {
		ids, ok := sections[section]
		if !ok {
			return usageErr("unknown section %q", section)
		}
		return a.emit(ids, ids...)
	}
	var lines []string
	for _, s := range []string{"tables", "names", "generators"} {
		lines = append(lines, s+":")
		for _, id := range sections[s] {
			lines = append(lines, "  "+id)
		}
	}
	return a.emit(sections, lines...)
}
