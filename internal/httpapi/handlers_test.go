package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/game/encounter"
	"github.com/cory-johannsen/loreforge/internal/game/namegen"
	"github.com/cory-johannsen/loreforge/internal/scripting"
)

// tb is the subset of testing.TB that *rapid.T also satisfies.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

type testServer struct {
	handler http.Handler
	gens    *scripting.Manager
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	lib, err := content.Default()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	if opts.MaxSample == 0 {
		opts.MaxSample = 100
	}
	gens := scripting.NewManager(lib, logger, 0, opts.MaxSample)
	require.NoError(t, gens.LoadLibrary())
	t.Cleanup(gens.Close)
	return &testServer{handler: New(lib, gens, logger, opts).Routes(), gens: gens}
}

func (ts *testServer) do(t tb, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t tb, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNew_PanicsOnMissingDependencies(t *testing.T) {
	lib, err := content.Default()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	gens := scripting.NewManager(lib, logger, 0, 0)
	defer gens.Close()

	assert.Panics(t, func() { New(nil, gens, logger, Options{MaxSample: 1}) })
	assert.Panics(t, func() { New(lib, nil, logger, Options{MaxSample: 1}) })
	assert.Panics(t, func() { New(lib, gens, nil, Options{MaxSample: 1}) })
	assert.Panics(t, func() { New(lib, gens, logger, Options{}) })
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.do(t, http.MethodPost, "/api/v1/dice/parse", `{"notation":"1d6"}`)
	rec := ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forge_generations_total")
}

func TestDiceParse(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/dice/parse", `{"notation":"2d6+3"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DiceParseResponse{Notation: "2d6+3", Count: 2, Sides: 6, Modifier: 3}, decodeBody[DiceParseResponse](t, rec))
}

func TestDiceParse_Errors(t *testing.T) {
	ts := newTestServer(t, Options{})
	cases := []struct {
		name string
		body string
		kind string
	}{
		{"syntax", `{"notation":"2x6"}`, "syntax"},
		{"empty", `{"notation":""}`, "syntax"},
		{"too many dice", `{"notation":"101d6"}`, "count_out_of_range"},
		{"zero sides", `{"notation":"1d0"}`, "invalid_sides"},
		{"huge sides", `{"notation":"2d9223372036854775807"}`, "invalid_sides"},
		{"huge modifier", `{"notation":"1d6+9223372036854775807"}`, "syntax"},
		{"unknown field", `{"notation":"1d6","extra":1}`, "bad_request"},
		{"not json", `notation`, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/dice/parse", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.kind, decodeBody[ErrorResponse](t, rec).Kind)
		})
	}
}

func TestDiceRoll_SeededIsReplayable(t *testing.T) {
	ts := newTestServer(t, Options{})
	body := `{"notation":"4d6-1","seed":42}`

	first := ts.do(t, http.MethodPost, "/api/v1/dice/roll", body)
	second := ts.do(t, http.MethodPost, "/api/v1/dice/roll", body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	res := decodeBody[DiceRollResponse](t, first)
	assert.Equal(t, "4d6-1", res.Expression)
	require.Len(t, res.Dice, 4)
	sum := 0
	for _, d := range res.Dice {
		assert.GreaterOrEqual(t, d, 1)
		assert.LessOrEqual(t, d, 6)
		sum += d
	}
	assert.Equal(t, -1, res.Modifier)
	assert.Equal(t, sum-1, res.Total)
	assert.NotEmpty(t, res.Detail)
}

func TestDiceRoll_ConfiguredSeedAppliesWithoutRequestSeed(t *testing.T) {
	ts := newTestServer(t, Options{Seed: 7})
	a := ts.do(t, http.MethodPost, "/api/v1/dice/roll", `{"notation":"10d20"}`)
	b := ts.do(t, http.MethodPost, "/api/v1/dice/roll", `{"notation":"10d20"}`)
	require.Equal(t, http.StatusOK, a.Code)
	assert.Equal(t, a.Body.String(), b.Body.String())
}

func TestDiceRoll_InlineText(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/dice/roll", `{"text":"A pouch with 2d6x10 gp","seed":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[DiceRollResponse](t, rec)
	assert.True(t, strings.HasPrefix(res.Text, "A pouch with "), res.Text)
	assert.True(t, strings.HasSuffix(res.Text, " gp"), res.Text)
	assert.NotContains(t, res.Text, "2d6")
}

func TestDiceRoll_RequiresNotationOrText(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/dice/roll", `{"seed":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeBody[ErrorResponse](t, rec).Kind)
}

func TestListTables(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodGet, "/api/v1/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)

	tables := decodeBody[[]TableSummary](t, rec)
	ids := make([]string, len(tables))
	for i, def := range tables {
		ids[i] = def.ID
		assert.Positive(t, def.Entries, def.ID)
	}
	assert.IsIncreasing(t, ids)
	assert.Contains(t, ids, "individual_treasure")
	assert.Contains(t, ids, "forest_encounters")
}

func TestSampleTable(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/tables/individual_treasure/sample", `{"n":5,"seed":9}`)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[SampleResponse](t, rec)
	assert.Equal(t, "individual_treasure", res.Table)
	require.Len(t, res.Rows, 5)
	require.Len(t, res.Display, 5)
	for i, row := range res.Rows {
		assert.Equal(t, content.KindLoot, row.Kind)
		require.NotNil(t, row.Loot)
		assert.NotContains(t, row.Loot.Amount, "d6", "amounts are rolled before returning")
		assert.Equal(t, row.String(), res.Display[i])
	}
}

func TestSampleTable_EmptyBodyDrawsOne(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/tables/trinkets/sample", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[SampleResponse](t, rec).Rows, 1)
}

func TestSampleTable_Errors(t *testing.T) {
	ts := newTestServer(t, Options{MaxSample: 10})
	cases := []struct {
		name   string
		path   string
		body   string
		status int
		kind   string
	}{
		{"unknown table", "/api/v1/tables/nope/sample", `{"n":1}`, http.StatusNotFound, "not_found"},
		{"over limit", "/api/v1/tables/trinkets/sample", `{"n":11}`, http.StatusBadRequest, "invalid_count"},
		{"zero", "/api/v1/tables/trinkets/sample", `{"n":0}`, http.StatusBadRequest, "bad_request"},
		{"negative", "/api/v1/tables/trinkets/sample", `{"n":-2}`, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, decodeBody[ErrorResponse](t, rec).Kind)
		})
	}
}

func TestListCatalogs(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodGet, "/api/v1/names", "")
	require.Equal(t, http.StatusOK, rec.Code)

	catalogs := decodeBody[[]CatalogSummary](t, rec)
	require.NotEmpty(t, catalogs)
	for _, c := range catalogs {
		assert.NotEmpty(t, c.Patterns, c.ID)
	}
}

func TestExpandName_Catalog(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/names/expand", `{"catalog":"npcs","pattern":"{first} {last}","count":3,"seed":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	names := decodeBody[ExpandResponse](t, rec).Names
	require.Len(t, names, 3)
	for _, n := range names {
		assert.Len(t, strings.Fields(n), 2, n)
	}
}

func TestExpandName_InlineTokens(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/names/expand", `{"tokens":{"a":["x"],"b":["y"]},"pattern":"{a:upper}-{b}"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"X-y"}, decodeBody[ExpandResponse](t, rec).Names)
}

func TestExpandName_Errors(t *testing.T) {
	ts := newTestServer(t, Options{MaxSample: 5})
	cases := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"unknown catalog", `{"catalog":"nope"}`, http.StatusNotFound, "not_found"},
		{"unknown token", `{"tokens":{"a":["x"]},"pattern":"{b}"}`, http.StatusBadRequest, "unknown_token"},
		{"malformed", `{"tokens":{"a":["x"]},"pattern":"{a"}`, http.StatusBadRequest, "malformed_pattern"},
		{"empty candidates", `{"tokens":{"a":[]},"pattern":"{a}"}`, http.StatusBadRequest, "empty_candidates"},
		{"catalog and tokens", `{"catalog":"npcs","tokens":{"a":["x"]},"pattern":"{a}"}`, http.StatusBadRequest, "bad_request"},
		{"neither", `{"pattern":"plain"}`, http.StatusBadRequest, "bad_request"},
		{"tokens without pattern", `{"tokens":{"a":["x"]}}`, http.StatusBadRequest, "bad_request"},
		{"count over limit", `{"catalog":"npcs","count":6}`, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/names/expand", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, decodeBody[ErrorResponse](t, rec).Kind)
		})
	}
}

func TestEvaluateEncounter(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/encounters/evaluate",
		`{"monsters":[{"cr":"1/2","count":3}],"party":[{"level":3,"count":4}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"total_xp": 300,
		"adjusted_xp": 600,
		"monsters": 3,
		"thresholds": {"easy": 300, "medium": 600, "hard": 900, "deadly": 1600},
		"tier": "medium",
		"multiplier": 2
	}`, rec.Body.String())
}

func TestEvaluateEncounter_Errors(t *testing.T) {
	ts := newTestServer(t, Options{})
	cases := []struct {
		name string
		body string
		kind string
	}{
		{"unknown cr", `{"monsters":[{"cr":"31","count":1}],"party":[{"level":1,"count":1}]}`, "unknown_cr"},
		{"bad cr", `{"monsters":[{"cr":"half","count":1}],"party":[{"level":1,"count":1}]}`, "bad_request"},
		{"empty party", `{"monsters":[{"cr":"1","count":1}],"party":[]}`, "empty_party"},
		{"unknown level", `{"monsters":[{"cr":"1","count":1}],"party":[{"level":21,"count":1}]}`, "unknown_level"},
		{"zero monsters", `{"monsters":[{"cr":"1","count":0}],"party":[{"level":1,"count":1}]}`, "invalid_count"},
		{"monster xp overflows", `{"monsters":[{"cr":"0","count":1844674407370955162}],"party":[{"level":1,"count":1}]}`, "overflow"},
		{"party thresholds overflow", `{"monsters":[{"cr":"1","count":1}],"party":[{"level":1,"count":184467440737095517}]}`, "overflow"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/encounters/evaluate", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.kind, decodeBody[ErrorResponse](t, rec).Kind)
		})
	}
}

func TestEncounterBudget(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodPost, "/api/v1/encounters/budget", `{"party":[{"level":5,"count":4}],"tier":"Hard"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"tier": "hard",
		"budget": 3000,
		"thresholds": {"easy": 1000, "medium": 2000, "hard": 3000, "deadly": 4400}
	}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/encounters/budget", `{"party":[{"level":5,"count":4}],"tier":"brutal"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeBody[ErrorResponse](t, rec).Kind)
}

func TestListGenerators(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(t, http.MethodGet, "/api/v1/generators", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"dungeon", "faction", "loot_hoard", "tavern", "timeline"}, decodeBody[[]string](t, rec))
}

func TestGenerate_SeededIsReplayable(t *testing.T) {
	ts := newTestServer(t, Options{})
	body := `{"seed":11,"params":{"dishes":2}}`
	first := ts.do(t, http.MethodPost, "/api/v1/generators/tavern", body)
	second := ts.do(t, http.MethodPost, "/api/v1/generators/tavern", body)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, first.Body.String(), second.Body.String())

	res := decodeBody[struct {
		Generator string         `json:"generator"`
		Result    map[string]any `json:"result"`
	}](t, first)
	assert.Equal(t, "tavern", res.Generator)
	assert.NotEmpty(t, res.Result["name"])
	assert.Len(t, res.Result["menu"], 2)
}

func TestGenerate_Errors(t *testing.T) {
	ts := newTestServer(t, Options{})
	require.NoError(t, ts.gens.Load("broken", `function generate() error("boom") end`))

	rec := ts.do(t, http.MethodPost, "/api/v1/generators/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, rec).Kind)

	rec = ts.do(t, http.MethodPost, "/api/v1/generators/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "script", decodeBody[ErrorResponse](t, rec).Kind)
}

func TestGenerate_SampleLimitAppliesInsideScripts(t *testing.T) {
	ts := newTestServer(t, Options{MaxSample: 5})
	rec := ts.do(t, http.MethodPost, "/api/v1/generators/tavern", `{"seed":3,"params":{"dishes":5}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/generators/tavern", `{"seed":3,"params":{"dishes":2000000}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_count", decodeBody[ErrorResponse](t, rec).Kind)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("wrapped: %w", dice.ErrSyntax), http.StatusBadRequest, "syntax"},
		{&namegen.ExpansionError{Kind: namegen.ErrRecursionLimit}, http.StatusBadRequest, "recursion_limit"},
		{encounter.ErrInvalidXP, http.StatusBadRequest, "invalid_xp"},
		{fmt.Errorf("evaluating: %w", &encounter.BalancerError{Kind: encounter.ErrOverflow}), http.StatusBadRequest, "overflow"},
		{content.ErrUnknownTable, http.StatusNotFound, "not_found"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, kind := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.kind, kind, tc.err.Error())
	}
}

func TestProperty_ParseEchoesCanonicalNotation(t *testing.T) {
	ts := newTestServer(t, Options{})
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, dice.MaxDice).Draw(rt, "count")
		sides := rapid.IntRange(1, 1000).Draw(rt, "sides")
		mod := rapid.IntRange(-50, 50).Draw(rt, "mod")
		notation := dice.Format(count, sides, mod)

		rec := ts.do(rt, http.MethodPost, "/api/v1/dice/parse", fmt.Sprintf(`{"notation":%q}`, notation))
		if rec.Code != http.StatusOK {
			rt.Fatalf("%s: status %d: %s", notation, rec.Code, rec.Body.String())
		}
		got := decodeBody[DiceParseResponse](rt, rec)
		if got != (DiceParseResponse{Notation: notation, Count: count, Sides: sides, Modifier: mod}) {
			rt.Fatalf("%s parsed as %+v", notation, got)
		}
	})
}
