package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/game/encounter"
	"github.com/cory-johannsen/loreforge/internal/game/namegen"
	"github.com/cory-johannsen/loreforge/internal/game/table"
	"github.com/cory-johannsen/loreforge/internal/observability"
)

// DiceParseRequest is the body of POST /api/v1/dice/parse.
type DiceParseRequest struct {
	Notation string `json:"notation"`
}

// DiceParseResponse describes a parsed expression in canonical form.
type DiceParseResponse struct {
	Notation string `json:"notation"`
	Count    int    `json:"count"`
	Sides    int    `json:"sides"`
	Modifier int    `json:"modifier"`
}

func (s *Server) handleDiceParse(w http.ResponseWriter, r *http.Request) {
	var req DiceParseRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := dice.Parse(req.Notation)
	observability.RecordGeneration(observability.KindDice, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DiceParseResponse{
		Notation: e.String(),
		Count:    e.Count,
		Sides:    e.Sides,
		Modifier: e.Modifier,
	})
}

// DiceRollRequest is the body of POST /api/v1/dice/roll. Exactly one of
// Notation or Text is used: Notation rolls one expression, Text rolls every
// dice span embedded in free text.
type DiceRollRequest struct {
	Notation string  `json:"notation,omitempty" validate:"required_without=Text"`
	Text     string  `json:"text,omitempty"`
	Seed     *uint64 `json:"seed,omitempty"`
}

// DiceRollResponse is the audit trail of a roll.
type DiceRollResponse struct {
	Expression string `json:"expression,omitempty"`
	Dice       []int  `json:"dice,omitempty"`
	Modifier   int    `json:"modifier"`
	Total      int    `json:"total"`
	Detail     string `json:"detail,omitempty"`
	Text       string `json:"text,omitempty"`
}

func (s *Server) handleDiceRoll(w http.ResponseWriter, r *http.Request) {
	var req DiceRollRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	roller := dice.NewLoggedRoller(s.source(req.Seed), s.logger)

	if req.Notation == "" && req.Text != "" {
		out, err := roller.RollInline(req.Text)
		observability.RecordGeneration(observability.KindDice, err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, DiceRollResponse{Text: out})
		return
	}

	res, err := roller.RollExpr(req.Notation)
	observability.RecordGeneration(observability.KindDice, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.ObserveDiceTotal(res.Total())
	writeJSON(w, http.StatusOK, DiceRollResponse{
		Expression: res.Expression,
		Dice:       res.Dice,
		Modifier:   res.Modifier,
		Total:      res.Total(),
		Detail:     res.String(),
	})
}

// TableSummary lists one content table.
type TableSummary struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Kind    content.Kind `json:"kind"`
	Entries int          `json:"entries"`
}

func (s *Server) handleListTables(w http.ResponseWriter, _ *http.Request) {
	out := make([]TableSummary, 0, len(s.lib.Tables))
	for _, id := range s.lib.TableIDs() {
		def := s.lib.Tables[id]
		out = append(out, TableSummary{ID: def.ID, Title: def.Title, Kind: def.Kind, Entries: def.Table.Len()})
	}
	writeJSON(w, http.StatusOK, out)
}

// SampleRequest is the body of POST /api/v1/tables/{id}/sample. N defaults to 1.
type SampleRequest struct {
	N    int     `json:"n,omitempty" validate:"min=1"`
	Seed *uint64 `json:"seed,omitempty"`
}

// SampleResponse carries the sampled rows, in draw order.
type SampleResponse struct {
	Table   string        `json:"table"`
	Rows    []content.Row `json:"rows"`
	Display []string      `json:"display"`
}

func (s *Server) handleSampleTable(w http.ResponseWriter, r *http.Request) {
	req := SampleRequest{N: 1}
	if err := decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.N > s.opts.MaxSample {
		s.writeError(w, r, fmt.Errorf("%w: %d exceeds limit %d", table.ErrInvalidCount, req.N, s.opts.MaxSample))
		return
	}
	id := chi.URLParam(r, "id")
	rows, err := s.lib.Sample(id, req.N, s.source(req.Seed))
	observability.RecordGeneration(observability.KindTable, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	display := make([]string, len(rows))
	for i, row := range rows {
		display[i] = row.String()
	}
	writeJSON(w, http.StatusOK, SampleResponse{Table: id, Rows: rows, Display: display})
}

// CatalogSummary lists one name catalog.
type CatalogSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Patterns []string `json:"patterns"`
}

func (s *Server) handleListCatalogs(w http.ResponseWriter, _ *http.Request) {
	out := make([]CatalogSummary, 0, len(s.lib.Catalogs))
	for _, id := range s.lib.CatalogIDs() {
		c := s.lib.Catalogs[id]
		out = append(out, CatalogSummary{ID: c.ID, Title: c.Title, Patterns: c.Patterns})
	}
	writeJSON(w, http.StatusOK, out)
}

// ExpandRequest is the body of POST /api/v1/names/expand. Either Catalog names
// a content catalog, or Tokens supplies one inline; Pattern may be empty only
// with Catalog, in which case a catalog pattern is chosen.
type ExpandRequest struct {
	Catalog string              `json:"catalog,omitempty" validate:"required_without=Tokens,excluded_with=Tokens"`
	Tokens  map[string][]string `json:"tokens,omitempty"`
	Pattern string              `json:"pattern,omitempty" validate:"required_without=Catalog"`
	Count   int                 `json:"count,omitempty" validate:"min=1"`
	Seed    *uint64             `json:"seed,omitempty"`
}

// ExpandResponse carries the expanded names.
type ExpandResponse struct {
	Names []string `json:"names"`
}

func (s *Server) handleExpandName(w http.ResponseWriter, r *http.Request) {
	req := ExpandRequest{Count: 1}
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Count > s.opts.MaxSample {
		s.writeError(w, r, fmt.Errorf("%w: count %d exceeds limit %d", errBadRequest, req.Count, s.opts.MaxSample))
		return
	}

	src := s.source(req.Seed)
	names := make([]string, 0, req.Count)
	for range req.Count {
		var name string
		var err error
		if req.Catalog != "" {
			name, err = s.lib.Name(req.Catalog, req.Pattern, src)
		} else {
			name, err = namegen.Expand(req.Pattern, namegen.Catalog(req.Tokens), src)
		}
		observability.RecordGeneration(observability.KindName, err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		names = append(names, name)
	}
	writeJSON(w, http.StatusOK, ExpandResponse{Names: names})
}

// EvaluateRequest is the body of POST /api/v1/encounters/evaluate.
type EvaluateRequest struct {
	Monsters []encounter.Group `json:"monsters"`
	Party    encounter.Party   `json:"party"`
}

// EvaluateResponse is an encounter report plus the group multiplier applied.
type EvaluateResponse struct {
	encounter.Report
	Multiplier float64 `json:"multiplier"`
}

func (s *Server) handleEvaluateEncounter(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := encounter.Evaluate(req.Monsters, req.Party, s.lib.CRTable, s.lib.Thresholds)
	observability.RecordGeneration(observability.KindEncounter, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Report: rep, Multiplier: encounter.Multiplier(rep.Monsters)})
}

// BudgetRequest is the body of POST /api/v1/encounters/budget.
type BudgetRequest struct {
	Party encounter.Party `json:"party"`
	Tier  string          `json:"tier" validate:"required"`
}

// BudgetResponse is the XP budget of a tier and every threshold of the party.
type BudgetResponse struct {
	Tier       encounter.Tier       `json:"tier"`
	Budget     int                  `json:"budget"`
	Thresholds encounter.Thresholds `json:"thresholds"`
}

func (s *Server) handleEncounterBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	tier, err := encounter.ParseTier(req.Tier)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	th, err := encounter.PartyThresholds(req.Party, s.lib.Thresholds)
	observability.RecordGeneration(observability.KindEncounter, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BudgetResponse{Tier: tier, Budget: th.For(tier), Thresholds: th})
}

func (s *Server) handleListGenerators(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.gens.Names())
}

// GenerateRequest is the body of POST /api/v1/generators/{name}.
type GenerateRequest struct {
	Params map[string]any `json:"params,omitempty"`
	Seed   *uint64        `json:"seed,omitempty"`
}

// GenerateResponse wraps a generator result.
type GenerateResponse struct {
	Generator string `json:"generator"`
	Result    any    `json:"result"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	out, err := s.gens.Generate(r.Context(), name, req.Params, s.source(req.Seed))
	observability.RecordGeneration(observability.KindGenerator, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{Generator: name, Result: out})
}
