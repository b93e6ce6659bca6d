package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/game/encounter"
	"github.com/cory-johannsen/loreforge/internal/game/namegen"
	"github.com/cory-johannsen/loreforge/internal/game/table"
	"github.com/cory-johannsen/loreforge/internal/scripting"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// errorKinds maps engine sentinels to their wire kind. Order matters only
// where one error could wrap several sentinels; the first match wins.
var errorKinds = []struct {
	err    error
	status int
	kind   string
}{
	{errBadRequest, http.StatusBadRequest, "bad_request"},

	{content.ErrUnknownTable, http.StatusNotFound, "not_found"},
	{content.ErrUnknownCatalog, http.StatusNotFound, "not_found"},
	{scripting.ErrUnknownGenerator, http.StatusNotFound, "not_found"},

	{dice.ErrSyntax, http.StatusBadRequest, "syntax"},
	{dice.ErrCountOutOfRange, http.StatusBadRequest, "count_out_of_range"},
	{dice.ErrInvalidSides, http.StatusBadRequest, "invalid_sides"},

	{table.ErrEmptyTable, http.StatusBadRequest, "empty_table"},
	{table.ErrInvalidWeight, http.StatusBadRequest, "invalid_weight"},
	{table.ErrInvalidCount, http.StatusBadRequest, "invalid_count"},

	{namegen.ErrUnknownToken, http.StatusBadRequest, "unknown_token"},
	{namegen.ErrEmptyCandidates, http.StatusBadRequest, "empty_candidates"},
	{namegen.ErrMalformedPattern, http.StatusBadRequest, "malformed_pattern"},
	{namegen.ErrRecursionLimit, http.StatusBadRequest, "recursion_limit"},

	{encounter.ErrUnknownCR, http.StatusBadRequest, "unknown_cr"},
	{encounter.ErrUnknownLevel, http.StatusBadRequest, "unknown_level"},
	{encounter.ErrInvalidCount, http.StatusBadRequest, "invalid_count"},
	{encounter.ErrEmptyParty, http.StatusBadRequest, "empty_party"},
	{encounter.ErrInvalidXP, http.StatusBadRequest, "invalid_xp"},
	{encounter.ErrOverflow, http.StatusBadRequest, "overflow"},

	{scripting.ErrScript, http.StatusInternalServerError, "script"},
}

// classify returns the HTTP status and wire kind for err.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeError writes err as an ErrorResponse. Server-side failures are logged
// at error level; client errors at debug.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	fields := []zap.Field{
		zap.String("request_id", r.Header.Get(RequestIDHeader)),
		zap.String("kind", kind),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}
