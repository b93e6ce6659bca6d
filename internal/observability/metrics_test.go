package observability

import (
	"bufio"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrape returns the value of series from the default registry's exposition,
// or 0 when the series has not been emitted yet.
func scrape(t *testing.T, series string) float64 {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		if rest, ok := strings.CutPrefix(line, series+" "); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
			require.NoError(t, err)
			return v
		}
	}
	return 0
}

func TestRecordGeneration_LabelsOutcome(t *testing.T) {
	okSeries := `forge_generations_total{kind="table",outcome="ok"}`
	errSeries := `forge_generations_total{kind="table",outcome="error"}`
	okBefore, errBefore := scrape(t, okSeries), scrape(t, errSeries)

	RecordGeneration(KindTable, nil)
	RecordGeneration(KindTable, nil)
	RecordGeneration(KindTable, errors.New("boom"))

	assert.Equal(t, okBefore+2, scrape(t, okSeries))
	assert.Equal(t, errBefore+1, scrape(t, errSeries))
}

func TestObserveDiceTotal_CountsObservations(t *testing.T) {
	before := scrape(t, "forge_dice_total_count")
	ObserveDiceTotal(7)
	ObserveDiceTotal(12)
	assert.Equal(t, before+2, scrape(t, "forge_dice_total_count"))
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/tables/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	series := `forge_http_requests_total{method="GET",route="/tables/{id}",status="418"}`
	before := scrape(t, series)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tables/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}
	assert.Equal(t, before+2, scrape(t, series))
	assert.Zero(t, scrape(t, "forge_http_requests_in_flight"))
}
