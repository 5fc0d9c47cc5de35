package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/monitoring"
	"github.com/sells-group/disposight/internal/opportunity"
	"github.com/sells-group/disposight/internal/store"
)

func newTestAPI(t *testing.T) (*apiServer, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	return &apiServer{
		builder:   opportunity.NewBuilder(st, 0, 0),
		collector: monitoring.NewCollector(st, 0),
	}, st
}

func seedOpportunity(t *testing.T, st store.Store) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	company := &model.Company{
		Name:               "Hollow Tree Logistics Inc",
		NormalizedName:     "hollow tree logistics",
		HeadquartersState:  "OH",
		CompositeRiskScore: 70,
		RiskTrend:          model.TrendRising,
	}
	require.NoError(t, st.CreateCompany(ctx, company))

	devices := 900
	employees := 600
	publishedAt := time.Now().UTC().Add(-36 * time.Hour)
	require.NoError(t, st.CreateSignal(ctx, &model.Signal{
		CompanyID:         company.ID,
		SignalType:        model.TypeLayoff,
		SignalCategory:    model.CategoryWARN,
		Title:             "Hollow Tree Logistics Inc: layoff",
		ConfidenceScore:   95,
		SeverityScore:     70,
		SourceName:        model.SourceWARNAct,
		SourcePublishedAt: &publishedAt,
		AffectedEmployees: &employees,
		DeviceEstimate:    &devices,
	}))
	return company.ID
}

func doGet(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_Healthz(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doGet(t, api.router(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_ListOpportunities(t *testing.T) {
	api, st := newTestAPI(t)
	seedOpportunity(t, st)

	rec := doGet(t, api.router(), "/api/v1/opportunities")
	require.Equal(t, http.StatusOK, rec.Code)

	var result opportunity.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, "Hollow Tree Logistics Inc", result.Opportunities[0].CompanyName)
	assert.Equal(t, 900, result.TotalDevices)
}

func TestAPI_ListOpportunitiesFilters(t *testing.T) {
	api, st := newTestAPI(t)
	seedOpportunity(t, st)

	rec := doGet(t, api.router(), "/api/v1/opportunities?state=TX")
	require.Equal(t, http.StatusOK, rec.Code)

	var result opportunity.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Empty(t, result.Opportunities)
}

func TestAPI_ListOpportunitiesBadParam(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doGet(t, api.router(), "/api/v1/opportunities?limit=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetOpportunity(t *testing.T) {
	api, st := newTestAPI(t)
	companyID := seedOpportunity(t, st)

	rec := doGet(t, api.router(), "/api/v1/opportunities/"+companyID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Opportunity opportunity.Opportunity `json:"opportunity"`
		Signals     []model.Signal          `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, companyID, resp.Opportunity.CompanyID)
	assert.Len(t, resp.Signals, 1)
	assert.NotEmpty(t, resp.Opportunity.Justification)
}

func TestAPI_GetOpportunityNotFound(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doGet(t, api.router(), "/api/v1/opportunities/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_GetOpportunityBadID(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doGet(t, api.router(), "/api/v1/opportunities/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Gaps(t *testing.T) {
	api, st := newTestAPI(t)
	seedOpportunity(t, st)

	rec := doGet(t, api.router(), "/api/v1/gaps?states=OH")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
}

func TestAPI_GapsBadExclude(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doGet(t, api.router(), "/api/v1/gaps?exclude=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Sources(t *testing.T) {
	api, st := newTestAPI(t)
	require.NoError(t, st.RecordSourceRun(context.Background(), model.SourceWARNAct, model.SourceRun{
		RanAt:       time.Now().UTC(),
		Status:      model.RunStatusSuccess,
		SignalCount: 3,
	}))

	rec := doGet(t, api.router(), "/api/v1/sources")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap monitoring.HealthSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Sources, 1)
	assert.Equal(t, model.SourceWARNAct, snap.Sources[0].SourceType)
}
