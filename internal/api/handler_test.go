package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/gridsynapse/internal/metrics"
	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/repository"
	"github.com/kirychukyurii/gridsynapse/internal/service"
)

type fakeService struct {
	submitted *model.Job
	submitErr error
	jobs      map[string]*model.JobStatus
	request   *model.OptimizeRequest
	result    *model.OptimizationResult
	dcs       []model.Datacenter
	dcErr     error
}

func (f *fakeService) SubmitJob(_ context.Context, job *model.Job) (*model.SubmitResult, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = job
	return &model.SubmitResult{JobID: job.ID, Status: "queued", QueueLength: 1}, nil
}

func (f *fakeService) GetJob(_ context.Context, id string) (*model.JobStatus, error) {
	if status, ok := f.jobs[id]; ok {
		return status, nil
	}
	return nil, fmt.Errorf("failed to get job %s: %w", id, repository.ErrJobNotFound)
}

func (f *fakeService) Optimize(_ context.Context, req *model.OptimizeRequest) (*model.OptimizationResult, error) {
	f.request = req
	return f.result, nil
}

func (f *fakeService) ListDatacenters(_ context.Context) ([]model.Datacenter, error) {
	return f.dcs, f.dcErr
}

func (f *fakeService) Health(_ context.Context) *model.Health {
	return &model.Health{Status: "healthy", Version: service.Version, Services: map[string]string{"memory": "healthy"}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJob(t *testing.T) {
	svc := &fakeService{}
	router := NewHandler(svc, nil, "", testLogger()).Router()

	rec := serve(t, router, http.MethodPost, "/api/v1/jobs",
		`{"id":"j1","compute_units":10,"duration_hours":2,"flexibility_window":4,"value":1.5}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got model.SubmitResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "j1", got.JobID)
	assert.Equal(t, "queued", got.Status)

	require.NotNil(t, svc.submitted)
	assert.Equal(t, 10, svc.submitted.ComputeUnits)
	assert.Equal(t, 4, svc.submitted.FlexibilityWindow)
}

func TestSubmitJobErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		submitErr error
		wantCode  int
	}{
		{name: "malformed body", body: `{"id":`, wantCode: http.StatusBadRequest},
		{name: "invalid job", body: `{"id":"j1"}`, submitErr: fmt.Errorf("%w: compute_units must be positive", service.ErrInvalidJob), wantCode: http.StatusBadRequest},
		{name: "store failure", body: `{"id":"j1"}`, submitErr: errors.New("connection refused"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewHandler(&fakeService{submitErr: tt.submitErr}, nil, "", testLogger()).Router()
			rec := serve(t, router, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var got errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestGetJob(t *testing.T) {
	svc := &fakeService{jobs: map[string]*model.JobStatus{
		"j1": {
			Job:      &model.Job{ID: "j1", ComputeUnits: 5, DurationHours: 1},
			Schedule: &model.ScheduleRecord{JobID: "j1", Status: model.ScheduleStatusScheduled},
		},
	}}
	router := NewHandler(svc, nil, "", testLogger()).Router()

	rec := serve(t, router, http.MethodGet, "/api/v1/jobs/j1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.JobStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "j1", got.Job.ID)
	require.NotNil(t, got.Schedule)
	assert.Equal(t, model.ScheduleStatusScheduled, got.Schedule.Status)

	rec = serve(t, router, http.MethodGet, "/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptimize(t *testing.T) {
	svc := &fakeService{result: &model.OptimizationResult{
		Success:      true,
		SolverStatus: model.StatusOptimal,
		Schedule:     []model.ScheduleEntry{{JobID: "j1", DatacenterID: "dc1", StartHour: 2, EndHour: 3}},
	}}
	router := NewHandler(svc, nil, "", testLogger()).Router()

	rec := serve(t, router, http.MethodPost, "/api/v1/optimize",
		`{"jobs":[{"id":"j1","compute_units":1,"duration_hours":1}],"horizon_hours":6,"carbon_weight":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, svc.request)
	require.Len(t, svc.request.Jobs, 1)
	require.NotNil(t, svc.request.HorizonHours)
	assert.Equal(t, 6, *svc.request.HorizonHours)
	require.NotNil(t, svc.request.CarbonWeight)
	assert.Zero(t, *svc.request.CarbonWeight)
	assert.Nil(t, svc.request.Datacenters)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, model.StatusOptimal, got["solver_status"])

	rec = serve(t, router, http.MethodPost, "/api/v1/optimize", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDatacenters(t *testing.T) {
	svc := &fakeService{dcs: []model.Datacenter{
		{ID: "dc1", Location: "us-west-2a", CapacityUnits: 100, Prices: []float64{1}, CarbonIntensity: []float64{50}},
	}}
	router := NewHandler(svc, nil, "", testLogger()).Router()

	rec := serve(t, router, http.MethodGet, "/api/v1/datacenters", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []model.Datacenter
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "dc1", got[0].ID)

	svc.dcErr = errors.New("no datacenters available")
	rec = serve(t, router, http.MethodGet, "/api/v1/datacenters", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	router := NewHandler(&fakeService{}, nil, "", testLogger()).Router()

	rec := serve(t, router, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Health
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, service.Version, got.Version)
}

func TestRouterBasePathAndMetrics(t *testing.T) {
	m := metrics.New()
	m.JobSubmitted()
	router := NewHandler(&fakeService{}, m.Handler(), "/gridsynapse", testLogger()).Router()

	rec := serve(t, router, http.MethodGet, "/gridsynapse/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, router, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, router, http.MethodGet, "/gridsynapse/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gridsynapse_jobs_submitted_total")
}
