package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/yaserfarook1/SentinalLens/internal/models"
	"github.com/yaserfarook1/SentinalLens/internal/store"
)

// fakeWorkspace serves a minimal two-table workspace.
type fakeWorkspace struct {
	tablesErr error
}

func (f *fakeWorkspace) ListTables(context.Context, string) ([]models.TableFact, error) {
	if f.tablesErr != nil {
		return nil, f.tablesErr
	}
	return []models.TableFact{
		{Name: "AuditLogs", CurrentTier: models.TierHot, RetentionDays: 90},
		{Name: "SigninLogs", CurrentTier: models.TierHot, RetentionDays: 90},
	}, nil
}

func (f *fakeWorkspace) IngestionVolumes(context.Context, string, int) (map[string]float64, error) {
	return map[string]float64{"AuditLogs": 0.1, "SigninLogs": 4.2}, nil
}

func (f *fakeWorkspace) ListRules(context.Context, string) ([]models.QuerySource, error) {
	return []models.QuerySource{
		{ID: "rule-1", Kind: models.SourceRule, Query: "SigninLogs | where ResultType != 0"},
		{ID: "rule-2", Kind: models.SourceRule, Query: "SigninLogs | take 10"},
		{ID: "rule-3", Kind: models.SourceRule, Query: "SigninLogs | count"},
	}, nil
}

func (f *fakeWorkspace) ListWorkbooks(context.Context, string) ([]models.QuerySource, error) {
	return nil, nil
}

func (f *fakeWorkspace) ListHuntQueries(context.Context, string) ([]models.QuerySource, error) {
	return nil, nil
}

func (f *fakeWorkspace) ListConnectors(context.Context, string) (models.ConnectorMapping, error) {
	return nil, nil
}

func (f *fakeWorkspace) TierPrices(context.Context, string) (models.TierPrices, error) {
	return models.TierPrices{
		Region: "eastus",
		PerGB: map[models.Tier]float64{
			models.TierHot:     0.10,
			models.TierBasic:   0.05,
			models.TierArchive: 0.002,
		},
	}, nil
}

func newTestServer(t *testing.T, ws *fakeWorkspace) *httptest.Server {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "api-test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	srv, err := New(Options{
		Workspace: ws,
		Store:     st,
		Region:    "eastus",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func startRun(t *testing.T, ts *httptest.Server, body string) startAuditResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/audits", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST audits: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var started startAuditResponse
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if started.RunID == "" {
		t.Fatalf("expected a run ID")
	}
	return started
}

func waitForTerminal(t *testing.T, ts *httptest.Server, runID string) models.AuditRun {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/api/v1/audits/" + runID)
		if err != nil {
			t.Fatalf("GET run: %v", err)
		}
		var run models.AuditRun
		err = json.NewDecoder(resp.Body).Decode(&run)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decoding run: %v", err)
		}
		if run.Status.Terminal() {
			return run
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal state", runID)
	return models.AuditRun{}
}

func TestStartAuditAndFetchReport(t *testing.T) {
	ts := newTestServer(t, &fakeWorkspace{})

	started := startRun(t, ts, `{"workspace_id":"ws-1","lookback_days":90}`)
	run := waitForTerminal(t, ts, started.RunID)
	if run.Status != models.RunCompleted {
		t.Fatalf("expected Completed, got %s (%s)", run.Status, run.Error)
	}

	resp, err := http.Get(ts.URL + "/api/v1/audits/" + started.RunID + "/report")
	if err != nil {
		t.Fatalf("GET report: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var rep models.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if rep.RunID != started.RunID || rep.Summary.TotalTables != 2 {
		t.Fatalf("unexpected report: run=%s tables=%d", rep.RunID, rep.Summary.TotalTables)
	}
	if len(rep.ArchiveCandidates) != 1 || rep.ArchiveCandidates[0].TableName != "AuditLogs" {
		t.Fatalf("unexpected candidates: %+v", rep.ArchiveCandidates)
	}
}

func TestStartAuditValidation(t *testing.T) {
	ts := newTestServer(t, &fakeWorkspace{})

	resp, err := http.Post(ts.URL+"/api/v1/audits", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST audits: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing workspace_id, got %d", resp.StatusCode)
	}
}

func TestGetRunNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeWorkspace{})

	resp, err := http.Get(ts.URL + "/api/v1/audits/nope")
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestReportUnavailableForFailedRun(t *testing.T) {
	ts := newTestServer(t, &fakeWorkspace{tablesErr: errors.New("workspace unreachable")})

	started := startRun(t, ts, `{"workspace_id":"ws-1"}`)
	run := waitForTerminal(t, ts, started.RunID)
	if run.Status != models.RunFailed {
		t.Fatalf("expected Failed, got %s", run.Status)
	}
	if run.Error == "" {
		t.Fatalf("expected failure reason on the run")
	}

	resp, err := http.Get(ts.URL + "/api/v1/audits/" + started.RunID + "/report")
	if err != nil {
		t.Fatalf("GET report: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for failed run's report, got %d", resp.StatusCode)
	}
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t, &fakeWorkspace{})

	first := startRun(t, ts, `{"workspace_id":"ws-1"}`)
	waitForTerminal(t, ts, first.RunID)

	resp, err := http.Get(ts.URL + "/api/v1/audits?workspace_id=ws-1")
	if err != nil {
		t.Fatalf("GET audits: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Runs []models.AuditRun `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(body.Runs) != 1 || body.Runs[0].ID != first.RunID {
		t.Fatalf("unexpected runs: %+v", body.Runs)
	}
}

func TestEventsStreamForFinishedRun(t *testing.T) {
	ts := newTestServer(t, &fakeWorkspace{})

	started := startRun(t, ts, `{"workspace_id":"ws-1"}`)
	waitForTerminal(t, ts, started.RunID)

	resp, err := http.Get(ts.URL + "/api/v1/audits/" + started.RunID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if !bytes.Contains(data, []byte("Completed")) {
		t.Fatalf("expected terminal event in stream, got %q", data)
	}
}

func TestProgressHub(t *testing.T) {
	hub := newProgressHub()

	ch, live := hub.subscribe("run-1")
	if !live {
		t.Fatalf("expected live subscription")
	}

	hub.publish(models.ProgressEvent{RunID: "run-1", StepName: "inventory_tables", Status: "running"})
	select {
	case ev := <-ch:
		if ev.StepName != "inventory_tables" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatalf("expected a buffered event")
	}

	// Events for other runs must not reach this subscriber.
	hub.publish(models.ProgressEvent{RunID: "run-2", StepName: "tier_prices"})
	select {
	case ev := <-ch:
		t.Fatalf("unexpected cross-run event: %+v", ev)
	default:
	}

	hub.closeRun("run-1")
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after closeRun")
	}
	if _, live := hub.subscribe("run-1"); live {
		t.Fatalf("expected no live subscription for a finished run")
	}
}
