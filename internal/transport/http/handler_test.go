package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"elevate-assessment-service/internal/advisor"
	"elevate-assessment-service/internal/app"
	"elevate-assessment-service/internal/domain"
	"elevate-assessment-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Service) {
	t.Helper()
	store := memory.NewStore()
	store.SeedQuestionnaire(
		domain.Questionnaire{ID: "qn-1", Name: "Business Maturity", Version: "v1"},
		[]domain.Question{
			{ID: "q1", QuestionnaireID: "qn-1", Text: "Revenue?", Type: domain.QuestionMCQ, OrderIndex: 1},
		},
		[]domain.Option{
			{ID: "q1o1", QuestionID: "q1", Label: "Low", OrderIndex: 1, Weight: 10},
			{ID: "q1o2", QuestionID: "q1", Label: "High", OrderIndex: 2, Weight: 60},
		},
	)
	store.SeedRules([]domain.StageRule{
		{ID: "r1", MinScore: 0, MaxScore: 50, TargetStage: "StartUp", Priority: 1},
		{ID: "r2", MinScore: 50.000001, MaxScore: 100, TargetStage: "Scale", Priority: 2},
	})

	service := app.NewService(store, nil, advisor.NewStaticClient(), time.Second)
	handler := NewHandler(service)

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func doJSON(t *testing.T, method, url, clientID string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if clientID != "" {
		req.Header.Set("X-Client-ID", clientID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAssignmentFlow(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/assignments", "", map[string]any{
		"clientId":        "client-1",
		"questionnaireId": "qn-1",
		"stageId":         "stage-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("assign: expected 201, got %d", resp.StatusCode)
	}
	created := decode[domain.Assignment](t, resp)
	if created.ID == "" || created.Status != domain.StatusAssigned {
		t.Fatalf("unexpected assignment %+v", created)
	}

	// Duplicate assignment conflicts.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/assignments", "", map[string]any{
		"clientId":        "client-1",
		"questionnaireId": "qn-1",
		"stageId":         "stage-1",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate assign: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/assignments", "client-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	list := decode[[]domain.Assignment](t, resp)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	// Save a draft, then finalize.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/assignments/"+created.ID+"/answers", "client-1", map[string]any{
		"items": []map[string]any{{"questionId": "q1", "optionIds": []string{"q1o2"}}},
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("save: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/assignments/"+created.ID+"/finalize", "client-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize: expected 200, got %d", resp.StatusCode)
	}
	finalized := decode[domain.Assignment](t, resp)
	if finalized.Status != domain.StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", finalized.Status)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/assignments/"+created.ID, "client-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("details: expected 200, got %d", resp.StatusCode)
	}
	details := decode[app.AssignmentDetails](t, resp)
	if details.Assignment.Status != domain.StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", details.Assignment.Status)
	}
	if details.Assignment.Score == nil || *details.Assignment.Score != 60 || details.Assignment.ResolvedStage != "Scale" {
		t.Fatalf("unexpected outcome %+v", details.Assignment)
	}
	if len(details.Questions) != 1 || details.Questions[0].Answer == nil {
		t.Fatalf("expected answered question in details, got %+v", details.Questions)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server, service := newTestServer(t)

	a, err := service.Assign(context.Background(), "client-1", "qn-1", "stage-1", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Missing identity header.
	resp := doJSON(t, http.MethodGet, server.URL+"/api/assignments", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Foreign caller.
	resp = doJSON(t, http.MethodGet, server.URL+"/api/assignments/"+a.ID, "client-2", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown assignment.
	resp = doJSON(t, http.MethodGet, server.URL+"/api/assignments/unknown", "client-1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Resubmission conflicts.
	submit := map[string]any{
		"items":  []map[string]any{{"questionId": "q1", "optionIds": []string{"q1o1"}}},
		"submit": true,
	}
	resp = doJSON(t, http.MethodPost, server.URL+"/api/assignments/"+a.ID+"/answers", "client-1", submit)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("submit: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, server.URL+"/api/assignments/"+a.ID+"/answers", "client-1", submit)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("resubmit: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAttemptEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/attempts", "client-1", map[string]any{
		"questionnaireId": "qn-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start attempt: expected 201, got %d", resp.StatusCode)
	}
	at := decode[domain.Attempt](t, resp)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/attempts/"+at.ID+"/answers", "client-1", map[string]any{
		"items": []map[string]any{{"questionId": "q1", "value": "80"}},
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("save attempt answers: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/attempts/"+at.ID+"/finalize", "client-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize attempt: expected 200, got %d", resp.StatusCode)
	}
	done := decode[domain.Attempt](t, resp)
	if done.TotalScore == nil || *done.TotalScore != 80 || done.RecommendedStage != "Scale" {
		t.Fatalf("unexpected attempt outcome %+v", done)
	}
}
