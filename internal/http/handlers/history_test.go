package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"server/internal/domain"
)

func TestHistoryListReturnsEntries(t *testing.T) {
	app, _ := newTestApp(&fakeJobService{})
	app.History = &fakeHistoryService{entries: []domain.HistoryEntry{{
		UserID:     testUserID,
		JobID:      "6a2e7f1c-9d41-4c37-8a53-0f6de2c4b9aa",
		Module:     domain.ModuleImageGenerate,
		FinalURLs:  []string{"https://cdn.example.com/a.png"},
		CreditCost: 5,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}}

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/history", nil), testUserID)
	rr := httptest.NewRecorder()
	app.HistoryList(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	items, ok := decodeBody(rr)["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items = %#v", items)
	}
}

func TestHistoryListRejectsUnknownModuleFilter(t *testing.T) {
	app, _ := newTestApp(&fakeJobService{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/history?module=music.compose", nil), testUserID)
	rr := httptest.NewRecorder()
	app.HistoryList(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHistoryListRejectsNonPositiveLimit(t *testing.T) {
	app, _ := newTestApp(&fakeJobService{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/history?limit=0", nil), testUserID)
	rr := httptest.NewRecorder()
	app.HistoryList(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHistoryDeleteMissingEntryIsNotFound(t *testing.T) {
	app, _ := newTestApp(&fakeJobService{})
	app.History = &fakeHistoryService{deleteErr: domain.ErrNotFound}

	req := withUser(httptest.NewRequest(http.MethodDelete, "/v1/history/x", nil), testUserID)
	req = withURLParam(req, "job_id", "x")
	rr := httptest.NewRecorder()
	app.HistoryDelete(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHistoryDeleteReturnsNoContent(t *testing.T) {
	app, _ := newTestApp(&fakeJobService{})

	req := withUser(httptest.NewRequest(http.MethodDelete, "/v1/history/x", nil), testUserID)
	req = withURLParam(req, "job_id", "x")
	rr := httptest.NewRecorder()
	app.HistoryDelete(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestCreditsBalance(t *testing.T) {
	app, _ := newTestApp(&fakeJobService{})
	app.Credits = &fakeCreditService{balance: 120}

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/credits", nil), testUserID)
	rr := httptest.NewRecorder()
	app.CreditsBalance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := decodeBody(rr)["balance"]; got != float64(120) {
		t.Fatalf("balance = %v, want 120", got)
	}
}
