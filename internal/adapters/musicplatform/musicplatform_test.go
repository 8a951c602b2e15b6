package musicplatform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSchedule_SendsAccountScopedOwnerID(t *testing.T) {
	var gotVars map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotVars = req.Variables
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"createSchedule":{"schedule":{"id":"sched_123"}}}}`))
	}))
	defer srv.Close()

	client := New("token", srv.URL)
	scheduleID, err := client.CreateSchedule(context.Background(), "account_1", "My Schedule", "desc", []ScheduleSlot{
		{RRule: "FREQ=WEEKLY;BYDAY=MO", Start: "090000", DurationMs: 3600000, PlaylistIDs: []string{"p1"}},
	})
	if err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	if scheduleID != "sched_123" {
		t.Fatalf("expected schedule id sched_123, got %s", scheduleID)
	}
	if gotVars["ownerId"] != "account_1" {
		t.Fatalf("expected ownerId=account_1 (account-scoped), got %v", gotVars["ownerId"])
	}
	if _, stillZoneScoped := gotVars["zoneId"]; stillZoneScoped {
		t.Fatalf("expected no zoneId variable, schedule creation is account-scoped: %v", gotVars)
	}
}
