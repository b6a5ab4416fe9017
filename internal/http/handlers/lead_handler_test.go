package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/services"
)

type recordingNotifier struct {
	mu    sync.Mutex
	leads []string
	err   error
	ctxOK bool
}

func (n *recordingNotifier) LeadCreated(ctx context.Context, l *domain.Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, l.ID)
	n.ctxOK = ctx.Err() == nil
	return n.err
}

func leadRouter(h *Handlers) http.Handler {
	r := newEngine()
	r.POST("/leads", h.IngestLead)
	r.GET("/leads", h.ListLeads)
	r.GET("/leads/stats", h.LeadStats)
	r.POST("/leads/manual", h.CreateManualLead)
	r.GET("/leads/:id", h.GetLead)
	r.PATCH("/leads/:id", h.UpdateLead)
	r.DELETE("/leads/:id", h.DeleteLead)
	return r
}

func TestIngestLead_CreatedThenUpdated(t *testing.T) {
	seen := map[string]bool{}
	leads := stubLeads{ingest: func(_ context.Context, raw map[string]any) (*domain.Lead, bool, error) {
		pid, _ := raw["place_id"].(string)
		isNew := !seen[pid]
		seen[pid] = true
		return &domain.Lead{ID: "lead-1", PlaceID: pid, Title: "Acme"}, isNew, nil
	}}
	n := &recordingNotifier{}
	r := leadRouter(newTestHandlers(Deps{Leads: leads, Notifier: n}))

	body := map[string]any{"place_id": "p1", "title": "Acme"}

	w := doJSON(r, http.MethodPost, "/leads", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first ingest: status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[IngestLeadResponse](t, w)
	if !resp.Success || !resp.IsNew || resp.Message != "Lead created successfully" || resp.Data.PlaceID != "p1" {
		t.Fatalf("unexpected create body: %+v", resp)
	}

	w = doJSON(r, http.MethodPost, "/leads", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("second ingest: status=%d", w.Code)
	}
	resp = decode[IngestLeadResponse](t, w)
	if resp.IsNew || resp.Message != "Lead updated successfully" {
		t.Fatalf("unexpected update body: %+v", resp)
	}

	if len(n.leads) != 1 || n.leads[0] != "lead-1" {
		t.Fatalf("notifier should fire once for the new lead, got %v", n.leads)
	}
	if !n.ctxOK {
		t.Fatalf("notification context must outlive the request")
	}
}

func TestIngestLead_NotifierFailureDoesNotFailRequest(t *testing.T) {
	leads := stubLeads{ingest: func(context.Context, map[string]any) (*domain.Lead, bool, error) {
		return &domain.Lead{ID: "l"}, true, nil
	}}
	n := &recordingNotifier{err: errors.New("smtp down")}
	r := leadRouter(newTestHandlers(Deps{Leads: leads, Notifier: n}))

	if w := doJSON(r, http.MethodPost, "/leads", map[string]any{"place_id": "x", "title": "y"}, nil); w.Code != http.StatusCreated {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestIngestLead_BadBodies(t *testing.T) {
	called := false
	leads := stubLeads{ingest: func(context.Context, map[string]any) (*domain.Lead, bool, error) {
		called = true
		return nil, false, nil
	}}
	r := leadRouter(newTestHandlers(Deps{Leads: leads}))

	for _, body := range []string{"", "null", "[1,2]", "{not json"} {
		w := doJSON(r, http.MethodPost, "/leads", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d", body, w.Code)
		}
	}
	if called {
		t.Fatalf("service must not be called for malformed bodies")
	}
}

func TestIngestLead_ValidationAndInternalErrors(t *testing.T) {
	var next error
	leads := stubLeads{ingest: func(context.Context, map[string]any) (*domain.Lead, bool, error) {
		return nil, false, next
	}}

	next = &services.ValidationError{Field: "place_id", Message: "place_id is required"}
	r := leadRouter(newTestHandlers(Deps{Leads: leads, Production: true}))
	w := doJSON(r, http.MethodPost, "/leads", map[string]any{"title": "t"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation: status=%d", w.Code)
	}
	if er := decode[ErrorResponse](t, w); er.Code != ErrCodeValidation || er.Error != "place_id: place_id is required" {
		t.Fatalf("validation body: %+v", er)
	}

	next = errors.New("database is locked")
	w = doJSON(r, http.MethodPost, "/leads", map[string]any{"place_id": "p", "title": "t"}, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("internal: status=%d", w.Code)
	}
	er := decode[ErrorResponse](t, w)
	if er.Error != "internal server error" || er.Details != "" || er.RequestID != "rid-test" {
		t.Fatalf("production must hide driver errors: %+v", er)
	}
}

func TestListLeads_PassesQueryAndFlattensMeta(t *testing.T) {
	var gotStatus string
	var gotPage, gotLimit int
	leads := stubLeads{list: func(_ context.Context, st string, p, l int) (services.PageResult[domain.Lead], error) {
		gotStatus, gotPage, gotLimit = st, p, l
		return services.PageResult[domain.Lead]{
			Items: []domain.Lead{{ID: "a"}, {ID: "b"}}, Total: 250, Page: 2, Limit: 100, TotalPages: 3,
		}, nil
	}}
	r := leadRouter(newTestHandlers(Deps{Leads: leads}))

	w := doJSON(r, http.MethodGet, "/leads?status=called&page=2&limit=999999", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if gotStatus != "called" || gotPage != 2 || gotLimit != 999999 {
		t.Fatalf("query not forwarded: %q %d %d", gotStatus, gotPage, gotLimit)
	}
	body := decode[map[string]any](t, w)
	if body["success"] != true || body["total"].(float64) != 250 || body["limit"].(float64) != 100 || body["totalPages"].(float64) != 3 {
		t.Fatalf("unexpected envelope: %v", body)
	}
	if data, _ := body["data"].([]any); len(data) != 2 {
		t.Fatalf("expected 2 items, got %v", body["data"])
	}

	// Malformed numbers fall back to service defaults.
	_ = doJSON(r, http.MethodGet, "/leads?page=abc&limit=", nil, nil)
	if gotPage != 0 || gotLimit != 0 {
		t.Fatalf("malformed page/limit should become 0, got %d %d", gotPage, gotLimit)
	}
}

func TestLeadStats(t *testing.T) {
	leads := stubLeads{stats: func(context.Context) (services.LeadStats, error) {
		return services.LeadStats{Total: 3, ByStatus: map[string]int64{"new": 2, "called": 1}}, nil
	}}
	r := leadRouter(newTestHandlers(Deps{Leads: leads}))
	w := doJSON(r, http.MethodGet, "/leads/stats", nil, nil)
	resp := decode[LeadStatsResponse](t, w)
	if w.Code != http.StatusOK || resp.Data.Total != 3 || resp.Data.ByStatus["new"] != 2 {
		t.Fatalf("unexpected stats: %d %+v", w.Code, resp)
	}
}

func TestCreateManualLead(t *testing.T) {
	var got services.ManualLeadInput
	leads := stubLeads{createManual: func(_ context.Context, in services.ManualLeadInput) (*domain.Lead, error) {
		got = in
		if in.PlaceID == "dup" {
			return nil, services.ErrPlaceIDExists
		}
		return &domain.Lead{ID: "m1", Title: in.Title, IsManual: true}, nil
	}}
	r := leadRouter(newTestHandlers(Deps{Leads: leads}))

	w := doJSON(r, http.MethodPost, "/leads/manual", map[string]any{"title": "Walk-in", "email": "a@b.co", "notes": "met at fair"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.Title != "Walk-in" || got.Email == nil || *got.Email != "a@b.co" || got.Notes == nil {
		t.Fatalf("input not mapped: %+v", got)
	}
	if resp := decode[LeadResponse](t, w); !resp.Data.IsManual {
		t.Fatalf("expected manual lead: %+v", resp)
	}

	w = doJSON(r, http.MethodPost, "/leads/manual", map[string]any{"title": "x", "placeId": "dup"}, nil)
	if w.Code != http.StatusConflict || decode[ErrorResponse](t, w).Code != ErrCodeConflict {
		t.Fatalf("duplicate: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestLeadByID_Routes(t *testing.T) {
	id := uuid.NewString()
	var patch services.WorkflowPatch
	leads := stubLeads{
		get: func(_ context.Context, got string) (*domain.Lead, error) {
			if got != id {
				return nil, services.ErrLeadNotFound
			}
			return &domain.Lead{ID: id}, nil
		},
		update: func(_ context.Context, got string, p services.WorkflowPatch) (*domain.Lead, error) {
			patch = p
			if p.Status != nil && *p.Status == "bogus" {
				return nil, &services.ValidationError{Field: "status", Message: "bad"}
			}
			return &domain.Lead{ID: got, Status: *p.Status}, nil
		},
		del: func(_ context.Context, got string) error {
			if got != id {
				return services.ErrLeadNotFound
			}
			return nil
		},
	}
	r := leadRouter(newTestHandlers(Deps{Leads: leads}))

	if w := doJSON(r, http.MethodGet, "/leads/not-a-uuid", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/leads/"+id, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("get: status=%d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/leads/"+uuid.NewString(), nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get missing: status=%d", w.Code)
	}
	for _, alt := range []string{"{" + id + "}", "urn:uuid:" + id, strings.ToUpper(id)} {
		if w := doJSON(r, http.MethodGet, "/leads/"+alt, nil, nil); w.Code != http.StatusOK {
			t.Fatalf("get %q: status=%d", alt, w.Code)
		}
	}

	w := doJSON(r, http.MethodPatch, "/leads/"+id, map[string]any{"status": "called", "notes": ""}, nil)
	if w.Code != http.StatusOK || patch.Status == nil || *patch.Status != "called" || patch.Notes == nil || patch.Action != nil {
		t.Fatalf("patch: status=%d patch=%+v", w.Code, patch)
	}
	if w := doJSON(r, http.MethodPatch, "/leads/"+id, map[string]any{"status": "bogus"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad patch: status=%d", w.Code)
	}

	if w := doJSON(r, http.MethodDelete, "/leads/"+id, nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status=%d", w.Code)
	}
	if w := doJSON(r, http.MethodDelete, "/leads/"+uuid.NewString(), nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete missing: status=%d", w.Code)
	}
}
