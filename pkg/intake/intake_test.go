package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func validPatient() Patient {
	return Patient{
		FirstName:     "Sam",
		LastName:      "Rivera",
		Email:         "sam@example.com",
		Age:           38,
		Sex:           "male",
		LossDuration:  "1-3y",
		FamilyHistory: true,
		Concerns:      []string{"temples", "crown"},
		Consent:       true,
	}
}

// testStore creates a store in a temp dir for testing.
func testStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(filepath.Join(t.TempDir(), "leads", "leads.json"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

type fakeSink struct {
	mu    sync.Mutex
	leads []*Lead
	err   error
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Send(ctx context.Context, lead *Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, lead)
	return f.err
}

func TestPatientValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Patient)
		want   string
	}{
		{"valid", func(p *Patient) {}, ""},
		{"no first name", func(p *Patient) { p.FirstName = " " }, "first_name"},
		{"no email", func(p *Patient) { p.Email = "" }, "email is required"},
		{"bad email", func(p *Patient) { p.Email = "not-an-email" }, "invalid"},
		{"too young", func(p *Patient) { p.Age = 12 }, "age"},
		{"unknown sex", func(p *Patient) { p.Sex = "x" }, "sex"},
		{"unknown duration", func(p *Patient) { p.LossDuration = "forever" }, "loss_duration"},
		{"no consent", func(p *Patient) { p.Consent = false }, "consent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPatient()
			tt.modify(&p)
			errs := p.Validate()
			if tt.want == "" {
				if len(errs) != 0 {
					t.Errorf("expected valid, got %v", errs)
				}
				return
			}
			if len(errs) == 0 || !strings.Contains(strings.Join(errs, ";"), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, errs)
			}
		})
	}
}

func TestToSubjectOmitsContact(t *testing.T) {
	p := validPatient()
	s := p.ToSubject()
	if s.Age != 38 || !s.FamilyHistory || len(s.Concerns) != 2 {
		t.Errorf("unexpected subject %+v", s)
	}
	data, _ := json.Marshal(s)
	if bytes.Contains(data, []byte("sam@example.com")) {
		t.Error("subject must not carry the email address")
	}
}

func TestJSONStorePersists(t *testing.T) {
	store := testStore(t)

	lead := &Lead{ID: "lead-1", Patient: validPatient()}
	if err := store.Save(lead); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if lead.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	reopened, err := NewJSONStore(store.Path())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get("lead-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Patient.Email != "sam@example.com" {
		t.Errorf("unexpected lead %+v", got)
	}
	if _, err := reopened.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save(&Lead{}); err == nil {
		t.Error("expected error for lead without ID")
	}
}

func TestRecorderSubmit(t *testing.T) {
	store := testStore(t)
	sink := &fakeSink{}
	rec := NewRecorder(store, nil, sink)

	lead, err := rec.Submit(context.Background(), validPatient(), "sess-1", "rep-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !lead.Forwarded || len(sink.leads) != 1 {
		t.Errorf("expected lead forwarded once, got forwarded=%v sends=%d", lead.Forwarded, len(sink.leads))
	}
	stored, _ := store.Get(lead.ID)
	if !stored.Forwarded || stored.SessionID != "sess-1" || stored.ReportID != "rep-1" {
		t.Errorf("unexpected stored lead %+v", stored)
	}
}

func TestRecorderSinkFailureKeepsLead(t *testing.T) {
	store := testStore(t)
	rec := NewRecorder(store, nil, &fakeSink{err: errors.New("crm down")})

	lead, err := rec.Submit(context.Background(), validPatient(), "sess-1", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if lead.Forwarded {
		t.Error("expected Forwarded false after sink failure")
	}
	if store.Count() != 1 {
		t.Errorf("expected lead stored locally, count=%d", store.Count())
	}
}

func TestRecorderRejectsInvalid(t *testing.T) {
	store := testStore(t)
	rec := NewRecorder(store, nil)

	p := validPatient()
	p.Consent = false
	if _, err := rec.Submit(context.Background(), p, "", ""); !errors.Is(err, ErrInvalidPatient) {
		t.Errorf("expected ErrInvalidPatient, got %v", err)
	}
	if store.Count() != 0 {
		t.Error("invalid lead must not be stored")
	}
}

func TestSupabaseSink(t *testing.T) {
	var row map[string]any
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &row)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sink := NewSupabaseSink(srv.URL+"/", "service-key")
	lead := &Lead{ID: "lead-9", Patient: validPatient(), Source: "scan"}
	if err := sink.Send(context.Background(), lead); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/rest/v1/leads" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer service-key" {
		t.Errorf("Authorization = %q", auth)
	}
	if row["email"] != "sam@example.com" || row["id"] != "lead-9" {
		t.Errorf("unexpected row %v", row)
	}
}

func TestExportParquet(t *testing.T) {
	leads := []*Lead{
		{ID: "a", Patient: validPatient(), SessionID: "s1"},
		{ID: "b", Patient: Patient{FirstName: "Alex", Email: "alex@example.com", Consent: true}},
	}

	var buf bytes.Buffer
	if err := ExportParquet(&buf, leads); err != nil {
		t.Fatalf("ExportParquet: %v", err)
	}

	pf, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("failed to open parquet: %v", err)
	}
	if pf.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", pf.NumRows())
	}

	reader := parquet.NewGenericReader[LeadRow](pf)
	defer reader.Close()
	rows := make([]LeadRow, 2)
	n, _ := reader.Read(rows)
	if n != 2 {
		t.Fatalf("read %d rows", n)
	}
	if rows[0].Concerns != "temples;crown" || rows[0].Age != 38 || rows[1].Email != "alex@example.com" {
		t.Errorf("unexpected rows %+v", rows)
	}
}
