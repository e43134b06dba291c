package intake

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/teslashibe/go-scalpscan/internal/httpc"
)

// SupabaseSink forwards leads to a Supabase table over the REST API.
type SupabaseSink struct {
	url   string
	key   string
	table string
}

// NewSupabaseSink creates a sink for the leads table of the project at url.
func NewSupabaseSink(url, key string) *SupabaseSink {
	return &SupabaseSink{
		url:   strings.TrimRight(url, "/"),
		key:   key,
		table: "leads",
	}
}

// supabaseRow is the flat row layout of the leads table.
type supabaseRow struct {
	ID            string   `json:"id"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone,omitempty"`
	Age           int      `json:"age,omitempty"`
	Sex           string   `json:"sex,omitempty"`
	LossDuration  string   `json:"loss_duration,omitempty"`
	FamilyHistory bool     `json:"family_history"`
	Concerns      []string `json:"concerns"`
	SessionID     string   `json:"session_id,omitempty"`
	ReportID      string   `json:"report_id,omitempty"`
	Source        string   `json:"source"`
	CreatedAt     string   `json:"created_at"`
}

// Name implements Sink.
func (s *SupabaseSink) Name() string { return "supabase" }

// Send implements Sink.
func (s *SupabaseSink) Send(ctx context.Context, lead *Lead) error {
	p := lead.Patient
	concerns := p.Concerns
	if concerns == nil {
		concerns = []string{}
	}
	body, err := json.Marshal(supabaseRow{
		ID:            lead.ID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Email:         p.Email,
		Phone:         p.Phone,
		Age:           p.Age,
		Sex:           p.Sex,
		LossDuration:  p.LossDuration,
		FamilyHistory: p.FamilyHistory,
		Concerns:      concerns,
		SessionID:     lead.SessionID,
		ReportID:      lead.ReportID,
		Source:        lead.Source,
		CreatedAt:     lead.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return err
	}

	return httpc.PostJSON(ctx, s.url+"/rest/v1/"+s.table, map[string]string{
		"apikey":        s.key,
		"Authorization": "Bearer " + s.key,
		"Prefer":        "return=minimal",
	}, body)
}
