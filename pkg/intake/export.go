package intake

import (
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// LeadRow is the flat parquet layout of a lead.
type LeadRow struct {
	ID            string `parquet:"id"`
	FirstName     string `parquet:"first_name"`
	LastName      string `parquet:"last_name"`
	Email         string `parquet:"email"`
	Phone         string `parquet:"phone,optional"`
	Age           int32  `parquet:"age"`
	Sex           string `parquet:"sex,optional"`
	LossDuration  string `parquet:"loss_duration,optional"`
	FamilyHistory bool   `parquet:"family_history"`
	Concerns      string `parquet:"concerns"`
	SessionID     string `parquet:"session_id,optional"`
	ReportID      string `parquet:"report_id,optional"`
	CreatedAtUnix int64  `parquet:"created_at_unix"`
	Forwarded     bool   `parquet:"forwarded"`
}

// Row flattens a lead for export.
func (l *Lead) Row() LeadRow {
	p := l.Patient
	return LeadRow{
		ID:            l.ID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Email:         p.Email,
		Phone:         p.Phone,
		Age:           int32(p.Age),
		Sex:           p.Sex,
		LossDuration:  p.LossDuration,
		FamilyHistory: p.FamilyHistory,
		Concerns:      strings.Join(p.Concerns, ";"),
		SessionID:     l.SessionID,
		ReportID:      l.ReportID,
		CreatedAtUnix: l.CreatedAt.Unix(),
		Forwarded:     l.Forwarded,
	}
}

// ExportParquet writes leads to w as a parquet file.
func ExportParquet(w io.Writer, leads []*Lead) error {
	rows := make([]LeadRow, len(leads))
	for i, l := range leads {
		rows[i] = l.Row()
	}

	writer := parquet.NewGenericWriter[LeadRow](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
