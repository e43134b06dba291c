// Package intake collects patient details and turns completed scans into
// leads that are stored locally and optionally forwarded to a CRM.
package intake

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/teslashibe/go-scalpscan/pkg/analysis"
)

// Loss durations offered by the intake form.
var LossDurations = []string{"<1y", "1-3y", "3-5y", "5y+"}

// Patient is the intake form a visitor fills in around the scan.
type Patient struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`

	Age           int      `json:"age,omitempty"`
	Sex           string   `json:"sex,omitempty"`
	LossDuration  string   `json:"loss_duration,omitempty"`
	FamilyHistory bool     `json:"family_history,omitempty"`
	Concerns      []string `json:"concerns,omitempty"`
	Treatments    []string `json:"treatments,omitempty"`

	// Consent to be contacted and to have photos reviewed. Required.
	Consent bool `json:"consent"`
}

// Validate checks the form and returns a list of problems, empty if valid.
func (p *Patient) Validate() []string {
	var errs []string

	if strings.TrimSpace(p.FirstName) == "" {
		errs = append(errs, "first_name is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		errs = append(errs, "email is required")
	} else if _, err := mail.ParseAddress(p.Email); err != nil {
		errs = append(errs, fmt.Sprintf("email %q is invalid", p.Email))
	}
	if p.Age != 0 && (p.Age < 18 || p.Age > 120) {
		errs = append(errs, "age must be between 18 and 120")
	}
	switch p.Sex {
	case "", "male", "female", "other":
	default:
		errs = append(errs, fmt.Sprintf("sex %q is not one of male, female, other", p.Sex))
	}
	if p.LossDuration != "" && !contains(LossDurations, p.LossDuration) {
		errs = append(errs, fmt.Sprintf("loss_duration must be one of %s", strings.Join(LossDurations, ", ")))
	}
	if !p.Consent {
		errs = append(errs, "consent is required")
	}

	return errs
}

// FullName joins first and last name.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ToSubject returns the clinical fields sent to an analysis provider.
// Contact details are not included.
func (p *Patient) ToSubject() *analysis.Subject {
	return &analysis.Subject{
		Age:           p.Age,
		Sex:           p.Sex,
		LossDuration:  p.LossDuration,
		FamilyHistory: p.FamilyHistory,
		Concerns:      p.Concerns,
		Treatments:    p.Treatments,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
