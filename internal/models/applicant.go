package models

import (
	"strings"
	"time"
)

// ApplicantStatus is the pipeline stage of an applicant.
type ApplicantStatus string

const (
	StatusNew                ApplicantStatus = "new"
	StatusInProgress         ApplicantStatus = "in-progress"
	StatusApproved           ApplicantStatus = "approved"
	StatusCurrent            ApplicantStatus = "current"
	StatusRejected           ApplicantStatus = "rejected"
	StatusRejectedNew        ApplicantStatus = "rejected_new"
	StatusRejectedInProgress ApplicantStatus = "rejected_in-progress"
	StatusRejectedApproved   ApplicantStatus = "rejected_approved"
)

const rejectedPrefix = "rejected_"

// AllStatuses lists the closed status set in pipeline order.
var AllStatuses = []ApplicantStatus{
	StatusNew,
	StatusInProgress,
	StatusApproved,
	StatusCurrent,
	StatusRejected,
	StatusRejectedNew,
	StatusRejectedInProgress,
	StatusRejectedApproved,
}

// ParseApplicantStatus maps a raw sheet value onto the closed set. Unknown values become new.
func ParseApplicantStatus(raw string) ApplicantStatus {
	s := ApplicantStatus(strings.TrimSpace(raw))
	if s.Valid() {
		return s
	}
	return StatusNew
}

// Valid reports whether s belongs to the closed status set.
func (s ApplicantStatus) Valid() bool {
	for _, candidate := range AllStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsRejected reports whether s is the generic rejection or one of its side states.
func (s ApplicantStatus) IsRejected() bool {
	return s == StatusRejected || strings.HasPrefix(string(s), rejectedPrefix)
}

// Reject returns the rejection side state that remembers where the applicant was.
func (s ApplicantStatus) Reject() ApplicantStatus {
	switch s {
	case StatusNew, StatusInProgress, StatusApproved:
		return ApplicantStatus(rejectedPrefix + string(s))
	case StatusRejectedNew, StatusRejectedInProgress, StatusRejectedApproved:
		return s
	default:
		return StatusRejected
	}
}

// Restore undoes Reject. Non-rejected statuses are returned unchanged.
func (s ApplicantStatus) Restore() ApplicantStatus {
	switch {
	case s == StatusRejected:
		return StatusNew
	case strings.HasPrefix(string(s), rejectedPrefix):
		return ParseApplicantStatus(strings.TrimPrefix(string(s), rejectedPrefix))
	default:
		return s
	}
}

// NextStage returns the default move target. ok is false at the end of the pipeline.
func (s ApplicantStatus) NextStage() (next ApplicantStatus, ok bool) {
	switch s {
	case StatusNew:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusApproved, true
	case StatusApproved:
		return StatusCurrent, true
	default:
		return "", false
	}
}

// NormalizeKey derives the canonical identity of an applicant from an email.
func NormalizeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Applicant is one row of the foster application roster.
type Applicant struct {
	Email        string            `json:"email"`
	RowIndex     *int              `json:"row_index,omitempty"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Phone        string            `json:"phone,omitempty"`
	Age          string            `json:"age,omitempty"`
	AppliedAt    *time.Time        `json:"applied_at,omitempty"`
	Availability string            `json:"availability,omitempty"`
	SpecialNeeds []string          `json:"special_needs,omitempty"`
	Flags        []string          `json:"flags,omitempty"`
	Status       ApplicantStatus   `json:"status"`
	UpdatedAt    string            `json:"status_updated_at,omitempty"`
	UpdatedBy    string            `json:"status_updated_by,omitempty"`
	Raw          map[string]string `json:"raw,omitempty"`
}

// Key returns the canonical identity of a.
func (a Applicant) Key() string {
	return NormalizeKey(a.Email)
}

// FullName joins first and last name.
func (a Applicant) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Cleared reports whether the applicant carries no review flags.
func (a Applicant) Cleared() bool {
	return len(a.Flags) == 0
}

// HasNeed reports whether the applicant selected need.
func (a Applicant) HasNeed(need string) bool {
	for _, n := range a.SpecialNeeds {
		if n == need {
			return true
		}
	}
	return false
}

// Special needs answers offered by the application form.
const (
	NeedPuppies        = "Puppies"
	NeedPregnant       = "Pregnant Dogs"
	NeedSick           = "Sick Dogs"
	NeedInjured        = "Injured / Recovering Dogs"
	NeedNursingLitters = "Litters of Puppies Still Feeding From Mom"
	NeedBehavioral     = "Dogs that Need Training / Rehabilitation for Behavioral"
	NeedNoneOfTheAbove = "None of the Above"
)

// SpecialNeedOptions lists the known answers in form order.
var SpecialNeedOptions = []string{
	NeedPuppies,
	NeedPregnant,
	NeedSick,
	NeedInjured,
	NeedNursingLitters,
	NeedBehavioral,
	NeedNoneOfTheAbove,
}

// SplitList splits a comma separated sheet cell, trimming and deduplicating in first-seen order.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// AvailabilityRank orders free-text availability answers: sooner first, blank last.
func AvailabilityRank(availability string) int {
	v := strings.ToLower(strings.TrimSpace(availability))
	switch {
	case v == "":
		return 99
	case strings.Contains(v, "ready"):
		return 0
	case strings.Contains(v, "week"):
		return 1
	case strings.Contains(v, "month"):
		return 2
	default:
		return 3
	}
}

// sheetTimestampLayout matches the form's "M/D/YYYY H:MM" timestamps.
const sheetTimestampLayout = "1/2/2006 15:04"

// ParseSubmittedAt reads a form timestamp in loc, falling back to RFC3339.
func ParseSubmittedAt(raw string, loc *time.Location) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range []string{sheetTimestampLayout, "1/2/2006 15:04:05", "1/2/2006"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t
		}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	return nil
}

// FormatSubmittedAt renders t the way the form writes timestamps.
func FormatSubmittedAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(sheetTimestampLayout)
}
