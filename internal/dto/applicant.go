package dto

import (
	"time"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
)

// Sort orders accepted by GET /applicants.
const (
	SortNone            = ""
	SortNameAsc         = "name-asc"
	SortNameDesc        = "name-desc"
	SortDateAsc         = "date-asc"
	SortDateDesc        = "date-desc"
	SortAvailabilityAsc = "availability-asc"
)

// ApplicantFilter captures GET /applicants query parameters.
type ApplicantFilter struct {
	Statuses []models.ApplicantStatus `form:"status"`
	Needs    []string                 `form:"need"`
	Search   string                   `form:"search"`
	Sort     string                   `form:"sort" validate:"omitempty,oneof=name-asc name-desc date-asc date-desc availability-asc"`
	Page     int                      `form:"page" validate:"omitempty,min=1"`
	PageSize int                      `form:"limit" validate:"omitempty,min=1,max=5000"`
}

// UpdateStatusRequest is the PUT /applicants/:email/status payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new in-progress approved current rejected rejected_new rejected_in-progress rejected_approved"`
}

// BulkStatusRequest moves several applicants at once.
type BulkStatusRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,dive,required"`
	Status string   `json:"status" validate:"required,oneof=new in-progress approved current rejected rejected_new rejected_in-progress rejected_approved"`
}

// BulkStatusResult reports which keys were queued.
type BulkStatusResult struct {
	Status  models.ApplicantStatus `json:"status"`
	Updated []string               `json:"updated"`
	Skipped []string               `json:"skipped,omitempty"`
}

// PromoteResult lists applicants moved from new to approved because they carry no flags.
type PromoteResult struct {
	Promoted []string `json:"promoted"`
}

// SyncStatus describes the optimistic sync engine for the staff UI.
type SyncStatus struct {
	Loading        bool            `json:"loading"`
	LastError      string          `json:"last_error,omitempty"`
	Pending        int             `json:"pending"`
	PendingUpdates []PendingUpdate `json:"pending_updates"`
	Flushing       bool            `json:"flushing"`
	LastSyncedAt   *time.Time      `json:"last_synced_at,omitempty"`
	LastFlushedAt  *time.Time      `json:"last_flushed_at,omitempty"`
	RosterSize     int             `json:"roster_size"`
}

// PendingUpdate is a queued status write.
type PendingUpdate struct {
	Email  string                 `json:"email"`
	Status models.ApplicantStatus `json:"status"`
}
