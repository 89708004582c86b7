package dto

import "github.com/noah-isme/foster-pipeline-api/internal/models"

// Recipient is an applicant row offered in the interest mailing dialog.
type Recipient struct {
	RowIndex int    `json:"row_index"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Flagged  bool   `json:"flagged"`
}

// RecipientList splits candidates by review flags.
type RecipientList struct {
	Status  models.ApplicantStatus `json:"status,omitempty"`
	Cleared []Recipient            `json:"cleared"`
	Flagged []Recipient            `json:"flagged"`
}

// SendEmailRequest is the POST /emails/send payload.
type SendEmailRequest struct {
	Subject    string `json:"subject" validate:"omitempty,max=200"`
	Content    string `json:"email_content" validate:"required"`
	RowIndices []int  `json:"row_indices" validate:"required,min=1,dive,min=1"`
	Status     string `json:"status" validate:"omitempty,oneof=new in-progress approved current rejected rejected_new rejected_in-progress rejected_approved"`
	MoveTo     string `json:"move_to" validate:"omitempty,oneof=new in-progress approved current rejected rejected_new rejected_in-progress rejected_approved"`
}

// SendEmailResult reports who was mailed and moved.
type SendEmailResult struct {
	Sent    int                    `json:"sent"`
	MovedTo models.ApplicantStatus `json:"moved_to"`
	Moved   []string               `json:"moved"`
}
