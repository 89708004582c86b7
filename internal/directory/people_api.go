package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
)

// PeopleAPI talks to the staff web app's routes: /api/people for the roster
// and the /api/send-email proxy for writes and mailings.
type PeopleAPI struct {
	*scriptClient
	baseURL string
}

func NewPeopleAPI(baseURL string, timeout time.Duration, logger *zap.Logger) (*PeopleAPI, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("directory: missing people API base URL")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeopleAPI{
		scriptClient: &scriptClient{
			http:     newHTTPClient(timeout, logger.Named("people_api")),
			endpoint: baseURL + "/api/send-email",
		},
		baseURL: baseURL,
	}, nil
}

type person struct {
	RowIndex     *int              `json:"rowIndex"`
	FirstName    string            `json:"firstName"`
	LastName     string            `json:"lastName"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	Age          string            `json:"age"`
	Status       string            `json:"status"`
	AppliedAt    string            `json:"appliedAt"`
	Availability string            `json:"availability"`
	SpecialNeeds []string          `json:"specialNeeds"`
	Raw          map[string]string `json:"raw"`
}

type peopleResponse struct {
	Success bool      `json:"success"`
	People  *[]person `json:"people"`
	Error   string    `json:"error"`
}

func (p *PeopleAPI) FetchApplicants(ctx context.Context) ([]models.Applicant, error) {
	data, err := p.http.do(ctx, http.MethodGet, p.baseURL+"/api/people", nil)
	if err != nil {
		return nil, err
	}

	var resp peopleResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, resp.Error)
	}
	if resp.People == nil {
		return nil, fmt.Errorf("%w: people missing", ErrMalformed)
	}

	out := make([]models.Applicant, 0, len(*resp.People))
	for _, pr := range *resp.People {
		out = append(out, pr.toApplicant())
	}
	return out, nil
}

func (pr person) toApplicant() models.Applicant {
	a := models.Applicant{
		Email:        strings.TrimSpace(pr.Email),
		RowIndex:     pr.RowIndex,
		FirstName:    strings.TrimSpace(pr.FirstName),
		LastName:     strings.TrimSpace(pr.LastName),
		Phone:        strings.TrimSpace(pr.Phone),
		Age:          strings.TrimSpace(pr.Age),
		AppliedAt:    models.ParseSubmittedAt(pr.AppliedAt, time.UTC),
		Availability: strings.TrimSpace(pr.Availability),
		SpecialNeeds: pr.SpecialNeeds,
		Status:       models.ParseApplicantStatus(pr.Status),
		Raw:          pr.Raw,
	}
	if pr.Raw != nil {
		a.Flags = models.SplitList(pr.Raw[colFlags])
		a.UpdatedAt = strings.TrimSpace(pr.Raw[colUpdatedAt])
		a.UpdatedBy = strings.TrimSpace(pr.Raw[colUpdatedBy])
	}
	return a
}
