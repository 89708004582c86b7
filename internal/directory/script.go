package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
)

// Column headers of the application sheet.
const (
	colTimestamp    = "Timestamp"
	colFirstName    = "First Name"
	colLastName     = "Last Name"
	colEmail        = "Email"
	colPhone        = "Phone"
	colAge          = "How old are you?"
	colAvailability = "When would you like to take your foster dog home?"
	colSpecialNeeds = "Are you willing to foster dogs with special needs? If so, please check all that apply below."
	colFlags        = "Flags"
	colReview       = "Review Status"
	colStatus       = "Applicant Status"
	colUpdatedAt    = "Status Updated At"
	colUpdatedBy    = "Status Updated By"
)

var rosterFields = []string{
	colTimestamp, colFirstName, colLastName, colEmail, colPhone, colAge, colAvailability,
	colSpecialNeeds, colFlags, colReview, colStatus, colUpdatedAt, colUpdatedBy,
}

// EmailSubject is the subject line of the foster interest mailing.
const EmailSubject = "Foster Interest"

// Recipient is an applicant row as seen by the mailing script.
type Recipient struct {
	RowIndex  int    `json:"row_index"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Flagged   bool   `json:"flagged"`
}

// EmailRequest asks the script to mail the given sheet rows.
type EmailRequest struct {
	Subject    string
	Content    string
	RowIndices []int
}

// scriptClient speaks the Apps Script web app protocol, either directly
// (endpoint is the script URL plus a shared key) or through the staff app's
// proxy route (no key; the proxy adds it).
type scriptClient struct {
	http     *httpClient
	endpoint string
	key      string
}

func (s *scriptClient) url(params url.Values) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("directory: parse endpoint: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	if s.key != "" {
		q.Set("key", s.key)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *scriptClient) call(ctx context.Context, method string, params url.Values, body interface{}) (gjson.Result, error) {
	target, err := s.url(params)
	if err != nil {
		return gjson.Result{}, err
	}
	data, err := s.http.do(ctx, method, target, body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: body is not JSON", ErrMalformed)
	}
	res := gjson.ParseBytes(data)
	if !res.Get("success").Bool() {
		msg := res.Get("error").String()
		if msg == "" {
			msg = "no error message"
		}
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrUnsuccessful, msg)
	}
	return res, nil
}

// rows fetches sheet rows and flattens every cell to a string.
func (s *scriptClient) rows(ctx context.Context, params url.Values) ([]sheetRow, error) {
	res, err := s.call(ctx, http.MethodGet, params, nil)
	if err != nil {
		return nil, err
	}
	list := res.Get("rows")
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: rows is not a list", ErrMalformed)
	}

	var out []sheetRow
	var shapeErr error
	list.ForEach(func(_, row gjson.Result) bool {
		if !row.IsObject() {
			shapeErr = fmt.Errorf("%w: row is not an object", ErrMalformed)
			return false
		}
		out = append(out, newSheetRow(row))
		return true
	})
	if shapeErr != nil {
		return nil, shapeErr
	}
	return out, nil
}

func (s *scriptClient) SetStatus(ctx context.Context, email string, status models.ApplicantStatus, updatedBy string) error {
	_, err := s.call(ctx, http.MethodPost, nil, map[string]string{
		"action":    "set_status",
		"email":     email,
		"status":    string(status),
		"updatedBy": updatedBy,
	})
	return err
}

// Recipients lists the rows eligible for the interest mailing.
func (s *scriptClient) Recipients(ctx context.Context) ([]Recipient, error) {
	rows, err := s.rows(ctx, url.Values{
		"mode":   {"ok"},
		"fields": {strings.Join([]string{colTimestamp, colFirstName, colLastName, colEmail, colFlags, colReview}, ",")},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Recipient, 0, len(rows))
	for _, row := range rows {
		email := strings.TrimSpace(row.cells[colEmail])
		if row.index == nil || email == "" {
			continue
		}
		out = append(out, Recipient{
			RowIndex:  *row.index,
			Email:     email,
			FirstName: strings.TrimSpace(row.cells[colFirstName]),
			LastName:  strings.TrimSpace(row.cells[colLastName]),
			Flagged:   strings.TrimSpace(row.cells[colFlags]) != "",
		})
	}
	return out, nil
}

// ClearedEmails returns the canonical keys of rows with no review flags.
func (s *scriptClient) ClearedEmails(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.rows(ctx, url.Values{
		"mode":   {"ok"},
		"fields": {colEmail + "," + colFlags},
	})
	if err != nil {
		return nil, err
	}
	cleared := make(map[string]struct{})
	for _, row := range rows {
		key := models.NormalizeKey(row.cells[colEmail])
		if key != "" && strings.TrimSpace(row.cells[colFlags]) == "" {
			cleared[key] = struct{}{}
		}
	}
	return cleared, nil
}

func (s *scriptClient) SendEmails(ctx context.Context, req EmailRequest) error {
	if len(req.RowIndices) == 0 {
		return fmt.Errorf("directory: no recipients selected")
	}
	subject := req.Subject
	if subject == "" {
		subject = EmailSubject
	}
	_, err := s.call(ctx, http.MethodPost, nil, map[string]interface{}{
		"subject":      subject,
		"emailContent": req.Content,
		"sendEmails":   true,
		"mode":         "ok",
		"rowIndices":   req.RowIndices,
	})
	return err
}

type sheetRow struct {
	index *int
	cells map[string]string
}

func newSheetRow(row gjson.Result) sheetRow {
	r := sheetRow{cells: make(map[string]string)}
	row.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if name == "rowIndex" {
			if idx, ok := parseRowIndex(v); ok {
				r.index = &idx
			}
		}
		r.cells[name] = v.String()
		return true
	})
	return r
}

func parseRowIndex(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		return int(v.Int()), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		return n, err == nil
	default:
		return 0, false
	}
}
