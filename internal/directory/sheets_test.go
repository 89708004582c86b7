package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
)

const rosterJSON = `{
  "success": true,
  "rows": [
    {
      "rowIndex": 2,
      "Timestamp": "3/7/2024 9:05",
      "First Name": " Ada ",
      "Last Name": "Lovelace",
      "Email": "Ada@Example.org ",
      "Phone": 5551234,
      "How old are you?": "34",
      "When would you like to take your foster dog home?": "Ready now",
      "Are you willing to foster dogs with special needs? If so, please check all that apply below.": "Puppies, Sick Dogs, Puppies",
      "Flags": "",
      "Applicant Status": "approved",
      "Status Updated By": null
    },
    {
      "rowIndex": "3",
      "First Name": "Bo",
      "Email": "bo@example.org",
      "Flags": "age, duplicate",
      "Applicant Status": "waitlisted"
    }
  ]
}`

func newSheetsForTest(t *testing.T, handler http.HandlerFunc) *Sheets {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s, err := NewSheets(SheetsConfig{ScriptURL: srv.URL + "/exec", Key: "secret", Location: loc}, nil)
	require.NoError(t, err)
	return s
}

func TestSheetsFetchApplicantsMapsRows(t *testing.T) {
	s := newSheetsForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/exec", r.URL.Path)
		assert.Equal(t, "5000", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.True(t, strings.HasPrefix(r.URL.Query().Get("fields"), "Timestamp,First Name,Last Name,Email"))
		_, _ = w.Write([]byte(rosterJSON))
	})

	people, err := s.FetchApplicants(context.Background())
	require.NoError(t, err)
	require.Len(t, people, 2)

	ada := people[0]
	assert.Equal(t, "Ada@Example.org", ada.Email)
	assert.Equal(t, "ada@example.org", ada.Key())
	require.NotNil(t, ada.RowIndex)
	assert.Equal(t, 2, *ada.RowIndex)
	assert.Equal(t, "Ada", ada.FirstName)
	assert.Equal(t, "5551234", ada.Phone)
	assert.Equal(t, []string{"Puppies", "Sick Dogs"}, ada.SpecialNeeds)
	assert.Equal(t, models.StatusApproved, ada.Status)
	assert.True(t, ada.Cleared())
	require.NotNil(t, ada.AppliedAt)
	assert.Equal(t, 9, ada.AppliedAt.Hour())
	assert.Equal(t, "", ada.UpdatedBy)

	bo := people[1]
	require.NotNil(t, bo.RowIndex)
	assert.Equal(t, 3, *bo.RowIndex)
	assert.Equal(t, models.StatusNew, bo.Status)
	assert.Equal(t, []string{"age", "duplicate"}, bo.Flags)
	assert.Nil(t, bo.AppliedAt)
}

func TestSheetsFetchFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "unsuccessful", status: http.StatusOK, body: `{"success":false,"error":"bad key"}`, wantErr: ErrUnsuccessful},
		{name: "rows missing", status: http.StatusOK, body: `{"success":true}`, wantErr: ErrMalformed},
		{name: "not json", status: http.StatusOK, body: `<html>login</html>`, wantErr: ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSheetsForTest(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := s.FetchApplicants(context.Background())
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSheetsHTTPErrorRedactsKey(t *testing.T) {
	s := newSheetsForTest(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"Exceeded maximum execution time"}`))
	})

	_, err := s.FetchApplicants(context.Background())
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "Exceeded maximum execution time", httpErr.Message)
	assert.NotContains(t, err.Error(), "secret")
}

func TestSheetsSetStatusPostsAction(t *testing.T) {
	var body map[string]string
	s := newSheetsForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, s.SetStatus(context.Background(), "a@x.org", models.StatusInProgress, "jay t"))
	assert.Equal(t, map[string]string{
		"action":    "set_status",
		"email":     "a@x.org",
		"status":    "in-progress",
		"updatedBy": "jay t",
	}, body)
}

func TestSheetsClearedEmailsAndRecipients(t *testing.T) {
	s := newSheetsForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ok", r.URL.Query().Get("mode"))
		_, _ = w.Write([]byte(`{"success":true,"rows":[
			{"rowIndex":2,"Email":"A@x.org","Flags":"","First Name":"Ann"},
			{"rowIndex":3,"Email":"b@x.org","Flags":"under 21"},
			{"rowIndex":4,"Email":"","Flags":""},
			{"Email":"c@x.org","Flags":""}
		]}`))
	})

	cleared, err := s.ClearedEmails(context.Background())
	require.NoError(t, err)
	assert.Len(t, cleared, 2)
	assert.Contains(t, cleared, "a@x.org")
	assert.Contains(t, cleared, "c@x.org")

	recipients, err := s.Recipients(context.Background())
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	assert.Equal(t, Recipient{RowIndex: 2, Email: "A@x.org", FirstName: "Ann", Flagged: false}, recipients[0])
	assert.True(t, recipients[1].Flagged)
}

func TestSheetsSendEmails(t *testing.T) {
	var body map[string]interface{}
	s := newSheetsForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"success":true,"sent":2}`))
	})

	err := s.SendEmails(context.Background(), EmailRequest{Content: "Hello!", RowIndices: []int{3, 7}})
	require.NoError(t, err)
	assert.Equal(t, "Foster Interest", body["subject"])
	assert.Equal(t, "Hello!", body["emailContent"])
	assert.Equal(t, true, body["sendEmails"])
	assert.Equal(t, "ok", body["mode"])
	assert.Equal(t, []interface{}{float64(3), float64(7)}, body["rowIndices"])

	assert.Error(t, s.SendEmails(context.Background(), EmailRequest{Content: "x"}))
}

func TestNewSheetsRequiresURL(t *testing.T) {
	_, err := NewSheets(SheetsConfig{}, nil)
	assert.Error(t, err)
}
