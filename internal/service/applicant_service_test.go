package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foster-pipeline-api/internal/dto"
	"github.com/noah-isme/foster-pipeline-api/internal/models"
	"github.com/noah-isme/foster-pipeline-api/internal/roster"
	appErrors "github.com/noah-isme/foster-pipeline-api/pkg/errors"
	"github.com/noah-isme/foster-pipeline-api/pkg/export"
)

type mockRosterEngine struct {
	mu         sync.Mutex
	state      roster.State
	setCalls   []roster.PendingUpdate
	setErr     error
	refreshErr error
	refreshes  int
	flushes    int
}

func (m *mockRosterEngine) Snapshot() roster.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockRosterEngine) SetStatus(identifier string, status models.ApplicantStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	key := models.NormalizeKey(identifier)
	m.setCalls = append(m.setCalls, roster.PendingUpdate{Key: key, Status: status})
	next := make([]models.Applicant, len(m.state.Roster))
	copy(next, m.state.Roster)
	for i := range next {
		if next[i].Key() == key {
			next[i].Status = status
		}
	}
	m.state.Roster = next
	return nil
}

func (m *mockRosterEngine) Refresh(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	return m.refreshErr
}

func (m *mockRosterEngine) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

type stubClearedLister struct {
	emails map[string]struct{}
	err    error
}

func (s stubClearedLister) ClearedEmails(context.Context) (map[string]struct{}, error) {
	return s.emails, s.err
}

func applied(day int) *time.Time {
	t := time.Date(2024, time.March, day, 9, 30, 0, 0, time.UTC)
	return &t
}

func sampleRoster() []models.Applicant {
	return []models.Applicant{
		{Email: "zoe@example.com", FirstName: "Zoe", LastName: "Adams", Status: models.StatusNew, AppliedAt: applied(3),
			Availability: "Within a month", SpecialNeeds: []string{models.NeedPuppies, models.NeedSick}},
		{Email: "amy@example.com", FirstName: "amy", LastName: "Brown", Status: models.StatusNew, AppliedAt: applied(1),
			Availability: "Ready now", SpecialNeeds: []string{models.NeedPuppies}, Flags: []string{"Age"}},
		{Email: "max@example.com", FirstName: "Max", LastName: "Cole", Status: models.StatusInProgress,
			Availability: "In a few weeks", SpecialNeeds: []string{models.NeedNoneOfTheAbove}},
		{Email: "Bea@Example.com", FirstName: "Bea", LastName: "Dunn", Status: models.StatusNew, AppliedAt: applied(2)},
	}
}

func newApplicantServiceForTest(people []models.Applicant) (*ApplicantService, *mockRosterEngine) {
	engine := &mockRosterEngine{state: roster.State{Roster: people}}
	return NewApplicantService(engine, nil, nil, nil), engine
}

func emails(people []models.Applicant) []string {
	out := make([]string, len(people))
	for i, a := range people {
		out[i] = a.Key()
	}
	return out
}

func TestApplicantServiceListFiltersByStatusAndSearch(t *testing.T) {
	svc, _ := newApplicantServiceForTest(sampleRoster())

	items, page, state, err := svc.List(context.Background(), dto.ApplicantFilter{Statuses: []models.ApplicantStatus{models.StatusNew}})
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe@example.com", "amy@example.com", "bea@example.com"}, emails(items))
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 4, state.RosterSize)

	items, _, _, err = svc.List(context.Background(), dto.ApplicantFilter{Search: "  BROWN "})
	require.NoError(t, err)
	assert.Equal(t, []string{"amy@example.com"}, emails(items))

	items, _, _, err = svc.List(context.Background(), dto.ApplicantFilter{Search: "bea@"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bea@example.com"}, emails(items))
}

func TestApplicantServiceListSpecialNeeds(t *testing.T) {
	svc, _ := newApplicantServiceForTest(sampleRoster())

	items, _, _, err := svc.List(context.Background(), dto.ApplicantFilter{Needs: []string{models.NeedPuppies}})
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe@example.com", "amy@example.com"}, emails(items))

	items, _, _, err = svc.List(context.Background(), dto.ApplicantFilter{Needs: []string{models.NeedPuppies, models.NeedSick}})
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe@example.com"}, emails(items))

	items, _, _, err = svc.List(context.Background(), dto.ApplicantFilter{Needs: []string{models.NeedNoneOfTheAbove}})
	require.NoError(t, err)
	assert.Equal(t, []string{"max@example.com"}, emails(items))

	items, _, _, err = svc.List(context.Background(), dto.ApplicantFilter{Needs: []string{models.NeedNoneOfTheAbove, models.NeedPuppies}})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestApplicantServiceListSorts(t *testing.T) {
	svc, _ := newApplicantServiceForTest(sampleRoster())
	cases := map[string][]string{
		dto.SortNameAsc:         {"amy@example.com", "bea@example.com", "max@example.com", "zoe@example.com"},
		dto.SortNameDesc:        {"zoe@example.com", "max@example.com", "bea@example.com", "amy@example.com"},
		dto.SortDateAsc:         {"amy@example.com", "bea@example.com", "zoe@example.com", "max@example.com"},
		dto.SortDateDesc:        {"zoe@example.com", "bea@example.com", "amy@example.com", "max@example.com"},
		dto.SortAvailabilityAsc: {"amy@example.com", "max@example.com", "zoe@example.com", "bea@example.com"},
		dto.SortNone:            {"zoe@example.com", "amy@example.com", "max@example.com", "bea@example.com"},
	}
	for order, want := range cases {
		items, _, _, err := svc.List(context.Background(), dto.ApplicantFilter{Sort: order})
		require.NoError(t, err, order)
		assert.Equal(t, want, emails(items), order)
	}
}

func TestApplicantServiceListPaginatesAndValidates(t *testing.T) {
	svc, _ := newApplicantServiceForTest(sampleRoster())

	items, page, _, err := svc.List(context.Background(), dto.ApplicantFilter{Sort: dto.SortNameAsc, Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe@example.com"}, emails(items))
	assert.Equal(t, models.Pagination{Page: 2, PageSize: 3, TotalCount: 4}, *page)

	items, _, _, err = svc.List(context.Background(), dto.ApplicantFilter{Page: 9, PageSize: 3})
	require.NoError(t, err)
	assert.Empty(t, items)

	items, page, _, err = svc.List(context.Background(), dto.ApplicantFilter{Page: math.MaxInt64/50 + 2, PageSize: 50})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, math.MaxInt64/50+2, page.Page)

	_, _, _, err = svc.List(context.Background(), dto.ApplicantFilter{Sort: "shoe-size"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, _, err = svc.List(context.Background(), dto.ApplicantFilter{Statuses: []models.ApplicantStatus{"archived"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestApplicantServiceGet(t *testing.T) {
	svc, _ := newApplicantServiceForTest(sampleRoster())

	a, err := svc.Get(context.Background(), " BEA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "Bea", a.FirstName)

	_, err = svc.Get(context.Background(), "ghost@example.com")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestApplicantServiceSetStatus(t *testing.T) {
	svc, engine := newApplicantServiceForTest(sampleRoster())

	a, err := svc.SetStatus(context.Background(), "Zoe@Example.com", dto.UpdateStatusRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, a.Status)
	assert.Equal(t, []roster.PendingUpdate{{Key: "zoe@example.com", Status: models.StatusApproved}}, engine.setCalls)

	a, err = svc.SetStatus(context.Background(), "new@example.com", dto.UpdateStatusRequest{Status: "rejected_new"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejectedNew, a.Status)

	_, err = svc.SetStatus(context.Background(), "zoe@example.com", dto.UpdateStatusRequest{Status: "archived"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.SetStatus(context.Background(), "   ", dto.UpdateStatusRequest{Status: "new"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	engine.setErr = roster.ErrNotRunning
	_, err = svc.SetStatus(context.Background(), "zoe@example.com", dto.UpdateStatusRequest{Status: "new"})
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
}

func TestApplicantServiceBulkSetStatus(t *testing.T) {
	svc, engine := newApplicantServiceForTest(sampleRoster())

	result, err := svc.BulkSetStatus(context.Background(), dto.BulkStatusRequest{
		Emails: []string{"zoe@example.com", " ", "AMY@example.com"},
		Status: "in-progress",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe@example.com", "amy@example.com"}, result.Updated)
	assert.Equal(t, []string{" "}, result.Skipped)
	assert.Len(t, engine.setCalls, 2)

	_, err = svc.BulkSetStatus(context.Background(), dto.BulkStatusRequest{Status: "new"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestApplicantServicePromoteCleared(t *testing.T) {
	svc, engine := newApplicantServiceForTest(sampleRoster())

	result, err := svc.PromoteCleared(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe@example.com", "bea@example.com"}, result.Promoted)
	for _, call := range engine.setCalls {
		assert.Equal(t, models.StatusApproved, call.Status)
	}
}

func TestApplicantServicePromoteClearedUsesDirectoryReview(t *testing.T) {
	engine := &mockRosterEngine{state: roster.State{Roster: sampleRoster()}}
	svc := NewApplicantService(engine, stubClearedLister{emails: map[string]struct{}{"amy@example.com": {}}}, nil, nil)

	result, err := svc.PromoteCleared(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"amy@example.com"}, result.Promoted)

	svc = NewApplicantService(engine, stubClearedLister{err: errors.New("boom")}, nil, nil)
	_, err = svc.PromoteCleared(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrUpstream))
}

func TestApplicantServiceRefreshAndSyncState(t *testing.T) {
	svc, engine := newApplicantServiceForTest(sampleRoster())
	synced := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)
	engine.state.LastSyncedAt = synced
	engine.state.LastError = "directory: upstream returned 502"
	engine.state.Pending = 1
	engine.state.PendingUpdates = []roster.PendingUpdate{{Key: "zoe@example.com", Status: models.StatusApproved}}

	state, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, engine.refreshes)
	assert.Equal(t, "directory: upstream returned 502", state.LastError)
	require.NotNil(t, state.LastSyncedAt)
	assert.Equal(t, synced, *state.LastSyncedAt)
	assert.Nil(t, state.LastFlushedAt)
	assert.Equal(t, []dto.PendingUpdate{{Email: "zoe@example.com", Status: models.StatusApproved}}, state.PendingUpdates)

	_, err = svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, engine.flushes)

	engine.refreshErr = roster.ErrNotRunning
	_, err = svc.Refresh(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
}

func TestApplicantServiceExportCSV(t *testing.T) {
	svc, _ := newApplicantServiceForTest(sampleRoster())

	var buf bytes.Buffer
	err := svc.Export(context.Background(), &buf, dto.ApplicantFilter{Statuses: []models.ApplicantStatus{models.StatusInProgress}}, export.CSV{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Name,Email,Phone"))
	assert.Contains(t, lines[1], "Max Cole,max@example.com")
}
