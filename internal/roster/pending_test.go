package roster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
)

func TestPendingQueueKeepsFirstQueuedOrder(t *testing.T) {
	q := NewPendingQueue()
	q.Set("b@x.org", models.StatusApproved)
	q.Set("a@x.org", models.StatusInProgress)
	q.Set("b@x.org", models.StatusCurrent)

	assert.Equal(t, []PendingUpdate{
		{Key: "b@x.org", Status: models.StatusCurrent},
		{Key: "a@x.org", Status: models.StatusInProgress},
	}, q.Snapshot())
}

func TestPendingQueueRemoveIfOnlyMatchingStatus(t *testing.T) {
	q := NewPendingQueue()
	q.Set("a@x.org", models.StatusCurrent)

	assert.False(t, q.RemoveIf("a@x.org", models.StatusApproved))
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.RemoveIf("a@x.org", models.StatusCurrent))
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.RemoveIf("a@x.org", models.StatusCurrent))
}

func TestPendingQueueApplyOverlaysEveryDuplicate(t *testing.T) {
	q := NewPendingQueue()
	q.Set("a@x.org", models.StatusApproved)
	roster := []models.Applicant{
		{Email: "A@x.org", Status: models.StatusNew},
		{Email: "b@x.org", Status: models.StatusNew},
		{Email: "a@x.org ", Status: models.StatusInProgress},
	}

	out := q.Apply(roster)
	assert.Equal(t, models.StatusApproved, out[0].Status)
	assert.Equal(t, models.StatusNew, out[1].Status)
	assert.Equal(t, models.StatusApproved, out[2].Status)
	assert.Equal(t, models.StatusNew, roster[0].Status, "input must not be modified")
}

func TestPendingQueueJSONRoundTripPreservesOrder(t *testing.T) {
	q := NewPendingQueue()
	q.Set("z@x.org", models.StatusApproved)
	q.Set("a@x.org", models.StatusRejectedNew)

	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, `{"z@x.org":"approved","a@x.org":"rejected_new"}`, string(raw))

	restored := NewPendingQueue()
	require.NoError(t, json.Unmarshal(raw, restored))
	assert.Equal(t, q.Snapshot(), restored.Snapshot())
}

func TestPendingQueueUnmarshalDropsInvalidEntries(t *testing.T) {
	q := NewPendingQueue()
	require.NoError(t, json.Unmarshal([]byte(`{" A@X.org ":"approved","":"new","b@x.org":"maybe"}`), q))
	assert.Equal(t, []PendingUpdate{{Key: "a@x.org", Status: models.StatusApproved}}, q.Snapshot())

	assert.Error(t, json.Unmarshal([]byte(`["a@x.org"]`), q))
}
