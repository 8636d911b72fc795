package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyscan/complyscan/internal/db"
	"github.com/complyscan/complyscan/internal/queue"
	"github.com/complyscan/complyscan/models"
)

func newTestHandler() (*Handler, *db.MemoryStore, *queue.MemoryQueue) {
	store := db.NewMemoryStore()
	q := queue.NewMemoryQueue(time.Minute)
	return NewHandler(store, q), store, q
}

func TestCreateScanEnqueuesJob(t *testing.T) {
	h, store, q := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	body := `{"repositoryUrl": "https://github.com/acme/widgets.git", "token": "tok", "userId": "u1"}`
	resp, err := http.Post(srv.URL+"/scan", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out createScanResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.ScanID)
	assert.Equal(t, models.StatusQueued, out.Status)

	// The job record exists and the queue carries its id.
	job, err := store.GetJob(context.Background(), out.ScanID)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/widgets.git", job.RepositoryURL)
	assert.Equal(t, "tok", job.Token)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, out.ScanID, d.JobID)
}

// failingQueue rejects every message but remembers the job id it was
// asked to carry.
type failingQueue struct {
	lastJobID string
}

func (q *failingQueue) Enqueue(_ context.Context, jobID string) error {
	q.lastJobID = jobID
	return assert.AnError
}

func (q *failingQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCreateScanEnqueueFailureLeavesNoQueuedJob(t *testing.T) {
	store := db.NewMemoryStore()
	fq := &failingQueue{}
	srv := httptest.NewServer(NewHandler(store, fq).Routes())
	defer srv.Close()

	body := `{"repositoryUrl": "https://github.com/acme/widgets.git"}`
	resp, err := http.Post(srv.URL+"/scan", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// The inserted record must not linger in QUEUED with no message
	// behind it.
	require.NotEmpty(t, fq.lastJobID)
	job, err := store.GetJob(context.Background(), fq.lastJobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, job.Status)
	assert.Contains(t, job.LastError, "enqueue failed")
}

func TestCreateScanRejectsBadRequests(t *testing.T) {
	h, _, _ := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing url", `{}`},
		{"not a url", `{"repositoryUrl": "::::"}`},
		{"wrong scheme", `{"repositoryUrl": "git@github.com:acme/widgets.git"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/scan", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetScanReturnsRecordWithoutToken(t *testing.T) {
	h, store, _ := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	require.NoError(t, store.InsertJob(context.Background(), &models.ScanJob{
		ID:            "j1",
		RepositoryURL: "https://github.com/acme/widgets.git",
		Token:         "super-secret",
		Status:        models.StatusQueued,
		CreatedAt:     time.Now(),
	}))

	resp, err := http.Get(srv.URL + "/scan/j1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw := make(map[string]any)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	assert.Equal(t, "j1", raw["scan_id"])
	assert.Equal(t, string(models.StatusQueued), raw["status"])
	// The credential never appears in the response.
	for k, v := range raw {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "super-secret", "field %s leaks the token", k)
		}
	}
}

func TestGetScanUnknownIDIs404(t *testing.T) {
	h, _, _ := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/scan/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
