// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/jobsync/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// StartCall records one POST /jobs/{direction}.
type StartCall struct {
	Direction    string
	PlaylistName string   `json:"playlist_name"`
	UserID       string   `json:"user_id"`
	TracksToSync []string `json:"tracks_to_sync"`
}

// FakeBackend is an in-process job backend.
//
// Each job has a script of snapshots; every GET /jobs/{id} returns the next one and the last one repeats.
type FakeBackend struct {
	Server *httptest.Server

	mu           sync.Mutex
	scripts      map[string][]models.Job
	afterFinal   map[string][]models.Job
	latest       map[string]string
	finalized    map[string][]models.SongMatch
	starts       []StartCall
	candidates   []models.Candidate
	hits         map[string]int
	jobStatus    int
	startStatus  int
	finalStatus  int
	healthStatus string
	nextID       int
}

// NewFakeBackend starts the server and closes it when t finishes.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		scripts:      make(map[string][]models.Job),
		afterFinal:   make(map[string][]models.Job),
		latest:       make(map[string]string),
		finalized:    make(map[string][]models.SongMatch),
		hits:         make(map[string]int),
		healthStatus: "ok",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/{direction}", f.handleStart)
	mux.HandleFunc("GET /jobs/{id}", f.handleGet)
	mux.HandleFunc("GET /jobs/latest/{user}", f.handleLatest)
	mux.HandleFunc("POST /jobs/{id}/finalize", f.handleFinalize)
	mux.HandleFunc("GET /manual_search", f.handleSearch)
	mux.HandleFunc("GET /health", f.handleHealth)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeBackend) URL() string { return f.Server.URL }

// Script sets the snapshots returned by successive fetches of the job.
func (f *FakeBackend) Script(jobID string, steps ...models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range steps {
		steps[i].JobID = jobID
	}
	f.scripts[jobID] = steps
}

// ScriptFinalize replaces the job's script once it is finalized.
func (f *FakeBackend) ScriptFinalize(jobID string, steps ...models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range steps {
		steps[i].JobID = jobID
	}
	f.afterFinal[jobID] = steps
}

// SetLatest makes jobID the latest job for userID.
func (f *FakeBackend) SetLatest(userID, jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest[userID] = jobID
}

// SetCandidates sets the manual search results.
func (f *FakeBackend) SetCandidates(c ...models.Candidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = c
}

// FailJobs makes GET /jobs/{id} answer status. Zero restores normal behavior.
func (f *FakeBackend) FailJobs(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobStatus = status
}

// FailStart makes POST /jobs/{direction} answer status.
func (f *FakeBackend) FailStart(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startStatus = status
}

// FailFinalize makes POST /jobs/{id}/finalize answer status.
func (f *FakeBackend) FailFinalize(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalStatus = status
}

// SetHealth sets the status GET /health reports.
func (f *FakeBackend) SetHealth(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthStatus = status
}

// Starts returns the recorded start calls.
func (f *FakeBackend) Starts() []StartCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StartCall(nil), f.starts...)
}

// Finalized returns the songs posted for jobID.
func (f *FakeBackend) Finalized(jobID string) ([]models.SongMatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	songs, ok := f.finalized[jobID]
	return songs, ok
}

// Hits returns how many requests reached the route, e.g. "GET /jobs/J1".
func (f *FakeBackend) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

func (f *FakeBackend) hit(r *http.Request) {
	f.hits[r.Method+" "+r.URL.Path]++
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int) {
	writeJSON(w, status, map[string]string{"detail": strings.ToLower(http.StatusText(status))})
}

// next pops the next snapshot; the last one repeats. Caller holds mu.
func (f *FakeBackend) next(jobID string) (models.Job, bool) {
	steps, ok := f.scripts[jobID]
	if !ok || len(steps) == 0 {
		return models.Job{}, false
	}
	job := steps[0]
	if len(steps) > 1 {
		f.scripts[jobID] = steps[1:]
	}
	return job, true
}

// peek returns the current snapshot without advancing. Caller holds mu.
func (f *FakeBackend) peek(jobID string) (models.Job, bool) {
	steps, ok := f.scripts[jobID]
	if !ok || len(steps) == 0 {
		return models.Job{}, false
	}
	return steps[0], true
}

func (f *FakeBackend) handleStart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit(r)

	if f.startStatus != 0 {
		writeDetail(w, f.startStatus)
		return
	}

	var call StartCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity)
		return
	}
	call.Direction = r.PathValue("direction")
	f.starts = append(f.starts, call)

	f.nextID++
	id := "job-" + strconv.Itoa(f.nextID)
	if _, ok := f.scripts[id]; !ok {
		f.scripts[id] = []models.Job{{JobID: id, Status: models.JobPending, PlaylistName: call.PlaylistName}}
	}
	f.latest[call.UserID] = id

	writeJSON(w, http.StatusOK, map[string]string{"job_id": id})
}

func (f *FakeBackend) handleGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit(r)

	if f.jobStatus != 0 {
		writeDetail(w, f.jobStatus)
		return
	}

	job, ok := f.next(r.PathValue("id"))
	if !ok {
		writeDetail(w, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (f *FakeBackend) handleLatest(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit(r)

	id, ok := f.latest[r.PathValue("user")]
	if !ok {
		writeDetail(w, http.StatusNotFound)
		return
	}
	job, ok := f.peek(id)
	if !ok {
		writeDetail(w, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (f *FakeBackend) handleFinalize(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit(r)

	if f.finalStatus != 0 {
		writeDetail(w, f.finalStatus)
		return
	}

	id := r.PathValue("id")
	var body struct {
		Songs []models.SongMatch `json:"songs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity)
		return
	}
	f.finalized[id] = body.Songs

	if steps, ok := f.afterFinal[id]; ok {
		f.scripts[id] = steps
	} else {
		f.scripts[id] = []models.Job{{JobID: id, Status: models.JobCompleted}}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (f *FakeBackend) handleSearch(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit(r)

	if r.URL.Query().Get("song") == "" {
		writeDetail(w, http.StatusBadRequest)
		return
	}
	candidates := f.candidates
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (f *FakeBackend) handleHealth(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit(r)

	status := http.StatusOK
	if f.healthStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": f.healthStatus})
}
