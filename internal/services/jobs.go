package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// APIError is a non-2xx backend response. It wraps [shared.ErrAPIRequest].
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v (status %d): %s", shared.ErrAPIRequest, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%v: status %d", shared.ErrAPIRequest, e.StatusCode)
}

func (e *APIError) Unwrap() error { return shared.ErrAPIRequest }

// newAPIError reads a FastAPI style {"detail": ...} payload when present.
func newAPIError(resp *APIResponse) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err == nil {
		switch d := payload.Detail.(type) {
		case string:
			apiErr.Detail = d
		case nil:
			apiErr.Detail = payload.Error
		default:
			if b, err := json.Marshal(d); err == nil {
				apiErr.Detail = string(b)
			}
		}
	}
	return apiErr
}

// StartJobRequest is the body of POST /jobs/{direction}.
type StartJobRequest struct {
	PlaylistName string   `json:"playlist_name"`
	UserID       string   `json:"user_id"`
	TracksToSync []string `json:"tracks_to_sync"`
}

// JobsClient is the backend surface the job poller and finalizer consume.
type JobsClient interface {
	StartJob(ctx context.Context, dir models.Direction, req StartJobRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	LatestJob(ctx context.Context, userID string) (*models.Job, error)
	FinalizeJob(ctx context.Context, jobID string, songs []models.SongMatch) error
	ManualSearch(ctx context.Context, song, artist, userID string) ([]models.Candidate, error)
	Health(ctx context.Context) (string, error)
}

// JobsService implements [JobsClient] over an [APIService].
type JobsService struct {
	api *APIService
}

func NewJobsService(api *APIService) *JobsService {
	return &JobsService{api: api}
}

func (s *JobsService) getJSON(ctx context.Context, path string, result any) (*APIResponse, error) {
	resp, err := s.api.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, newAPIError(resp)
	}
	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return resp, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return resp, nil
}

func (s *JobsService) postJSON(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := s.api.Post(ctx, path, data)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return newAPIError(resp)
	}
	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}

// StartJob calls POST /jobs/{direction} and returns the backend-assigned job id.
func (s *JobsService) StartJob(ctx context.Context, dir models.Direction, req StartJobRequest) (string, error) {
	if req.TracksToSync == nil {
		req.TracksToSync = []string{}
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := s.postJSON(ctx, "/jobs/"+url.PathEscape(string(dir)), req, &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", fmt.Errorf("%w: response missing job_id", shared.ErrAPIRequest)
	}
	return out.JobID, nil
}

// GetJob calls GET /jobs/{id}. A 404 is reported as [shared.ErrJobNotFound].
func (s *JobsService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	resp, err := s.getJSON(ctx, "/jobs/"+url.PathEscape(jobID), &job)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, jobID)
		}
		return nil, err
	}
	if job.JobID == "" {
		job.JobID = jobID
	}
	return &job, nil
}

// LatestJob calls GET /jobs/latest/{user_id}. A 404 means there is none and returns (nil, nil).
func (s *JobsService) LatestJob(ctx context.Context, userID string) (*models.Job, error) {
	var job models.Job
	resp, err := s.getJSON(ctx, "/jobs/latest/"+url.PathEscape(userID), &job)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if job.JobID == "" {
		return nil, nil
	}
	return &job, nil
}

// FinalizeJob calls POST /jobs/{id}/finalize with the reviewed songs.
func (s *JobsService) FinalizeJob(ctx context.Context, jobID string, songs []models.SongMatch) error {
	if songs == nil {
		songs = []models.SongMatch{}
	}
	body := struct {
		Songs []models.SongMatch `json:"songs"`
	}{Songs: songs}
	return s.postJSON(ctx, "/jobs/"+url.PathEscape(jobID)+"/finalize", body, nil)
}

// ManualSearch calls GET /manual_search and returns candidates in backend order.
func (s *JobsService) ManualSearch(ctx context.Context, song, artist, userID string) ([]models.Candidate, error) {
	q := url.Values{}
	q.Set("song", song)
	q.Set("artist", artist)
	q.Set("user_id", userID)

	var candidates []models.Candidate
	if _, err := s.getJSON(ctx, "/manual_search?"+q.Encode(), &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// Health calls GET /health and returns the reported status.
func (s *JobsService) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if _, err := s.getJSON(ctx, "/health", &out); err != nil {
		return "", err
	}
	if out.Status != "ok" {
		return out.Status, fmt.Errorf("%w: health status %q", shared.ErrServiceUnavailable, out.Status)
	}
	return out.Status, nil
}
