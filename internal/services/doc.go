// Package services talks to the sync job backend.
//
// # Transport
//
// [APIService] sends raw JSON requests and returns an [APIResponse]. Bearer-token auth comes from
// the [http.Client] built by [NewHTTPClient] (an [oauth2.StaticTokenSource]); request pacing from
// [WithRateLimit].
//
// # Job API
//
// [JobsService] maps the backend endpoints onto typed calls:
//
//	POST /jobs/{direction}        StartJob
//	GET  /jobs/{job_id}           GetJob       (404 → shared.ErrJobNotFound)
//	GET  /jobs/latest/{user_id}   LatestJob    (404 → nil, nil)
//	POST /jobs/{job_id}/finalize  FinalizeJob
//	GET  /manual_search           ManualSearch
//	GET  /health                  Health
//
// # Error Handling
//
//   - [shared.ErrTransport] : no response was received
//   - [*APIError] : non-2xx response; wraps [shared.ErrAPIRequest] and carries the payload's detail
package services
