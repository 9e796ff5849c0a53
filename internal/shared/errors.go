package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrMissingUser   = fmt.Errorf("missing user id")

	// Transport and backend errors
	ErrTransport          = fmt.Errorf("transport failure")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Job errors
	ErrJobNotFound     = fmt.Errorf("job not found")
	ErrNoCurrentJob    = fmt.Errorf("no current job")
	ErrJobInFlight     = fmt.Errorf("another job is still in flight")
	ErrNotReviewable   = fmt.Errorf("job is not waiting for review")
	ErrUnresolvedSongs = fmt.Errorf("songs still require manual search")
	ErrNoActiveSearch  = fmt.Errorf("no manual search in progress")
	ErrIndexOutOfRange = fmt.Errorf("song index out of range")
	ErrObserverMode    = fmt.Errorf("another jobsync process owns the poller")

	// Store errors
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrKeyNotFound      = fmt.Errorf("key not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
