package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
)

// Notification is a user-facing status message.
//
// Sent to the CLI or UI layer for display; the latest one is kept as the session's status line.
type Notification struct {
	Kind    NotifyKind
	Message string
	JobID   string
	Time    time.Time
}

// NotifyKind colors a [Notification].
type NotifyKind int

const (
	NotifyInfo NotifyKind = iota
	NotifySuccess
	NotifyError
)

func (k NotifyKind) String() string {
	switch k {
	case NotifyInfo:
		return "info"
	case NotifySuccess:
		return "success"
	case NotifyError:
		return "error"
	default:
		return ""
	}
}

func newNotification(kind NotifyKind, jobID, msg string) Notification {
	return Notification{Kind: kind, Message: msg, JobID: jobID, Time: time.Now()}
}

func jobStartedNotification(jobID, playlist string) Notification {
	return newNotification(NotifyInfo, jobID, fmt.Sprintf("Started sync of %s", playlist))
}

func startFailedNotification(err error) Notification {
	return newNotification(NotifyError, "", fmt.Sprintf("Could not start sync: %v", err))
}

func pollFailedNotification(jobID string, err error) Notification {
	return newNotification(NotifyError, jobID, fmt.Sprintf("Lost track of job %s: %v", jobID, err))
}

func jobCompletedNotification(job *models.Job) Notification {
	return newNotification(NotifySuccess, job.JobID, completedMessage(job))
}

func jobFailedNotification(job *models.Job) Notification {
	return newNotification(NotifyError, job.JobID, failedMessage(job))
}

func reviewReadyNotification(job *models.Job) Notification {
	n := len(job.Songs())
	return newNotification(NotifyInfo, job.JobID, fmt.Sprintf("%d songs ready for review", n))
}

func finalizingNotification(jobID string) Notification {
	return newNotification(NotifyInfo, jobID, "Finalizing…")
}

func finalizeSucceededNotification(job *models.Job) Notification {
	msg := "Sync finalized"
	if job.Notes != "" {
		msg = job.Notes
	}
	return newNotification(NotifySuccess, job.JobID, msg)
}

func finalizeFailedNotification(job *models.Job) Notification {
	return newNotification(NotifyError, job.JobID, failedMessage(job))
}

func emptyResultNotification() Notification {
	return newNotification(NotifyInfo, "", "Nothing to sync: every song is already there")
}

func completedMessage(job *models.Job) string {
	if job.Notes != "" {
		return job.Notes
	}
	return "Sync completed"
}

func syncedMessage(job *models.Job) string {
	return fmt.Sprintf("%d songs synced", job.SyncedCount())
}

func failedMessage(job *models.Job) string {
	switch {
	case job.Notes != "":
		return job.Notes
	case job.Error != "":
		return job.Error
	default:
		return "Sync failed"
	}
}
