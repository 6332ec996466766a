package scheduler

import "time"

// TaskStatus is the lifecycle state of a publish task as tracked by the
// scheduler API.
type TaskStatus string

const (
	StatusPending        TaskStatus = "pending"
	StatusScheduled      TaskStatus = "scheduled"
	StatusRetry          TaskStatus = "retry"
	StatusFailed         TaskStatus = "failed"
	StatusCleanupPending TaskStatus = "cleanup_pending"
	StatusDone           TaskStatus = "done"
)

// Queue names accepted by the task listing endpoint.
const (
	QueuePending = "pending"
	QueueCleanup = "cleanup"
)

// ChannelCredentials identifies one destination account on a platform. The
// daemon holds these only for the duration of one task; it always exchanges
// the refresh token for a fresh access token and never persists anything.
type ChannelCredentials struct {
	ChannelID      string         `json:"channelId"`
	RefreshToken   string         `json:"refreshToken,omitempty"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TokenExpiresAt *time.Time     `json:"tokenExpiresAt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// PublishTask is one request to publish a rendered video to one channel.
type PublishTask struct {
	ID             string             `json:"id"`
	Platform       string             `json:"platform"`
	Channel        ChannelCredentials `json:"channel"`
	VideoURL       string             `json:"videoUrl"`
	PublishAt      time.Time          `json:"publishAt"`
	Title          string             `json:"title,omitempty"`
	Description    string             `json:"description,omitempty"`
	Status         TaskStatus         `json:"status"`
	ProviderTaskID string             `json:"providerTaskId,omitempty"`
}

// UpdateTaskRequest is the outcome report for one processed task.
type UpdateTaskRequest struct {
	Status           TaskStatus     `json:"status"`
	ProviderTaskID   string         `json:"providerTaskId,omitempty"`
	Error            string         `json:"error,omitempty"`
	ProviderResponse map[string]any `json:"providerResponse,omitempty"`
}

// CompleteCleanupRequest is the outcome report for one cleanup task.
type CompleteCleanupRequest struct {
	Status TaskStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}
