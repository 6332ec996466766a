// Package youtube implements the reference platform provider: a guarded
// download of the rendered video, an OAuth-refreshed resumable-upload
// handshake, the byte upload itself, and deletion for cleanup tasks. Each
// stage is wrapped independently in the bounded retry helper.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	ytapi "google.golang.org/api/youtube/v3"

	"publishd/internal/pkg/errors"
	"publishd/internal/pkg/logger"
	"publishd/internal/provider"
	"publishd/internal/scheduler"
	"publishd/pkg/retry"
)

const (
	maxAttempts = 3
	baseDelay   = 500 * time.Millisecond

	defaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"
	defaultDeleteURL = "https://www.googleapis.com/youtube/v3/videos"
)

// Options configures the provider. The endpoint overrides exist for tests;
// production wiring leaves them empty.
type Options struct {
	ClientID     string
	ClientSecret string

	// AllowedMediaHosts is the hostname allowlist for source downloads.
	// The provider fails closed when it is empty.
	AllowedMediaHosts []string

	// TokenURL, UploadURL and DeleteURL override the platform endpoints.
	TokenURL  string
	UploadURL string
	DeleteURL string

	HTTPClient *http.Client
	Log        *logger.Logger
}

// Provider publishes rendered videos to YouTube channels.
type Provider struct {
	clientID     string
	clientSecret string
	allowedHosts map[string]bool
	endpoint     oauth2.Endpoint
	uploadURL    string
	deleteURL    string
	http         *http.Client
	log          *logger.Logger

	attempts int
	delay    time.Duration
}

// New builds the provider. An empty media host allowlist is refused so a
// missing allowlist can never widen into "download from anywhere".
func New(opts Options) (*Provider, error) {
	if len(opts.AllowedMediaHosts) == 0 {
		return nil, fmt.Errorf("youtube: allowed media host list is empty")
	}

	allowed := make(map[string]bool, len(opts.AllowedMediaHosts))
	for _, h := range opts.AllowedMediaHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			allowed[h] = true
		}
	}

	endpoint := google.Endpoint
	if opts.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: opts.TokenURL}
	}

	uploadURL := opts.UploadURL
	if uploadURL == "" {
		uploadURL = defaultUploadURL
	}
	deleteURL := opts.DeleteURL
	if deleteURL == "" {
		deleteURL = defaultDeleteURL
	}

	httpc := opts.HTTPClient
	if httpc == nil {
		// Uploads can be large; per-call deadlines come from the caller.
		httpc = &http.Client{Timeout: 10 * time.Minute}
	}

	log := opts.Log
	if log == nil {
		log = logger.NewDefault()
	}

	return &Provider{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		allowedHosts: allowed,
		endpoint:     endpoint,
		uploadURL:    uploadURL,
		deleteURL:    deleteURL,
		http:         httpc,
		log:          log.WithComponent("youtube-provider"),
		attempts:     maxAttempts,
		delay:        baseDelay,
	}, nil
}

// media is the downloaded source video plus its declared content type.
type media struct {
	data        []byte
	contentType string
}

// Schedule runs the three-stage publish pipeline: download, resumable-upload
// init, byte upload. Every stage retries independently on retryable errors.
func (p *Provider) Schedule(ctx context.Context, task scheduler.PublishTask) (provider.Result, error) {
	log := p.log.WithTaskID(task.ID)

	med, err := retry.Do(ctx, p.attempts, p.delay, errors.IsRetryable, func(ctx context.Context) (media, error) {
		return p.download(ctx, task.VideoURL)
	})
	if err != nil {
		return provider.Result{}, err
	}
	log.Debug("video downloaded", "bytes", len(med.data), "content_type", med.contentType)

	sessionURL, err := retry.Do(ctx, p.attempts, p.delay, errors.IsRetryable, func(ctx context.Context) (string, error) {
		return p.initUpload(ctx, task, med)
	})
	if err != nil {
		return provider.Result{}, err
	}
	log.Debug("resumable upload session opened")

	videoID, err := retry.Do(ctx, p.attempts, p.delay, errors.IsRetryable, func(ctx context.Context) (string, error) {
		return p.upload(ctx, sessionURL, med)
	})
	if err != nil {
		return provider.Result{}, err
	}

	log.Info("video published", "video_id", videoID)
	return provider.Result{ProviderTaskID: videoID}, nil
}

// Cleanup deletes the platform video for a retracted publish. A task that
// was never scheduled, or a channel without credentials, is a no-op.
func (p *Provider) Cleanup(ctx context.Context, task scheduler.PublishTask) error {
	log := p.log.WithTaskID(task.ID)

	if task.ProviderTaskID == "" {
		log.Warn("cleanup skipped: task has no provider task id")
		return nil
	}
	if strings.TrimSpace(task.Channel.RefreshToken) == "" {
		log.Warn("cleanup skipped: channel has no refresh token")
		return nil
	}

	token, err := p.refreshAccessToken(ctx, task.Channel.RefreshToken)
	if err != nil {
		return err
	}

	_, err = retry.Do(ctx, p.attempts, p.delay, errors.IsRetryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.deleteVideo(ctx, token, task.ProviderTaskID)
	})
	if err != nil {
		return err
	}

	log.Info("video deleted", "video_id", task.ProviderTaskID)
	return nil
}

// download validates the source URL against the transport and host policy,
// then fetches the bytes. Policy violations never reach the network.
func (p *Provider) download(ctx context.Context, rawURL string) (media, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return media{}, errors.New(errors.CodeDownloadFailed, false, "youtube.download", "video URL is not valid").WithField("url", rawURL)
	}
	if u.Scheme != "https" {
		return media{}, errors.Newf(errors.CodeDownloadFailed, false, "youtube.download", "video URL must use https, got %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if !p.allowedHosts[host] {
		return media{}, errors.New(errors.CodeDownloadFailed, false, "youtube.download", "video host is not on the allowlist").WithField("host", host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return media{}, errors.New(errors.CodeDownloadFailed, false, "youtube.download", "building download request failed")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		e := errors.New(errors.CodeDownloadFailed, true, "youtube.download", "fetching video failed")
		e.Err = err
		return media{}, e
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode == 429 || resp.StatusCode >= 500
		return media{}, errors.Newf(errors.CodeDownloadFailed, retryable, "youtube.download", "storage returned http %d", resp.StatusCode).
			WithField("status", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e := errors.New(errors.CodeDownloadFailed, true, "youtube.download", "reading video body failed")
		e.Err = err
		return media{}, e
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return media{data: data, contentType: contentType}, nil
}

type videoSnippet struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type videoStatus struct {
	PrivacyStatus           string `json:"privacyStatus"`
	PublishAt               string `json:"publishAt,omitempty"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
	MadeForKids             bool   `json:"madeForKids"`
}

// buildStatus applies the visibility rule: a future publishAt schedules a
// private upload, a past one publishes immediately. Age-sensitive flags are
// hard-coded false per the platform API contract.
func buildStatus(publishAt, now time.Time) videoStatus {
	st := videoStatus{PrivacyStatus: "public"}
	if publishAt.After(now) {
		st.PrivacyStatus = "private"
		st.PublishAt = publishAt.UTC().Format(time.RFC3339)
	}
	return st
}

// initUpload refreshes the access token and opens a resumable upload
// session. The session URL arrives in the Location response header; a
// missing header is a platform contract violation, not a transient fault.
func (p *Provider) initUpload(ctx context.Context, task scheduler.PublishTask, med media) (string, error) {
	token, err := p.refreshAccessToken(ctx, task.Channel.RefreshToken)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"snippet": videoSnippet{Title: task.Title, Description: task.Description},
		"status":  buildStatus(task.PublishAt, time.Now()),
	})
	if err != nil {
		return "", errors.New(errors.CodePlatformHTTP, false, "youtube.init", "encoding upload metadata failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.New(errors.CodePlatformHTTP, false, "youtube.init", "building init request failed")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Upload-Content-Length", strconv.Itoa(len(med.data)))
	req.Header.Set("X-Upload-Content-Type", med.contentType)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", networkErr("youtube.init", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classify("youtube.init", resp)
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", errors.New(errors.CodePlatformHTTP, false, "youtube.init", "resumable session URL missing from response")
	}
	return sessionURL, nil
}

// upload PUTs the full payload to the session URL. A retried attempt
// re-uploads from the top; there is no resume-from-offset.
func (p *Provider) upload(ctx context.Context, sessionURL string, med media) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(med.data))
	if err != nil {
		return "", errors.New(errors.CodePlatformHTTP, false, "youtube.upload", "building upload request failed")
	}
	req.ContentLength = int64(len(med.data))
	req.Header.Set("Content-Type", med.contentType)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", networkErr("youtube.upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classify("youtube.upload", resp)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.ID == "" {
		return "", errors.New(errors.CodePlatformHTTP, false, "youtube.upload", "upload response carried no video id")
	}
	return body.ID, nil
}

// deleteVideo removes the platform-native resource. An already-deleted video
// (404) counts as success.
func (p *Provider) deleteVideo(ctx context.Context, token, videoID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.deleteURL+"?id="+url.QueryEscape(videoID), nil)
	if err != nil {
		return errors.New(errors.CodePlatformHTTP, false, "youtube.cleanup", "building delete request failed")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return networkErr("youtube.cleanup", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify("youtube.cleanup", resp)
	}
	return nil
}

// refreshAccessToken exchanges the stored refresh token for a short-lived
// access token. The stored access token is never trusted.
func (p *Provider) refreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", errors.New(errors.CodePlatformHTTP, false, "youtube.auth", "channel has no refresh token")
	}

	conf := &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     p.endpoint,
		Scopes:       []string{ytapi.YoutubeUploadScope},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", errors.ClassifyHTTP("youtube.auth", rerr.Response.StatusCode, "", string(rerr.Body))
		}
		return "", networkErr("youtube.auth", err)
	}
	return token.AccessToken, nil
}

// classify reads the error body, extracts the platform-reported reason from
// its Google-style error envelope, and defers to the shared classification.
func classify(op string, resp *http.Response) *errors.Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	resp.Body = io.NopCloser(bytes.NewReader(body))

	reason := ""
	if err := googleapi.CheckResponse(resp); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && len(gerr.Errors) > 0 {
			reason = gerr.Errors[0].Reason
		}
	}

	return errors.ClassifyHTTP(op, resp.StatusCode, reason, string(body))
}

func networkErr(op string, err error) *errors.Error {
	e := errors.New(errors.CodeNetwork, true, op, "network failure")
	e.Err = err
	return e
}
