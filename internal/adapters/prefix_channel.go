package adapters

import (
	"context"
	_ "crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	"wv-forge/internal/ports"
	"wv-forge/internal/shared"
	"wv-forge/internal/types"
)

const defaultPrefixBaseURL = "https://prefix.dev"
const defaultPrefixUploadRetries = 3
const defaultPrefixRetryDelay = 200 * time.Millisecond
const defaultPrefixTimeout = 300 * time.Second
const maxPrefixRetryDelay = 2 * time.Second

// MaxPrefixUploadSize is the largest artifact the upload API accepts.
const MaxPrefixUploadSize int64 = 100 * 1024 * 1024

// PrefixChannelAdapter uploads artifacts through the prefix.dev upload API.
// Each subdir's repodata is fetched once and consulted before uploading.
type PrefixChannelAdapter struct {
	BaseURL    string
	Channel    string
	APIKey     string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	Client     *http.Client

	index *repodataIndex
}

type repodataIndex struct {
	mu      sync.Mutex
	subdirs map[string]map[string]struct{}
}

type repodata struct {
	Packages      map[string]json.RawMessage `json:"packages"`
	PackagesConda map[string]json.RawMessage `json:"packages.conda"`
}

func NewPrefixChannelAdapter(baseURL string, channel string, apiKey string, timeoutSec int, retries int, retryDelayMs int) PrefixChannelAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultPrefixBaseURL
	}
	timeout := normalizePrefixTimeout(timeoutSec)
	return PrefixChannelAdapter{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Channel:    strings.Trim(strings.TrimSpace(channel), "/"),
		APIKey:     apiKey,
		Timeout:    timeout,
		Retries:    normalizePrefixRetries(retries),
		RetryDelay: normalizePrefixRetryDelay(retryDelayMs),
		Client:     &http.Client{Timeout: timeout},
		index:      &repodataIndex{subdirs: map[string]map[string]struct{}{}},
	}
}

func (a PrefixChannelAdapter) Publish(ctx context.Context, artifact types.Artifact) (types.PublishOutcome, error) {
	if a.Channel == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("prefix channel is empty")
	}
	if strings.TrimSpace(a.APIKey) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("prefix api key is not set")
	}
	present, err := a.isPresent(ctx, artifact)
	if err != nil {
		return "", err
	}
	if present {
		zerolog.Ctx(ctx).Debug().Str("file", artifact.FileName).Msg("artifact already in channel")
		return types.PublishOutcomeAlreadyPresent, nil
	}
	if err := checkUploadSize(artifact); err != nil {
		return "", err
	}
	sum, err := fileDigest(artifact.Path)
	if err != nil {
		return "", err
	}
	return a.upload(ctx, artifact, sum)
}

func checkUploadSize(artifact types.Artifact) error {
	info, err := os.Stat(artifact.Path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to stat artifact").
			WithCause(err)
	}
	if info.Size() > MaxPrefixUploadSize {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("%s is too large to upload (%.1f MB > %d MB limit)",
				artifact.FileName, float64(info.Size())/(1024*1024), MaxPrefixUploadSize/(1024*1024)))
	}
	return nil
}

// InitChannel is not supported; prefix channels are created server-side.
func (a PrefixChannelAdapter) InitChannel(_ context.Context, _ []string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("prefix channels cannot be initialized from the command line")
}

func (a PrefixChannelAdapter) upload(ctx context.Context, artifact types.Artifact, sum digest.Digest) (types.PublishOutcome, error) {
	var lastErr error
	for attempt := 0; attempt < a.retries(); attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		outcome, retry, err := a.uploadOnce(ctx, artifact, sum)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !retry || attempt == a.retries()-1 {
			return "", err
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("file", artifact.FileName).Int("attempt", attempt+1).Msg("upload failed, retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.retryDelay(attempt)):
		}
	}
	if lastErr == nil {
		lastErr = errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("prefix upload failed")
	}
	return "", lastErr
}

func (a PrefixChannelAdapter) uploadOnce(ctx context.Context, artifact types.Artifact, sum digest.Digest) (types.PublishOutcome, bool, error) {
	uploadURL := fmt.Sprintf("%s/api/v1/upload/%s", a.BaseURL, url.PathEscape(a.Channel))
	file, err := os.Open(artifact.Path)
	if err != nil {
		return "", false, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to open artifact").
			WithCause(err)
	}
	defer file.Close()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, file)
	if err != nil {
		return "", false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create prefix request").
			WithCause(err)
	}
	if artifact.Size > 0 {
		req.ContentLength = artifact.Size
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-File-Name", artifact.FileName)
	req.Header.Set("X-File-SHA256", sum.Encoded())
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	resp, err := a.client().Do(req)
	if err != nil {
		return "", true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("prefix upload failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		a.index.add(artifact.Subdir, artifact.FileName)
		return types.PublishOutcomePublished, false, nil
	}
	body, _ := io.ReadAll(resp.Body)
	message := strings.TrimSpace(string(body))
	if resp.StatusCode == http.StatusConflict {
		return types.PublishOutcomeAlreadyPresent, false, nil
	}
	if resp.StatusCode == http.StatusBadRequest && shared.ContainsFold(message, "already") {
		return types.PublishOutcomeAlreadyPresent, false, nil
	}
	code := errbuilder.CodeInternal
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		code = errbuilder.CodePermissionDenied
	}
	retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
	return "", retry, errbuilder.New().
		WithCode(code).
		WithMsg("prefix upload failed").
		WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, uploadURL, message))
}

func (a PrefixChannelAdapter) isPresent(ctx context.Context, artifact types.Artifact) (bool, error) {
	if a.index == nil {
		files, err := a.fetchRepodata(ctx, artifact.Subdir)
		if err != nil {
			return false, err
		}
		_, present := files[artifact.FileName]
		return present, nil
	}
	a.index.mu.Lock()
	defer a.index.mu.Unlock()
	files, ok := a.index.subdirs[artifact.Subdir]
	if !ok {
		fetched, err := a.fetchRepodata(ctx, artifact.Subdir)
		if err != nil {
			return false, err
		}
		files = fetched
		a.index.subdirs[artifact.Subdir] = files
	}
	_, present := files[artifact.FileName]
	return present, nil
}

// fetchRepodata lists the files a subdir already holds. A subdir that does
// not exist yet is empty.
func (a PrefixChannelAdapter) fetchRepodata(ctx context.Context, subdir string) (map[string]struct{}, error) {
	repodataURL := fmt.Sprintf("%s/%s/%s/repodata.json", a.BaseURL, url.PathEscape(a.Channel), subdir)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, repodataURL, nil)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create repodata request").
			WithCause(err)
	}
	if strings.TrimSpace(a.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}
	resp, err := a.client().Do(req)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("prefix repodata fetch failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	files := map[string]struct{}{}
	if resp.StatusCode == http.StatusNotFound {
		return files, nil
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("prefix repodata fetch failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, repodataURL, strings.TrimSpace(string(body))))
	}
	var index repodata
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to decode repodata").
			WithCause(err)
	}
	for name := range index.Packages {
		files[name] = struct{}{}
	}
	for name := range index.PackagesConda {
		files[name] = struct{}{}
	}
	return files, nil
}

func (i *repodataIndex) add(subdir string, fileName string) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	files, ok := i.subdirs[subdir]
	if !ok {
		return
	}
	files[fileName] = struct{}{}
}

func (a PrefixChannelAdapter) retryDelay(attempt int) time.Duration {
	delay := a.RetryDelay * time.Duration(1<<attempt)
	if delay > maxPrefixRetryDelay {
		delay = maxPrefixRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}

func (a PrefixChannelAdapter) retries() int {
	return normalizePrefixRetries(a.Retries)
}

func (a PrefixChannelAdapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return &http.Client{Timeout: a.Timeout}
}

func normalizePrefixTimeout(value int) time.Duration {
	timeout := time.Duration(value) * time.Second
	if timeout <= 0 {
		return defaultPrefixTimeout
	}
	return timeout
}

func normalizePrefixRetries(value int) int {
	if value <= 0 {
		return defaultPrefixUploadRetries
	}
	return value
}

func normalizePrefixRetryDelay(value int) time.Duration {
	delay := time.Duration(value) * time.Millisecond
	if delay <= 0 {
		return defaultPrefixRetryDelay
	}
	return delay
}

var _ ports.ChannelPublisherPort = PrefixChannelAdapter{}
var _ ports.ChannelInitPort = PrefixChannelAdapter{}
