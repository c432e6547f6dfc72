package adapters

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/go-chi/chi/v5"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wv-forge/internal/types"
)

type fakePrefixChannel struct {
	mu            sync.Mutex
	existing      map[string]string
	uploads       []http.Header
	bodies        [][]byte
	repodataHits  int
	failFirst     int
	uploadStatus  int
	uploadMessage string
}

func newFakePrefixChannel() *fakePrefixChannel {
	return &fakePrefixChannel{existing: map[string]string{}, uploadStatus: http.StatusOK}
}

func (f *fakePrefixChannel) server(t *testing.T) *httptest.Server {
	t.Helper()
	router := chi.NewRouter()
	router.Get("/{channel}/{subdir}/repodata.json", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.repodataHits++
		subdir := chi.URLParam(r, "subdir")
		if chi.URLParam(r, "channel") != "wv-forge" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		body := `{"packages": {}, "packages.conda": {`
		first := true
		for file, dir := range f.existing {
			if dir != subdir {
				continue
			}
			if !first {
				body += ","
			}
			body += `"` + file + `": {}`
			first = false
		}
		body += "}}"
		_, _ = io.WriteString(w, body)
	})
	router.Post("/api/v1/upload/{channel}", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.uploads = append(f.uploads, r.Header.Clone())
		f.bodies = append(f.bodies, data)
		if f.failFirst > 0 {
			f.failFirst--
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		if f.uploadStatus != http.StatusOK {
			http.Error(w, f.uploadMessage, f.uploadStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakePrefixChannel) recorded() ([]http.Header, [][]byte, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.bodies, f.repodataHits
}

func prefixArtifact(t *testing.T, subdir string, name string, content string) types.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), subdir, name)
	writeFile(t, path, content)
	return types.Artifact{Path: path, Subdir: subdir, FileName: name, Size: int64(len(content))}
}

func TestPrefixChannelUploadsWithHeaders(t *testing.T) {
	fake := newFakePrefixChannel()
	srv := fake.server(t)
	adapter := NewPrefixChannelAdapter(srv.URL, "wv-forge", "secret-token", 5, 3, 1)
	artifact := prefixArtifact(t, "linux-64", "spconv-2.3.8-cuda129_0.conda", "conda-bytes")

	outcome, err := adapter.Publish(t.Context(), artifact)
	require.NoError(t, err)
	assert.Equal(t, types.PublishOutcomePublished, outcome)

	uploads, bodies, _ := fake.recorded()
	require.Len(t, uploads, 1)
	header := uploads[0]
	assert.Equal(t, "spconv-2.3.8-cuda129_0.conda", header.Get("X-File-Name"))
	assert.Equal(t, digest.FromString("conda-bytes").Encoded(), header.Get("X-File-SHA256"))
	assert.Equal(t, "Bearer secret-token", header.Get("Authorization"))
	assert.Equal(t, "application/octet-stream", header.Get("Content-Type"))
	assert.Equal(t, "conda-bytes", string(bodies[0]))
}

func TestPrefixChannelSkipsArtifactsInRepodata(t *testing.T) {
	fake := newFakePrefixChannel()
	fake.existing["pyutil-0.4.0-pyh0_0.conda"] = "noarch"
	srv := fake.server(t)
	adapter := NewPrefixChannelAdapter(srv.URL, "wv-forge", "token", 5, 3, 1)

	present := prefixArtifact(t, "noarch", "pyutil-0.4.0-pyh0_0.conda", "a")
	fresh := prefixArtifact(t, "noarch", "other-1.0-pyh0_0.conda", "b")

	outcome, err := adapter.Publish(t.Context(), present)
	require.NoError(t, err)
	assert.Equal(t, types.PublishOutcomeAlreadyPresent, outcome)

	outcome, err = adapter.Publish(t.Context(), fresh)
	require.NoError(t, err)
	assert.Equal(t, types.PublishOutcomePublished, outcome)

	// The uploaded file is recorded without refetching the index.
	outcome, err = adapter.Publish(t.Context(), fresh)
	require.NoError(t, err)
	assert.Equal(t, types.PublishOutcomeAlreadyPresent, outcome)

	uploads, _, hits := fake.recorded()
	assert.Equal(t, 1, hits)
	assert.Len(t, uploads, 1)
}

func TestPrefixChannelConflictIsAlreadyPresent(t *testing.T) {
	fake := newFakePrefixChannel()
	fake.uploadStatus = http.StatusConflict
	fake.uploadMessage = "file exists"
	srv := fake.server(t)
	adapter := NewPrefixChannelAdapter(srv.URL, "wv-forge", "token", 5, 3, 1)

	outcome, err := adapter.Publish(t.Context(), prefixArtifact(t, "linux-64", "a-1.0-h0_0.conda", "a"))
	require.NoError(t, err)
	assert.Equal(t, types.PublishOutcomeAlreadyPresent, outcome)
}

func TestPrefixChannelRetriesServerErrors(t *testing.T) {
	fake := newFakePrefixChannel()
	fake.failFirst = 2
	srv := fake.server(t)
	adapter := NewPrefixChannelAdapter(srv.URL, "wv-forge", "token", 5, 3, 1)

	outcome, err := adapter.Publish(t.Context(), prefixArtifact(t, "linux-64", "a-1.0-h0_0.conda", "a"))
	require.NoError(t, err)
	assert.Equal(t, types.PublishOutcomePublished, outcome)
	uploads, bodies, _ := fake.recorded()
	assert.Len(t, uploads, 3)
	for _, body := range bodies {
		assert.Equal(t, "a", string(body))
	}
}

func TestPrefixChannelErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		message     string
		failFirst   int
		apiKey      string
		wantCode    errbuilder.ErrCode
		wantUploads int
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, message: "bad token", apiKey: "token", wantCode: errbuilder.CodePermissionDenied, wantUploads: 1},
		{name: "bad request is not retried", status: http.StatusBadRequest, message: "invalid package", apiKey: "token", wantCode: errbuilder.CodeInternal, wantUploads: 1},
		{name: "retries exhausted", status: http.StatusOK, failFirst: 5, apiKey: "token", wantCode: errbuilder.CodeInternal, wantUploads: 3},
		{name: "missing api key", status: http.StatusOK, wantCode: errbuilder.CodeFailedPrecondition, wantUploads: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakePrefixChannel()
			fake.uploadStatus = tt.status
			fake.uploadMessage = tt.message
			fake.failFirst = tt.failFirst
			srv := fake.server(t)
			adapter := NewPrefixChannelAdapter(srv.URL, "wv-forge", tt.apiKey, 5, 3, 1)

			_, err := adapter.Publish(t.Context(), prefixArtifact(t, "linux-64", "a-1.0-h0_0.conda", "a"))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errbuilder.CodeOf(err))
			uploads, _, _ := fake.recorded()
			assert.Len(t, uploads, tt.wantUploads)
		})
	}
}

func TestPrefixChannelAlreadyInBadRequest(t *testing.T) {
	fake := newFakePrefixChannel()
	fake.uploadStatus = http.StatusBadRequest
	fake.uploadMessage = "package already exists"
	srv := fake.server(t)
	adapter := NewPrefixChannelAdapter(srv.URL, "wv-forge", "token", 5, 3, 1)

	outcome, err := adapter.Publish(t.Context(), prefixArtifact(t, "linux-64", "a-1.0-h0_0.conda", "a"))
	require.NoError(t, err)
	assert.Equal(t, types.PublishOutcomeAlreadyPresent, outcome)
}

func TestPrefixChannelMissingSubdirIsEmpty(t *testing.T) {
	fake := newFakePrefixChannel()
	srv := fake.server(t)
	adapter := NewPrefixChannelAdapter(srv.URL, "unknown-channel", "token", 5, 3, 1)

	outcome, err := adapter.Publish(t.Context(), prefixArtifact(t, "linux-64", "a-1.0-h0_0.conda", "a"))
	require.NoError(t, err)
	assert.Equal(t, types.PublishOutcomePublished, outcome)
}

func TestPrefixChannelInitIsUnsupported(t *testing.T) {
	err := NewPrefixChannelAdapter("", "wv-forge", "token", 0, 0, 0).InitChannel(t.Context(), []string{"noarch"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestPrefixChannelRejectsOversizedArtifact(t *testing.T) {
	fake := newFakePrefixChannel()
	srv := fake.server(t)
	adapter := NewPrefixChannelAdapter(srv.URL, "wv-forge", "token", 5, 3, 1)
	artifact := prefixArtifact(t, "linux-64", "huge-1.0-h0_0.conda", "")
	require.NoError(t, os.Truncate(artifact.Path, MaxPrefixUploadSize+1))

	_, err := adapter.Publish(t.Context(), artifact)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "too large")

	uploads, _, _ := fake.recorded()
	assert.Empty(t, uploads)
}
