// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kodik

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/fetch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPageURL    = "https://kodik.info/seria/1187431/5f7e1c2a9b8d4e60/720p"
	testScriptPath = "/assets/js/app.player_single.0a1b2c3d.js"
)

var fullLinks = fmt.Sprintf(`{"advert_script":"","domain":"kodik.info","default":360,"links":{"360":[{"src":%q,"type":"application/x-mpegURL"}],"480":[{"src":%q}],"720":[{"src":%q}]}}`, src360, src480, src720)

// fakeKodik plays the provider: page, companion script and API behind one TLS listener.
type fakeKodik struct {
	mu          sync.Mutex
	page        string
	pageStatus  int
	script      string
	scriptFail  bool
	apiPath     string
	apiStatuses []int
	apiBody     string

	hits    map[string]int
	posts   []url.Values
	headers []http.Header
	paths   []string
}

func newFakeKodik(t *testing.T) *fakeKodik {
	return &fakeKodik{
		page:       loadFixture(t, "episode.html"),
		pageStatus: http.StatusOK,
		script:     loadFixture(t, "player_script.js"),
		apiPath:    "/kor",
		apiBody:    fullLinks,
		hits:       map[string]int{},
	}
}

func (f *fakeKodik) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[r.URL.Path]++

	switch {
	case r.Method == http.MethodGet && r.URL.Path == testScriptPath:
		if f.scriptFail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, f.script)
	case r.Method == http.MethodGet:
		w.WriteHeader(f.pageStatus)
		_, _ = io.WriteString(w, f.page)
	case r.Method == http.MethodPost:
		_ = r.ParseForm()
		f.posts = append(f.posts, r.PostForm)
		f.headers = append(f.headers, r.Header.Clone())
		f.paths = append(f.paths, r.URL.Path)

		status := http.StatusOK
		if r.URL.Path != f.apiPath {
			status = http.StatusNotFound
		}
		if len(f.apiStatuses) > 0 {
			status = f.apiStatuses[0]
			f.apiStatuses = f.apiStatuses[1:]
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, f.apiBody)
		}
	}
}

func (f *fakeKodik) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// harness routes every https://kodik.info request to the fake server.
type harness struct {
	fake      *fakeKodik
	extractor *Extractor
	logs      *bytes.Buffer
}

func newHarness(t *testing.T, fake *fakeKodik, endpoints *EndpointResolver) *harness {
	t.Helper()
	srv := httptest.NewTLSServer(fake)
	t.Cleanup(srv.Close)

	transport := srv.Client().Transport.(*http.Transport).Clone()
	transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402 -- test server
	addr := srv.Listener.Addr().String()
	transport.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		return (&net.Dialer{}).DialContext(ctx, network, addr)
	}
	client := &http.Client{Transport: transport, Timeout: 5 * time.Second}

	if endpoints == nil {
		endpoints = NewEndpointResolver(DefaultAPIPath)
	}
	logs := &bytes.Buffer{}
	logger := zerolog.New(logs).Level(zerolog.DebugLevel)
	return &harness{
		fake: fake,
		extractor: New(Options{
			Fetcher:   fetch.New(fetch.Options{Client: client, RateLimit: 1000, Burst: 100}),
			Endpoints: endpoints,
			Logger:    &logger,
		}),
		logs: logs,
	}
}

func TestResolveHappyPath(t *testing.T) {
	h := newHarness(t, newFakeKodik(t), nil)

	res, err := h.extractor.ResolveDetailed(context.Background(), testPageURL)
	require.NoError(t, err)
	require.Nil(t, res.Err)
	assert.Equal(t, StateDone, res.State)
	assert.False(t, res.StaleRetried)
	assert.Equal(t, []extract.MediaSource{
		{Quality: 360, URL: "https://cloud.kodik-storage.com/useruploads/360.mp4"},
		{Quality: 480, URL: "https://cloud.kodik-storage.com/useruploads/480.mp4"},
		{Quality: 720, URL: "https://cloud.kodik-storage.com/useruploads/720.mp4"},
	}, res.Sources)

	require.Len(t, h.fake.posts, 1)
	form := h.fake.posts[0]
	assert.Equal(t, "yummy-anime.ru", form.Get("d"))
	assert.Equal(t, "1187431", form.Get("id"))
	assert.Equal(t, "false", form.Get("bad_user"))
	assert.Equal(t, "{}", form.Get("info"))
	assert.Equal(t, "true", form.Get("cdn_is_working"))

	hdr := h.fake.headers[0]
	assert.Equal(t, "https://kodik.info", hdr.Get("Origin"))
	assert.Equal(t, testPageURL, hdr.Get("Referer"))
	assert.Equal(t, "application/json, text/javascript, */*; q=0.01", hdr.Get("Accept"))
	assert.Equal(t, "application/x-www-form-urlencoded", hdr.Get("Content-Type"))
	assert.Equal(t, "/kor", h.fake.paths[0])
}

func TestResolveDoesNotRefetchScriptWhenCached(t *testing.T) {
	h := newHarness(t, newFakeKodik(t), nil)

	for i := 0; i < 2; i++ {
		got, err := h.extractor.Resolve(context.Background(), testPageURL)
		require.NoError(t, err)
		require.Len(t, got, 3)
	}
	assert.Equal(t, 1, h.fake.hitCount(testScriptPath))
	assert.Equal(t, 2, h.fake.hitCount("/kor"))
}

func TestResolveRetriesOnceAfterAPIFailure(t *testing.T) {
	fake := newFakeKodik(t)
	fake.apiStatuses = []int{http.StatusInternalServerError, http.StatusOK}
	fake.apiBody = fmt.Sprintf(`{"links":{"360":[{"src":%q}],"480":[{"src":%q}]}}`, src360, src480)

	endpoints := NewEndpointResolver(DefaultAPIPath)
	require.True(t, endpoints.Resolve(`$.ajax({type:"POST",url:atob("L2tvcg==")})`))
	h := newHarness(t, fake, endpoints)

	res, err := h.extractor.ResolveDetailed(context.Background(), testPageURL)
	require.NoError(t, err)
	assert.True(t, res.StaleRetried)
	assert.Equal(t, StateDone, res.State)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, extract.Quality480, res.Sources[1].Quality)

	assert.Equal(t, 1, h.fake.hitCount(testScriptPath), "script refreshed once for the retry")
	assert.Len(t, h.fake.posts, 2)
}

func TestResolveRecoversFromStaleCachedPath(t *testing.T) {
	endpoints := NewEndpointResolver(DefaultAPIPath)
	require.True(t, endpoints.Resolve(`$.ajax({type:"POST",url:atob("L2Z0b3I=")})`)) // /ftor, no longer served
	h := newHarness(t, newFakeKodik(t), endpoints)

	got, err := h.extractor.Resolve(context.Background(), testPageURL)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, []string{"/ftor", "/kor"}, h.fake.paths)
	assert.Equal(t, "/kor", endpoints.Path())
}

func TestResolveGivesUpAfterSecondAPIFailure(t *testing.T) {
	fake := newFakeKodik(t)
	fake.apiStatuses = []int{http.StatusInternalServerError, http.StatusInternalServerError, http.StatusOK}
	h := newHarness(t, fake, nil)

	res, err := h.extractor.ResolveDetailed(context.Background(), testPageURL)
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.Err)
	assert.Equal(t, StageAPI, res.Err.Stage)
	assert.ErrorIs(t, res.Err, ErrTransport)
	assert.Len(t, fake.posts, 2, "exactly one retry")
}

func TestResolveMissingFieldLogsName(t *testing.T) {
	fake := newFakeKodik(t)
	fake.page = dropLine(fake.page, "var domain")
	h := newHarness(t, fake, nil)

	res, err := h.extractor.ResolveDetailed(context.Background(), testPageURL)
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.Contains(t, h.logs.String(), "missing field: d")
	assert.NotContains(t, h.logs.String(), "missing field: d_sign")
	assert.Zero(t, fake.hitCount(testScriptPath))

	require.NotNil(t, res.Err)
	assert.Equal(t, StagePayload, res.Err.Stage)
	assert.ErrorIs(t, res.Err, ErrValidation)
}

func TestResolveSoftFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fakeKodik)
		stage  Stage
		kind   error
	}{
		{
			name:   "page status",
			mutate: func(f *fakeKodik) { f.pageStatus = http.StatusForbidden },
			stage:  StagePage,
			kind:   ErrTransport,
		},
		{
			name: "video not found",
			mutate: func(f *fakeKodik) {
				f.page = `<html><body><div class="message">Видео не найдено</div></body></html>`
			},
			stage: StageContent,
			kind:  ErrContent,
		},
		{
			name: "unhandled lowlevel error",
			mutate: func(f *fakeKodik) {
				f.pageStatus = http.StatusInternalServerError
				f.page = "An unhandled lowlevel error occurred. The application logs may have details."
			},
			stage: StageContent,
			kind:  ErrContent,
		},
		{
			name:   "invalid script path",
			mutate: func(f *fakeKodik) { f.page = strings.ReplaceAll(f.page, "/assets/js/app.", "/static/app.") },
			stage:  StagePayload,
			kind:   ErrValidation,
		},
		{
			name:   "script fetch",
			mutate: func(f *fakeKodik) { f.scriptFail = true },
			stage:  StageScript,
			kind:   ErrTransport,
		},
		{
			name:   "malformed json",
			mutate: func(f *fakeKodik) { f.apiBody = `{"links":` },
			stage:  StageJSON,
			kind:   ErrValidation,
		},
		{
			name:   "missing tiers",
			mutate: func(f *fakeKodik) { f.apiBody = `{"links":{"1080":[{"src":"x"}]}}` },
			stage:  StageShape,
			kind:   ErrValidation,
		},
		{
			name:   "missing 360 tier",
			mutate: func(f *fakeKodik) { f.apiBody = fmt.Sprintf(`{"links":{"480":[{"src":%q}]}}`, src480) },
			stage:  StageShape,
			kind:   ErrValidation,
		},
		{
			name:   "undecodable sources",
			mutate: func(f *fakeKodik) { f.apiBody = `{"links":{"360":[{"src":"%%%"}]}}` },
			stage:  StageMap,
			kind:   ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeKodik(t)
			tt.mutate(fake)
			h := newHarness(t, fake, nil)

			res, err := h.extractor.ResolveDetailed(context.Background(), testPageURL)
			require.NoError(t, err)
			assert.Empty(t, res.Sources)
			assert.Equal(t, StateFailed, res.State)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.stage, res.Err.Stage)
			assert.ErrorIs(t, res.Err, tt.kind)
			assert.Contains(t, h.logs.String(), `"stage":"`+string(tt.stage)+`"`)
		})
	}
}

func TestResolveRejectsForeignURL(t *testing.T) {
	h := newHarness(t, newFakeKodik(t), nil)

	for _, u := range []string{"https://aniboom.one/embed/1", "http://kodik.info/seria/1", ""} {
		_, err := h.extractor.Resolve(context.Background(), u)
		require.Error(t, err, u)
		assert.ErrorIs(t, err, extract.ErrRouting)
	}
	assert.Empty(t, h.fake.hits)
}

func TestExtractorInRegistry(t *testing.T) {
	h := newHarness(t, newFakeKodik(t), nil)
	reg := extract.NewRegistry(h.extractor)

	assert.True(t, reg.Supported(testPageURL))
	got, err := reg.Resolve(context.Background(), testPageURL)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
