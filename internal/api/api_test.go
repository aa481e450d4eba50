package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/readingpartner/scriptpipe/internal/blob"
	"github.com/readingpartner/scriptpipe/internal/observe"
	"github.com/readingpartner/scriptpipe/internal/pipeline"
	"github.com/readingpartner/scriptpipe/internal/store"
	alignmock "github.com/readingpartner/scriptpipe/pkg/provider/align/mock"
	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
	extractmock "github.com/readingpartner/scriptpipe/pkg/provider/extract/mock"
	ttsmock "github.com/readingpartner/scriptpipe/pkg/provider/tts/mock"
	"github.com/readingpartner/scriptpipe/pkg/script"
)

const sampleScript = "SARAH\nWe need to leave now.\n\nJOHN\nThen let's go.\n"

type testServer struct {
	router  http.Handler
	store   *store.MemStore
	blobs   *blob.FSStore
	extract *extractmock.Service
	tts     *ttsmock.Service
	align   *alignmock.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := store.NewMemStore()
	blobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ts := &testServer{
		store:   st,
		blobs:   blobs,
		extract: &extractmock.Service{},
		tts:     &ttsmock.Service{Audio: []byte("mp3-bytes")},
		align: &alignmock.Service{Result: &script.Alignment{
			Words: []script.Span{{Text: "we", Start: 0, End: 0.2}},
		}},
	}

	p := pipeline.New(st, blobs, extract.NewExtractor(ts.extract), ts.tts, ts.align,
		pipeline.WithMetrics(metrics))
	runner := pipeline.NewRunner(context.Background(), 2, metrics)

	srv := New(Config{
		Store:          st,
		Blobs:          blobs,
		Pipeline:       p,
		Runner:         runner,
		Metrics:        metrics,
		MaxUploadBytes: 1 << 20,
	})
	ts.router = srv.Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (ts *testServer) createProject(t *testing.T, name string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/projects", map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[projectSummary](t, rec).ID
}

// waitJob polls the job endpoint until the job leaves the running state.
func (ts *testServer) waitJob(t *testing.T, jobID string) pipeline.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		rec := ts.do(t, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get job: status %d", rec.Code)
		}
		e := decode[pipeline.Event](t, rec)
		if e.Status != pipeline.JobRunning {
			return e
		}
		select {
		case <-deadline:
			t.Fatalf("job %s still running", jobID)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestProjectCRUD(t *testing.T) {
	ts := newTestServer(t)

	id := ts.createProject(t, "hamlet act 3")

	rec := ts.do(t, http.MethodGet, "/api/v1/projects", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	list := decode[[]projectSummary](t, rec)
	if len(list) != 1 || list[0].Name != "hamlet act 3" {
		t.Fatalf("list = %+v, want the created project", list)
	}

	if rec := ts.do(t, http.MethodPatch, "/api/v1/projects/"+id, map[string]string{"name": "hamlet act 4"}); rec.Code != http.StatusNoContent {
		t.Fatalf("rename: status %d", rec.Code)
	}
	detail := decode[projectDetail](t, ts.do(t, http.MethodGet, "/api/v1/projects/"+id, nil))
	if detail.Name != "hamlet act 4" {
		t.Errorf("name after rename = %q", detail.Name)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/v1/projects/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/projects/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestCreateProject_RequiresName(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodPost, "/api/v1/projects", map[string]string{"name": "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitScript_RunsToCompletion(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProject(t, "scene")

	rec := ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/script", map[string]string{"text": sampleScript})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit: status %d, body %s", rec.Code, rec.Body.String())
	}
	accepted := decode[jobAccepted](t, rec)
	if accepted.JobID == "" || accepted.ProjectID != id {
		t.Fatalf("accepted = %+v", accepted)
	}

	final := ts.waitJob(t, accepted.JobID)
	if final.Status != pipeline.JobDone {
		t.Fatalf("job finished %q (error %q), want done", final.Status, final.Error)
	}

	detail := decode[projectDetail](t, ts.do(t, http.MethodGet, "/api/v1/projects/"+id, nil))
	if len(detail.Lines) != 2 {
		t.Errorf("got %d lines, want 2", len(detail.Lines))
	}
	if !detail.HasAudio || detail.AudioURL == "" {
		t.Error("audio missing after successful run")
	}
	if !detail.HasAlignment {
		t.Error("alignment missing after successful run")
	}
	if len(detail.Characters) != 2 {
		t.Errorf("got %d characters, want 2", len(detail.Characters))
	}

	// The audio artifact is served back under its public URL.
	audio := ts.do(t, http.MethodGet, detail.AudioURL, nil)
	if audio.Code != http.StatusOK {
		t.Fatalf("get audio: status %d", audio.Code)
	}
	if got := audio.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("audio content type = %q", got)
	}
	if audio.Body.String() != "mp3-bytes" {
		t.Errorf("audio body = %q", audio.Body.String())
	}
}

func TestSubmitScript_MissingProject(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/projects/nope/script", map[string]string{"text": sampleScript})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestUploadDocument_OversizeRejected(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProject(t, "big")

	body, ctype := multipartBody(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+id+"/document", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "too large") {
		t.Errorf("body = %s, want the size-ceiling message", rec.Body.String())
	}
	if len(ts.extract.Calls()) != 0 {
		t.Error("extraction service called for a rejected upload")
	}
}

func TestUploadDocument_UnsupportedType(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProject(t, "png")

	body, ctype := multipartBody(t, "scan.png", "image/png", []byte("not a script"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+id+"/document", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415 (body %s)", rec.Code, rec.Body.String())
	}
	if len(ts.extract.Calls()) != 0 {
		t.Error("extraction service called for an unsupported type")
	}
}

func TestRetrySynthesis_ConflictWithoutLines(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProject(t, "empty")

	rec := ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/synthesis", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRetryAlignment_ConflictWithoutAudio(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProject(t, "no audio")

	ts.tts.Err = fmt.Errorf("tts down")
	accepted := decode[jobAccepted](t, ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/script", map[string]string{"text": sampleScript}))
	ts.waitJob(t, accepted.JobID)

	rec := ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/alignment", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestSetCounterReader(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProject(t, "flags")

	accepted := decode[jobAccepted](t, ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/script", map[string]string{"text": sampleScript}))
	if final := ts.waitJob(t, accepted.JobID); final.Status != pipeline.JobDone {
		t.Fatalf("job finished %q", final.Status)
	}

	rec := ts.do(t, http.MethodPut, "/api/v1/projects/"+id+"/characters/SARAH/counter-reader", map[string]bool{"counterReader": true})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set counter-reader: status %d", rec.Code)
	}

	chars := decode[[]characterView](t, ts.do(t, http.MethodGet, "/api/v1/projects/"+id+"/characters", nil))
	found := false
	for _, c := range chars {
		if c.Name == "SARAH" && c.CounterReader {
			found = true
		}
	}
	if !found {
		t.Errorf("characters = %+v, want SARAH flagged", chars)
	}
}

func TestSetOwnCharacter(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProject(t, "own")

	accepted := decode[jobAccepted](t, ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/script", map[string]string{"text": sampleScript}))
	ts.waitJob(t, accepted.JobID)

	if rec := ts.do(t, http.MethodPut, "/api/v1/projects/"+id+"/own-character", map[string]string{"character": "JOHN"}); rec.Code != http.StatusNoContent {
		t.Fatalf("set own character: status %d", rec.Code)
	}
	detail := decode[projectDetail](t, ts.do(t, http.MethodGet, "/api/v1/projects/"+id, nil))
	if detail.OwnCharacter != "JOHN" {
		t.Errorf("own character = %q, want JOHN", detail.OwnCharacter)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodGet, "/api/v1/jobs/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetAudio_NotFound(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodGet, "/audio/project-x-1.mp3", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
