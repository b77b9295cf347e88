package wire

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type uploadedFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
}

// uploadServer records every chunk PUT so tests can assert on the exact
// protocol sequence.
type uploadServer struct {
	mu     sync.Mutex
	chunks []chunkRecord
	ts     *httptest.Server

	startStatus  int
	omitURL      bool
	failAtChunk  int // 1-based; 0 disables
	finalizeBody string
}

type chunkRecord struct {
	command string
	offset  string
	ctype   string
	size    int
}

func newUploadServer(t *testing.T) *uploadServer {
	t.Helper()
	us := &uploadServer{
		startStatus:  http.StatusOK,
		finalizeBody: `{"file":{"name":"files/abc","uri":"https://example/files/abc","mimeType":"text/plain"}}`,
	}
	us.ts = httptest.NewServer(http.HandlerFunc(us.handle))
	t.Cleanup(us.ts.Close)
	return us
}

func (us *uploadServer) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if us.startStatus != http.StatusOK {
			w.WriteHeader(us.startStatus)
			w.Write([]byte(`{"error":{"message":"start rejected"}}`))
			return
		}
		if !us.omitURL {
			w.Header().Set("X-Goog-Upload-URL", us.ts.URL+"/session")
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		us.mu.Lock()
		us.chunks = append(us.chunks, chunkRecord{
			command: r.Header.Get("X-Goog-Upload-Command"),
			offset:  r.Header.Get("X-Goog-Upload-Offset"),
			ctype:   r.Header.Get("Content-Type"),
			size:    len(body),
		})
		n := len(us.chunks)
		us.mu.Unlock()
		if us.failAtChunk > 0 && n == us.failAtChunk {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"backend unavailable"}}`))
			return
		}
		if strings.Contains(r.Header.Get("X-Goog-Upload-Command"), "finalize") {
			w.Write([]byte(us.finalizeBody))
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (us *uploadServer) recorded() []chunkRecord {
	us.mu.Lock()
	defer us.mu.Unlock()
	out := make([]chunkRecord, len(us.chunks))
	copy(out, us.chunks)
	return out
}

func (us *uploadServer) client() *Client {
	return NewClient(WithBaseURL(us.ts.URL), WithAPIKey("test-key"))
}

func TestUpload_MultiChunk(t *testing.T) {
	us := newUploadServer(t)

	content := []byte(strings.Repeat("a", 10) + strings.Repeat("b", 10) + strings.Repeat("c", 5))
	file, cerr := Upload[uploadedFile](context.Background(), us.client(), "/upload/v1beta/files",
		map[string]any{"file": map[string]string{"display_name": "notes"}}, content, "text/plain", 10, "file")
	if cerr != nil {
		t.Fatalf("Upload failed: %v", cerr)
	}
	if file.Name != "files/abc" || file.URI == "" {
		t.Errorf("decoded file = %+v", file)
	}

	chunks := us.recorded()
	if len(chunks) != 3 {
		t.Fatalf("got %d chunk PUTs, want 3", len(chunks))
	}
	wantOffsets := []string{"0", "10", "20"}
	wantSizes := []int{10, 10, 5}
	for i, c := range chunks {
		if c.offset != wantOffsets[i] {
			t.Errorf("chunk %d offset = %q, want %q", i, c.offset, wantOffsets[i])
		}
		if c.size != wantSizes[i] {
			t.Errorf("chunk %d size = %d, want %d", i, c.size, wantSizes[i])
		}
		if c.ctype != "text/plain" {
			t.Errorf("chunk %d content type = %q", i, c.ctype)
		}
	}
	if chunks[0].command != "upload" || chunks[1].command != "upload" {
		t.Errorf("intermediate commands = %q, %q, want upload", chunks[0].command, chunks[1].command)
	}
	if chunks[2].command != "upload, finalize" {
		t.Errorf("final command = %q, want %q", chunks[2].command, "upload, finalize")
	}
}

func TestUpload_SingleChunkWhenContentFits(t *testing.T) {
	us := newUploadServer(t)

	_, cerr := Upload[uploadedFile](context.Background(), us.client(), "/upload/v1beta/files",
		map[string]any{}, []byte("small"), "text/plain", 1024, "file")
	if cerr != nil {
		t.Fatalf("Upload failed: %v", cerr)
	}
	chunks := us.recorded()
	if len(chunks) != 1 {
		t.Fatalf("got %d chunk PUTs, want 1", len(chunks))
	}
	if chunks[0].command != "upload, finalize" {
		t.Errorf("command = %q, want finalize on the only chunk", chunks[0].command)
	}
}

func TestUpload_EmptyContentFinalizesOnce(t *testing.T) {
	us := newUploadServer(t)

	_, cerr := Upload[uploadedFile](context.Background(), us.client(), "/upload/v1beta/files",
		map[string]any{}, nil, "text/plain", 1024, "file")
	if cerr != nil {
		t.Fatalf("Upload failed: %v", cerr)
	}
	chunks := us.recorded()
	if len(chunks) != 1 || chunks[0].size != 0 {
		t.Fatalf("empty content should issue one empty finalize PUT, got %+v", chunks)
	}
}

func TestStartUpload_MissingSessionURL(t *testing.T) {
	us := newUploadServer(t)
	us.omitURL = true

	_, cerr := Upload[uploadedFile](context.Background(), us.client(), "/upload/v1beta/files",
		map[string]any{}, []byte("data"), "text/plain", 1024, "file")
	if cerr == nil {
		t.Fatal("expected error for missing session URL")
	}
	if cerr.Kind() != KindInvalidRequest {
		t.Errorf("Kind = %v, want %v", cerr.Kind(), KindInvalidRequest)
	}
	if len(us.recorded()) != 0 {
		t.Error("no chunk PUT should follow a failed start")
	}
}

func TestStartUpload_ErrorStatusClassified(t *testing.T) {
	us := newUploadServer(t)
	us.startStatus = http.StatusForbidden

	_, cerr := Upload[uploadedFile](context.Background(), us.client(), "/upload/v1beta/files",
		map[string]any{}, []byte("data"), "text/plain", 1024, "file")
	if cerr == nil || cerr.Kind() != KindInvalidAPIKey {
		t.Fatalf("expected invalid api key, got %v", cerr)
	}
	if len(us.recorded()) != 0 {
		t.Error("no chunk PUT should follow a rejected start")
	}
}

func TestUpload_ChunkFailureIsTerminal(t *testing.T) {
	us := newUploadServer(t)
	us.failAtChunk = 2

	_, cerr := Upload[uploadedFile](context.Background(), us.client(), "/upload/v1beta/files",
		map[string]any{}, []byte(strings.Repeat("x", 30)), "text/plain", 10, "file")
	if cerr == nil {
		t.Fatal("expected chunk failure")
	}
	if cerr.Kind() != KindModelOverloaded {
		t.Errorf("Kind = %v, want %v", cerr.Kind(), KindModelOverloaded)
	}
	// No retry: exactly two PUTs, the failed one included.
	if got := len(us.recorded()); got != 2 {
		t.Errorf("got %d chunk PUTs, want 2 (no retries)", got)
	}
}

func TestUpload_FinalizeMissingResourceKey(t *testing.T) {
	us := newUploadServer(t)
	us.finalizeBody = `{"unexpected":true}`

	_, cerr := Upload[uploadedFile](context.Background(), us.client(), "/upload/v1beta/files",
		map[string]any{}, []byte("data"), "text/plain", 1024, "file")
	if cerr == nil || cerr.Kind() != KindConnectionError {
		t.Fatalf("expected connection error for missing resource key, got %v", cerr)
	}
}

func TestUpload_InvalidChunkSize(t *testing.T) {
	us := newUploadServer(t)

	for _, size := range []int{0, -1} {
		_, cerr := Upload[uploadedFile](context.Background(), us.client(), "/upload/v1beta/files",
			map[string]any{}, []byte("data"), "text/plain", size, "file")
		if cerr == nil || cerr.Kind() != KindInvalidRequest {
			t.Errorf("chunk size %d: expected invalid request, got %v", size, cerr)
		}
	}
	if len(us.recorded()) != 0 {
		t.Error("invalid chunk size must not reach the network")
	}
}

func TestStartUpload_DeclaredSizeHeader(t *testing.T) {
	var gotSize, gotType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSize = r.Header.Get("X-Goog-Upload-Header-Content-Length")
		gotType = r.Header.Get("X-Goog-Upload-Header-Content-Type")
		w.Header().Set("X-Goog-Upload-URL", "http://"+r.Host+"/session")
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL), WithAPIKey("test-key"))
	session, cerr := StartUpload(context.Background(), c, "/upload/v1beta/files",
		map[string]any{}, 12345, "image/png")
	if cerr != nil {
		t.Fatalf("StartUpload failed: %v", cerr)
	}
	if gotSize != strconv.Itoa(12345) {
		t.Errorf("declared size header = %q, want 12345", gotSize)
	}
	if gotType != "image/png" {
		t.Errorf("declared type header = %q, want image/png", gotType)
	}
	if session.URL == "" || session.Offset != 0 {
		t.Errorf("session = %+v", session)
	}
}
