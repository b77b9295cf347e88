package wire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/nghyane/gemini-wire/internal/json"
	log "github.com/nghyane/gemini-wire/internal/logging"
)

// Resumable upload protocol headers. The session URL comes back on the
// start response; chunk PUTs carry the command and byte offset.
const (
	uploadProtocolHeader      = "X-Goog-Upload-Protocol"
	uploadCommandHeader       = "X-Goog-Upload-Command"
	uploadURLHeader           = "X-Goog-Upload-URL"
	uploadOffsetHeader        = "X-Goog-Upload-Offset"
	uploadContentLengthHeader = "X-Goog-Upload-Header-Content-Length"
	uploadContentTypeHeader   = "X-Goog-Upload-Header-Content-Type"

	uploadCommandStart    = "start"
	uploadCommandUpload   = "upload"
	uploadCommandFinalize = "upload, finalize"
)

// UploadSession is the ephemeral state of one resumable upload: the session
// URL handed out by the start call plus the running byte offset. It belongs
// to exactly one upload invocation and is discarded after finalize or the
// first failure; it is never pooled or shared.
type UploadSession struct {
	// ID correlates the session's log records.
	ID string
	// URL is the chunk destination returned by the start call.
	URL string
	// Offset is the number of bytes acknowledged so far.
	Offset int64
	// MimeType is the declared media type carried on every chunk PUT.
	MimeType string
}

// StartUpload opens a resumable upload session: it POSTs the metadata with
// the declared size and MIME type and returns the session URL conveyed in
// the response header. A 2xx response without that header is itself a
// protocol violation and classifies as an invalid request.
func StartUpload(ctx context.Context, c *Client, path string, metadata any, size int64, mimeType string) (*UploadSession, *Error) {
	body, cerr := Encode(metadata)
	if cerr != nil {
		return nil, cerr
	}

	ctx, cancel := c.unaryContext(ctx)
	defer cancel()

	req, cerr := c.newRequest(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if cerr != nil {
		return nil, cerr
	}
	req.Header.Set(uploadProtocolHeader, "resumable")
	req.Header.Set(uploadCommandHeader, uploadCommandStart)
	req.Header.Set(uploadContentLengthHeader, strconv.FormatInt(size, 10))
	req.Header.Set(uploadContentTypeHeader, mimeType)

	resp, cerr := c.do(req)
	if cerr != nil {
		return nil, cerr
	}
	defer func() { _ = resp.Body.Close() }()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, ClassifyTransport(readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Classify(resp.StatusCode, string(data))
	}

	sessionURL := resp.Header.Get(uploadURLHeader)
	if sessionURL == "" {
		return nil, NewError(KindInvalidRequest,
			fmt.Sprintf("upload start response missing %s header", uploadURLHeader), nil)
	}

	session := &UploadSession{
		ID:       uuid.NewString(),
		URL:      sessionURL,
		MimeType: mimeType,
	}
	log.WithField("session", session.ID).Debugf("upload session started, declared size %d", size)
	return session, nil
}

// UploadChunk PUTs one chunk of bytes to the session URL. Intermediate
// chunks acknowledge with no usable body and return nil; the final chunk's
// response wraps the created resource under resourceKey, which is unwrapped
// and returned raw for the caller to decode. Failure at any chunk is
// terminal: the driver never retries and the session is considered
// abandoned (the upstream protocol has no cancel call to issue).
func UploadChunk(ctx context.Context, c *Client, session *UploadSession, chunk []byte, final bool, resourceKey string) (json.RawMessage, *Error) {
	// Each chunk PUT is its own bounded exchange; the timeout never spans
	// the whole upload.
	ctx, cancel := c.unaryContext(ctx)
	defer cancel()

	req, cerr := c.newRequest(ctx, http.MethodPut, session.URL, bytes.NewReader(chunk))
	if cerr != nil {
		return nil, cerr
	}
	// Chunk PUTs carry the file's media type, not application/json.
	req.Header.Set("Content-Type", session.MimeType)
	req.Header.Set(uploadOffsetHeader, strconv.FormatInt(session.Offset, 10))
	if final {
		req.Header.Set(uploadCommandHeader, uploadCommandFinalize)
	} else {
		req.Header.Set(uploadCommandHeader, uploadCommandUpload)
	}

	resp, cerr := c.do(req)
	if cerr != nil {
		return nil, cerr
	}
	defer func() { _ = resp.Body.Close() }()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, ClassifyTransport(readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Classify(resp.StatusCode, string(data))
	}

	session.Offset += int64(len(chunk))

	if !final {
		// Intermediate acknowledgements carry no resource; do not decode one.
		return nil, nil
	}

	resource := gjson.GetBytes(data, resourceKey)
	if !resource.Exists() {
		return nil, NewError(KindConnectionError,
			fmt.Sprintf("finalize response missing %q key", resourceKey), nil)
	}
	log.WithField("session", session.ID).Debugf("upload finalized at offset %d", session.Offset)
	return json.RawMessage(resource.Raw), nil
}

// Upload drives a whole resumable upload: start, sequential chunk PUTs of
// chunkSize bytes, finalize on the last, and decode of the unwrapped
// resource into T. State never outlives the invocation.
func Upload[T any](ctx context.Context, c *Client, path string, metadata any, content []byte, mimeType string, chunkSize int, resourceKey string) (T, *Error) {
	var zero T
	if chunkSize <= 0 {
		return zero, NewError(KindInvalidRequest, "chunk size must be positive", nil)
	}

	session, cerr := StartUpload(ctx, c, path, metadata, int64(len(content)), mimeType)
	if cerr != nil {
		return zero, cerr
	}

	for {
		end := int(session.Offset) + chunkSize
		final := end >= len(content)
		if final {
			end = len(content)
		}
		raw, cerr := UploadChunk(ctx, c, session, content[session.Offset:end], final, resourceKey)
		if cerr != nil {
			return zero, cerr
		}
		if final {
			return Decode[T](raw)
		}
	}
}
