package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	// HeaderCache marks responses served from a store.
	HeaderCache = "X-Cache"

	// CacheHit is the HeaderCache value of stored responses.
	CacheHit = "HIT"
)

// IsComplete reports whether resp carries a full body (status 200).
func IsComplete(resp *http.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusOK
}

// IsCacheable reports whether resp is a successful, non-partial response.
func IsCacheable(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300 &&
		resp.StatusCode != http.StatusPartialContent
}

// IsCached reports whether resp was served from a store.
func IsCached(resp *http.Response) bool {
	return resp != nil && resp.Header.Get(HeaderCache) == CacheHit
}

// ResponseToEntry converts an HTTP response to an Entry stored at now.
// The response body is restored after reading.
func ResponseToEntry(resp *http.Response, now time.Time) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body.Close()
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Entry{
		Body:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		StoredAt:   now,
	}, nil
}

// EntryToResponse builds a fresh response for a stored entry. Every call
// gets its own body reader.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	header := entry.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(HeaderCache, CacheHit)
	header.Set("Content-Length", strconv.Itoa(len(entry.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}

// StoreOnComplete wraps the body of resp so that the response is written to
// store once the caller has read the body to EOF. Bodies closed before EOF
// or failing mid-stream are never persisted. The caller keeps receiving the
// live response.
func StoreOnComplete(ctx context.Context, resp *http.Response, store Store, key Key, now func() time.Time, logger zerolog.Logger) *http.Response {
	if resp.Body == nil || resp.Body == http.NoBody {
		entry := &Entry{StatusCode: resp.StatusCode, Headers: resp.Header.Clone(), StoredAt: now()}
		if err := store.Put(ctx, key, entry); err != nil {
			logPutError(logger, err, key, store)
		}
		return resp
	}

	resp.Body = &storingBody{
		ctx:    ctx,
		rc:     resp.Body,
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		store:  store,
		key:    key,
		now:    now,
		logger: logger,
	}
	return resp
}

type storingBody struct {
	ctx    context.Context
	rc     io.ReadCloser
	buf    bytes.Buffer
	status int
	header http.Header
	store  Store
	key    Key
	now    func() time.Time
	logger zerolog.Logger
	done   bool
}

func (b *storingBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 && !b.done {
		b.buf.Write(p[:n])
	}
	if err == io.EOF && !b.done {
		b.done = true
		b.commit()
	}
	return n, err
}

func (b *storingBody) Close() error {
	b.done = true
	return b.rc.Close()
}

func (b *storingBody) commit() {
	entry := &Entry{
		Body:       b.buf.Bytes(),
		StatusCode: b.status,
		Headers:    b.header,
		StoredAt:   b.now(),
	}
	if err := b.store.Put(b.ctx, b.key, entry); err != nil {
		logPutError(b.logger, err, b.key, b.store)
		return
	}
	b.logger.Debug().
		Str("url", b.key.URL).
		Str("store", b.store.Name()).
		Int("bytes", len(entry.Body)).
		Msg("Cached response")
}

// logPutError reports a failed write. Writes into a store deleted while the
// body was streaming are expected during version migration and cache clears.
func logPutError(logger zerolog.Logger, err error, key Key, store Store) {
	if errors.Is(err, ErrStoreDeleted) {
		logger.Debug().Str("url", key.URL).Str("store", store.Name()).Msg("Store deleted, response not cached")
		return
	}
	logger.Warn().Err(err).Str("url", key.URL).Str("store", store.Name()).Msg("Failed to cache response")
}
