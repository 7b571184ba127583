package origin

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// BucketConfig holds the connection settings of a media bucket.
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// NewMinioClient creates a MinIO client. It does not contact the endpoint.
func NewMinioClient(cfg BucketConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// Bucket serves GET and HEAD requests from objects in a bucket, keyed by the
// request path without its leading slash. Single byte ranges are answered
// with 206. An unreachable endpoint surfaces as a transport error.
type Bucket struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
	now    func() time.Time
}

// NewBucket creates a bucket transport.
func NewBucket(client *minio.Client, bucket string, logger zerolog.Logger) *Bucket {
	return &Bucket{
		client: client,
		bucket: bucket,
		logger: logger,
		now:    time.Now,
	}
}

// RoundTrip implements http.RoundTripper.
func (b *Bucket) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return b.response(req, http.StatusMethodNotAllowed, nil, http.NoBody), nil
	}

	ctx := req.Context()
	key := strings.TrimPrefix(req.URL.Path, "/")

	info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			b.logger.Debug().Str("bucket", b.bucket).Str("key", key).Msg("Object not found")
			return b.response(req, http.StatusNotFound, nil, http.NoBody), nil
		}
		return nil, fmt.Errorf("stat %s/%s: %w", b.bucket, key, err)
	}

	header := make(http.Header)
	header.Set("Content-Type", info.ContentType)
	header.Set("Accept-Ranges", "bytes")
	header.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	if info.ETag != "" {
		header.Set("ETag", `"`+strings.Trim(info.ETag, `"`)+`"`)
	}

	status := http.StatusOK
	start, length := int64(0), info.Size
	opts := minio.GetObjectOptions{}

	if rh := req.Header.Get("Range"); rh != "" && info.Size > 0 {
		r, ok, err := parseRange(rh, info.Size)
		switch {
		case err != nil:
			header.Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
			return b.response(req, http.StatusRequestedRangeNotSatisfiable, header, http.NoBody), nil
		case ok:
			status = http.StatusPartialContent
			start, length = r.start, r.length
			if err := opts.SetRange(r.start, r.start+r.length-1); err != nil {
				return nil, fmt.Errorf("set range: %w", err)
			}
			header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.start, r.start+r.length-1, info.Size))
		}
	}
	header.Set("Content-Length", strconv.FormatInt(length, 10))

	if req.Method == http.MethodHead || length == 0 {
		resp := b.response(req, status, header, http.NoBody)
		resp.ContentLength = length
		return resp, nil
	}

	obj, err := b.client.GetObject(ctx, b.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", b.bucket, key, err)
	}

	b.logger.Debug().
		Str("bucket", b.bucket).
		Str("key", key).
		Int("status_code", status).
		Int64("offset", start).
		Int64("length", length).
		Msg("Serving object")

	resp := b.response(req, status, header, obj)
	resp.ContentLength = length
	return resp, nil
}

func (b *Bucket) response(req *http.Request, status int, header http.Header, body io.ReadCloser) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Date", b.now().UTC().Format(http.TimeFormat))
	if body == http.NoBody && header.Get("Content-Length") == "" {
		body = io.NopCloser(bytes.NewReader(nil))
		header.Set("Content-Length", "0")
	}
	return &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     header,
		Body:       body,
		Request:    req,
	}
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
