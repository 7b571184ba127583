package origin

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
	testBucket    = "media"
)

// setupTestMinio starts a MinIO container with one bucket.
func setupTestMinio(t *testing.T) *minio.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping MinIO container test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     testAccessKey,
			"MINIO_ROOT_PASSWORD": testSecretKey,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("MinIO container not available: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("Failed to get container endpoint: %v", err)
	}

	client, err := NewMinioClient(BucketConfig{
		Endpoint:  endpoint,
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewMinioClient() error: %v", err)
	}

	if err := client.MakeBucket(ctx, testBucket, minio.MakeBucketOptions{}); err != nil {
		t.Fatalf("MakeBucket() error: %v", err)
	}
	return client
}

func TestBucket_RoundTrip(t *testing.T) {
	client := setupTestMinio(t)
	ctx := context.Background()

	content := "0123456789abcdefghij"
	_, err := client.PutObject(ctx, testBucket, "videos/demo.mp4", strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "video/mp4"})
	if err != nil {
		t.Fatalf("PutObject() error: %v", err)
	}

	b := NewBucket(client, testBucket, zerolog.Nop())

	tests := []struct {
		name        string
		method      string
		path        string
		rangeHeader string
		wantStatus  int
		wantBody    string
		wantRange   string
	}{
		{"full object", http.MethodGet, "/videos/demo.mp4", "", http.StatusOK, content, ""},
		{"range", http.MethodGet, "/videos/demo.mp4", "bytes=0-4", http.StatusPartialContent, "01234", "bytes 0-4/20"},
		{"suffix range", http.MethodGet, "/videos/demo.mp4", "bytes=-3", http.StatusPartialContent, "hij", "bytes 17-19/20"},
		{"unsatisfiable", http.MethodGet, "/videos/demo.mp4", "bytes=50-", http.StatusRequestedRangeNotSatisfiable, "", "bytes */20"},
		{"head", http.MethodHead, "/videos/demo.mp4", "", http.StatusOK, "", ""},
		{"missing", http.MethodGet, "/videos/nope.mp4", "", http.StatusNotFound, "", ""},
		{"post", http.MethodPost, "/videos/demo.mp4", "", http.StatusMethodNotAllowed, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, "http://media.local"+tt.path, nil)
			if tt.rangeHeader != "" {
				req.Header.Set("Range", tt.rangeHeader)
			}

			resp, err := b.RoundTrip(req)
			if err != nil {
				t.Fatalf("RoundTrip() error: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if got := resp.Header.Get("Content-Range"); got != tt.wantRange {
				t.Errorf("Content-Range = %q, want %q", got, tt.wantRange)
			}
		})
	}
}

func TestBucket_UnreachableIsTransportError(t *testing.T) {
	client, err := NewMinioClient(BucketConfig{
		Endpoint:  "127.0.0.1:1",
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewMinioClient() error: %v", err)
	}
	b := NewBucket(client, testBucket, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://media.local/videos/demo.mp4", nil)

	resp, err := b.RoundTrip(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected transport error for unreachable endpoint")
	}
}
