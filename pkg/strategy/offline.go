package strategy

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// DefaultOfflinePage is served to navigations that fail while offline with
// nothing cached.
const DefaultOfflinePage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Offline</title></head>
<body>
<h1>You are offline</h1>
<p>Please check your internet connection and try again.</p>
</body>
</html>
`

// OfflineResponse builds the synthetic offline document.
func OfflineResponse(req *http.Request, page []byte) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Length", strconv.Itoa(len(page)))

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(page)),
		ContentLength: int64(len(page)),
		Request:       req,
	}
}
