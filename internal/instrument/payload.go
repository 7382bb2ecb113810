package instrument

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"unicode/utf8"

	"github.com/roach88/filibuster/internal/ir"
)

// payloadOf classifies a body as JSON, string or raw bytes. An empty body
// has no payload.
func payloadOf(contentType string, body []byte) *ir.Payload {
	if len(body) == 0 {
		return nil
	}
	var p ir.Payload
	mt, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mt == "application/json" && json.Valid(body):
		p = ir.JSONPayload(body)
	case utf8.Valid(body):
		p = ir.StringPayload(string(body))
	default:
		p = ir.BytesPayload(body)
	}
	return &p
}

// readRequestBody consumes and restores the request body.
func readRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	setRequestBody(req, body)
	return body, nil
}

func setRequestBody(req *http.Request, body []byte) {
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
}
