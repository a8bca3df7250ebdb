// Package body implements the request body parser: it reads an HTTP
// request body under a byte-size cap and a wall-clock timeout, then
// decodes it per Content-Type into the payload map the dispatcher merges
// into an RC (§4.3).
package body

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tejasframework/tejas/core/ferror"
	"github.com/tejasframework/tejas/core/pools"
)

// Part represents one section of a multipart/form-data body.
type Part struct {
	Name     string
	Filename string
	Headers  map[string]string
	Value    []byte
}

// Limits bounds how much of a request body the parser will accumulate
// and how long it will wait to do so. Zero values fall back to the
// framework defaults (10 MiB / 30s).
type Limits struct {
	MaxSize int64
	Timeout time.Duration
}

const (
	DefaultMaxSize = 10 * 1024 * 1024
	DefaultTimeout = 30 * time.Second
)

func (l Limits) normalized() Limits {
	if l.MaxSize <= 0 {
		l.MaxSize = DefaultMaxSize
	}
	if l.Timeout <= 0 {
		l.Timeout = DefaultTimeout
	}
	return l
}

// Parse reads and decodes r's body per its Content-Type, merging the
// result into a fresh map suitable for merging onto RC.Payload. It never
// consumes more than limits.MaxSize bytes and never blocks longer than
// limits.Timeout.
func Parse(r *http.Request, limits Limits) (map[string]any, error) {
	limits = limits.normalized()

	if r.Body == nil || r.ContentLength == 0 {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			return map[string]any{}, nil
		}
	}

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil, ferror.New(ferror.InvalidInput, "missing Content-Type")
	}

	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, ferror.New(ferror.InvalidInput, "malformed Content-Type")
	}

	switch {
	case mediaType == "application/json":
		raw, rerr := readBounded(r, limits)
		if rerr != nil {
			return nil, rerr
		}
		return decodeJSON(raw)

	case mediaType == "application/x-www-form-urlencoded":
		raw, rerr := readBounded(r, limits)
		if rerr != nil {
			return nil, rerr
		}
		return decodeForm(raw)

	case mediaType == "multipart/form-data":
		boundary, ok := params["boundary"]
		if !ok {
			return nil, ferror.New(ferror.InvalidInput, "missing multipart boundary")
		}
		raw, rerr := readBounded(r, limits)
		if rerr != nil {
			return nil, rerr
		}
		return decodeMultipart(raw, boundary)

	default:
		return nil, ferror.New(ferror.UnsupportedMediaType, "unsupported media type: "+mediaType)
	}
}

type readResult struct {
	data []byte
	err  error
}

// readChunkSize is how much of the body readBounded's accumulation loop
// pulls from the connection per Read call.
const readChunkSize = 32 * 1024

// estimateBodySize picks which of BufferPool's tiers readBounded should
// draw from. Content-Length is authoritative when the client sends one;
// otherwise this falls back to the small tier rather than always
// requesting a MaxSize-sized (typically 10MiB) buffer, which would
// force every request into the large tier regardless of actual size.
func estimateBodySize(r *http.Request, limits Limits) int {
	if r.ContentLength > 0 && r.ContentLength <= limits.MaxSize {
		return int(r.ContentLength)
	}
	return pools.SmallBufferSize
}

// readBounded enforces the byte-cap + time-cap discipline common to all
// three decodable content types, accumulating into a pooled buffer
// instead of letting io.ReadAll grow a fresh slice per request.
func readBounded(r *http.Request, limits Limits) ([]byte, error) {
	ctx, cancel := context.WithTimeout(r.Context(), limits.Timeout)
	defer cancel()

	bufPtr := pools.AcquireBuffer(estimateBodySize(r, limits))

	done := make(chan readResult, 1)
	go func() {
		buf := (*bufPtr)[:0]
		limited := io.LimitReader(r.Body, limits.MaxSize+1)
		chunk := make([]byte, readChunkSize)
		for {
			n, rerr := limited.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if rerr != nil {
				if rerr == io.EOF {
					done <- readResult{data: buf}
				} else {
					done <- readResult{err: rerr}
				}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		// The accumulation goroutine may still be writing into *bufPtr;
		// it must not be handed back to another request while that's
		// possible, so it's simply abandoned to the garbage collector.
		return nil, ferror.New(ferror.Timeout, "body read timed out")
	case res := <-done:
		defer pools.ReleaseBuffer(bufPtr)
		if res.err != nil {
			return nil, ferror.New(ferror.InvalidInput, "failed to read body")
		}
		if int64(len(res.data)) > limits.MaxSize {
			return nil, ferror.New(ferror.PayloadTooLarge, "request body too large")
		}
		out := make([]byte, len(res.data))
		copy(out, res.data)
		return out, nil
	}
}

func decodeJSON(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, ferror.New(ferror.InvalidInput, "invalid JSON body")
	}

	switch v := top.(type) {
	case map[string]any:
		return v, nil
	case []any:
		return map[string]any{"_items": v}, nil
	default:
		return nil, ferror.New(ferror.InvalidInput, "JSON body must be an object or array")
	}
}

func decodeForm(raw []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, ferror.New(ferror.InvalidInput, "invalid form body")
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out, nil
}

func decodeMultipart(raw []byte, boundary string) (map[string]any, error) {
	delimiter := "--" + boundary
	rawStr := string(raw)

	sections := strings.Split(rawStr, delimiter)
	out := make(map[string]any)

	for _, section := range sections {
		section = strings.TrimPrefix(section, "\r\n")
		section = strings.TrimSuffix(section, "\r\n")
		if section == "" || section == "--" {
			continue
		}

		idx := strings.Index(section, "\r\n\r\n")
		if idx < 0 {
			continue
		}
		rawHeaders := section[:idx]
		value := section[idx+4:]
		value = strings.TrimSuffix(value, "\r\n")

		headers := make(map[string]string)
		for _, line := range strings.Split(rawHeaders, "\r\n") {
			if line == "" {
				continue
			}
			hk, hv, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			headers[strings.TrimSpace(hk)] = strings.TrimSpace(hv)
		}

		disposition, ok := headers["Content-Disposition"]
		if !ok {
			return nil, ferror.New(ferror.InvalidInput, "multipart part missing Content-Disposition")
		}

		_, dparams, err := mime.ParseMediaType(disposition)
		if err != nil {
			return nil, ferror.New(ferror.InvalidInput, "malformed Content-Disposition")
		}

		name := dparams["name"]
		filename := dparams["filename"]

		part := Part{Name: name, Filename: filename, Headers: headers, Value: []byte(value)}
		if filename != "" {
			out[name] = part
		} else {
			out[name] = value
		}
	}

	return out, nil
}
