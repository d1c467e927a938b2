package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kumanday/OmniLearn/pkg/httpclient"
)

// maxResponseBytes bounds how much of a provider reply is decoded.
const maxResponseBytes = 8 << 20

var errEmptyReply = errors.New("reply contained no text")

// postJSON sends body to url and decodes a 2xx reply into out. Every failure
// is returned as *UpstreamError.
func postJSON(ctx context.Context, client *httpclient.CircuitBreakerClient, provider, url string, header http.Header, body, out any) error {
	start := time.Now()
	err := doPostJSON(ctx, client, provider, url, header, body, out)
	observe(provider, start, err)
	return err
}

func doPostJSON(ctx context.Context, client *httpclient.CircuitBreakerClient, provider, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &UpstreamError{Provider: provider, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &UpstreamError{Provider: provider, Err: fmt.Errorf("build request: %w", err)}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(ctx, req)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return &UpstreamError{Provider: provider, StatusCode: statusErr.StatusCode}
		}
		return &UpstreamError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &UpstreamError{Provider: provider, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return &UpstreamError{Provider: provider, StatusCode: resp.StatusCode, Err: errors.New("undecodable response envelope")}
	}
	return nil
}
