package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/strata/routes"
	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/util/httputil"
)

/*
Remote is the HTTP implementation of StreamClient. Requests carry JSON
bodies matching the server's route contracts, and error responses decode
through the server's error envelope so callers see the server's message.
*/

////////////////////////////////////////////////////////////////////////////////

// Remote is an HTTP StreamClient for a storage server.
type Remote struct {
	serverURL string
	httpc     *http.Client
}

// NewRemote constructs a Remote against the given server URL. The shared key
// is sent as a bearer token on every request, and is ignored by servers that
// do not require one.
func NewRemote(serverURL string, sharedKey string) *Remote {
	return &Remote{
		serverURL: serverURL,
		httpc:     NewHTTPClient(sharedKey),
	}
}

// Open returns a handle on the given stream, probing the server so a bad URL
// or key fails at open time rather than on first use.
func (c *Remote) Open(ctx context.Context, streamID uint64) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to probe server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return &remoteStream{client: c, streamID: streamID}, nil
}

// Close releases idle connections.
func (c *Remote) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}

func (c *Remote) post(ctx context.Context, path string, request any, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if response == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// responseError converts a failed response into an error, preferring the
// server's error envelope when one is present.
func responseError(resp *http.Response) error {
	response := httputil.ErrorResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil || response.Error == "" {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return errors.New(response.Error)
}

////////////////////////////////////////////////////////////////////////////////

type remoteStream struct {
	client   *Remote
	streamID uint64
}

func (s *remoteStream) ID() uint64 {
	return s.streamID
}

func (s *remoteStream) Append(ctx context.Context, record stream.RecordBatch) (uint64, error) {
	request := routes.AppendRequest{
		StreamID:   s.streamID,
		BaseOffset: record.BaseOffset,
		Count:      record.Count,
		Payload:    record.Payload,
	}
	response := routes.AppendResponse{}
	if err := s.client.post(ctx, "/append", request, &response); err != nil {
		return 0, fmt.Errorf("failed to append: %w", err)
	}
	return response.Offset, nil
}

func (s *remoteStream) Fetch(ctx context.Context, start, end uint64, maxBytes int) (FetchResult, error) {
	request := routes.FetchRequest{
		StreamID: s.streamID,
		Start:    start,
		End:      end,
		MaxBytes: maxBytes,
	}
	response := routes.FetchResponse{}
	if err := s.client.post(ctx, "/fetch", request, &response); err != nil {
		return FetchResult{}, fmt.Errorf("failed to fetch: %w", err)
	}
	result := FetchResult{
		Records:    make([]stream.RecordBatch, 0, len(response.Records)),
		NextOffset: response.NextOffset,
		SizeBytes:  response.SizeBytes,
	}
	for _, record := range response.Records {
		result.Records = append(result.Records, stream.RecordBatch{
			StreamID:   record.StreamID,
			BaseOffset: record.BaseOffset,
			Count:      record.Count,
			Payload:    record.Payload,
		})
	}
	return result, nil
}

func (s *remoteStream) Flush(ctx context.Context) error {
	request := routes.FlushRequest{StreamID: s.streamID}
	if err := s.client.post(ctx, "/flush", request, nil); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

func (s *remoteStream) Close(_ context.Context) error {
	return nil
}

////////////////////////////////////////////////////////////////////////////////

type transport struct {
	key string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.key != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.key))
	}
	return http.DefaultTransport.RoundTrip(req)
}

// NewHTTPClient returns an HTTP client that authenticates every request with
// the shared key.
func NewHTTPClient(sharedKey string) *http.Client {
	return &http.Client{Transport: &transport{key: sharedKey}}
}
