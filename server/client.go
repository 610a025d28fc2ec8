package server

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the inspection procedures of a remote Server.
type Client struct {
	stats  *connect.Client[emptypb.Empty, structpb.Struct]
	pause  *connect.Client[emptypb.Empty, emptypb.Empty]
	resume *connect.Client[emptypb.Empty, emptypb.Empty]
	signal *connect.Client[wrapperspb.UInt32Value, emptypb.Empty]
}

// NewClient returns a client for the server at baseURL
// (e.g. "http://localhost:8080").
func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		stats:  connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+StatsProcedure),
		pause:  connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+PauseProcedure),
		resume: connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+ResumeProcedure),
		signal: connect.NewClient[wrapperspb.UInt32Value, emptypb.Empty](httpClient, baseURL+SignalProcedure),
	}
}

// Stats fetches the process stats as a field map.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	resp, err := c.stats.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}

// Pause pauses the remote process.
func (c *Client) Pause(ctx context.Context) error {
	_, err := c.pause.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

// Resume resumes the remote process.
func (c *Client) Resume(ctx context.Context) error {
	_, err := c.resume.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

// Signal delivers sig to the remote process.
func (c *Client) Signal(ctx context.Context, sig uint32) error {
	_, err := c.signal.CallUnary(ctx, connect.NewRequest(wrapperspb.UInt32(sig)))
	return err
}
