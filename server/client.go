package server

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// Client calls a remote CompilerService.
type Client struct {
	compile *connect.Client[CompileRequest, CompileResponse]
	run     *connect.Client[RunRequest, RunResponse]
}

// NewClient creates a client for the service at baseURL, for example
// "http://127.0.0.1:8421".
func NewClient(httpClient connect.HTTPClient, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	codec := connect.WithCodec(jsonCodec{})
	return &Client{
		compile: connect.NewClient[CompileRequest, CompileResponse](httpClient, baseURL+CompileProcedure, codec),
		run:     connect.NewClient[RunRequest, RunResponse](httpClient, baseURL+RunProcedure, codec),
	}
}

// Compile compiles a JSON syntax tree.
func (c *Client) Compile(ctx context.Context, tree []byte) (*CompileResponse, error) {
	resp, err := c.compile.CallUnary(ctx, connect.NewRequest(&CompileRequest{Tree: tree}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Run executes a JSON syntax tree, or an encoded program when tree is nil.
func (c *Client) Run(ctx context.Context, tree, program []byte) (*RunResponse, error) {
	resp, err := c.run.CallUnary(ctx, connect.NewRequest(&RunRequest{Tree: tree, Program: program}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
