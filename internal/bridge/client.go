package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// RPCError is a failure reported by (or on the way to) the application
// boundary. The scene analyzer degrades to an empty context on it; nothing
// in the router retries.
type RPCError struct {
	Command Command
	Msg     string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Command, e.Msg)
}

// Client is the request/response surface of the application boundary. The
// router only issues read-only queries through it; mutating tool calls are
// executed by the outer dispatch layer, not by this package.
type Client interface {
	Send(ctx context.Context, cmd Command, params map[string]any) (map[string]any, error)
}

type request struct {
	ID      string         `json:"id"`
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

type response struct {
	ID     string         `json:"id"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// StdioClient speaks newline-delimited JSON over a reader/writer pair,
// typically the stdio of the application-side bridge process. Calls are
// serialized: one request in flight at a time.
type StdioClient struct {
	mu  sync.Mutex
	enc *json.Encoder
	sc  *bufio.Scanner
}

// NewStdioClient wraps r/w in a client. The writer receives one JSON
// object per line; the reader is expected to answer in order.
func NewStdioClient(r io.Reader, w io.Writer) *StdioClient {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &StdioClient{enc: json.NewEncoder(w), sc: sc}
}

func (c *StdioClient) Send(ctx context.Context, cmd Command, params map[string]any) (map[string]any, error) {
	if !cmd.Valid() {
		return nil, &RPCError{Command: cmd, Msg: "unknown command"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &RPCError{Command: cmd, Msg: err.Error()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	if err := c.enc.Encode(request{ID: id, Command: string(cmd), Params: params}); err != nil {
		return nil, &RPCError{Command: cmd, Msg: fmt.Sprintf("write: %v", err)}
	}
	for c.sc.Scan() {
		line := c.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, &RPCError{Command: cmd, Msg: fmt.Sprintf("bad response: %v", err)}
		}
		if resp.ID != id {
			// Stale response from an earlier timed-out call; skip it.
			continue
		}
		if resp.Error != "" {
			return nil, &RPCError{Command: cmd, Msg: resp.Error}
		}
		return resp.Result, nil
	}
	if err := c.sc.Err(); err != nil {
		return nil, &RPCError{Command: cmd, Msg: fmt.Sprintf("read: %v", err)}
	}
	return nil, &RPCError{Command: cmd, Msg: "connection closed"}
}
