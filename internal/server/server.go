// Package server exposes the supervisor over newline-delimited JSON on a
// reader/writer pair, typically stdio. One request per line, one response
// per line, handled synchronously in arrival order.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/voxelhq/scenepilot/internal/logging"
	"github.com/voxelhq/scenepilot/internal/router"
	"github.com/voxelhq/scenepilot/internal/toolcall"
)

// Request is one inbound message.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is one outbound message. Exactly one of Result/Error is set.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Server drives the request loop over one supervisor.
type Server struct {
	sup *router.Supervisor
	in  *bufio.Scanner
	out *json.Encoder
	log *slog.Logger
}

// New builds a server reading requests from r and writing responses to w.
func New(sup *router.Supervisor, r io.Reader, w io.Writer, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Server{sup: sup, in: sc, out: json.NewEncoder(w), log: log}
}

// Run reads requests until EOF or context cancellation. Malformed lines
// get an error response rather than killing the loop.
func (s *Server) Run(ctx context.Context) error {
	for s.in.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := s.in.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(Response{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}
		s.write(s.handle(ctx, req))
	}
	if err := s.in.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func (s *Server) write(resp Response) {
	if err := s.out.Encode(resp); err != nil {
		s.log.Error("write response failed", "error", err)
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case "process_tool_call":
		return s.handleProcess(ctx, req)
	case "process_batch":
		return s.handleBatch(ctx, req)
	case "set_goal":
		return s.handleSetGoal(ctx, req)
	case "get_pending_workflow":
		return Response{ID: req.ID, Result: map[string]any{"workflow": s.sup.PendingWorkflow()}}
	case "get_goal":
		return Response{ID: req.ID, Result: map[string]any{"goal": s.sup.CurrentGoal()}}
	case "clear_goal":
		s.sup.ClearGoal()
		return Response{ID: req.ID, Result: map[string]any{}}
	case "get_stats":
		return Response{ID: req.ID, Result: s.sup.Stats()}
	case "get_component_status":
		return Response{ID: req.ID, Result: s.sup.ComponentStatus()}
	case "store_resolved_value":
		return s.handleStoreValue(ctx, req)
	case "ping":
		return Response{ID: req.ID, Result: map[string]any{}}
	default:
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method %q", req.Method)}
	}
}

type processParams struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
	Prompt string         `json:"prompt"`
}

func (s *Server) handleProcess(ctx context.Context, req Request) Response {
	var p processParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{ID: req.ID, Error: "invalid params: " + err.Error()}
	}
	if p.Tool == "" {
		return Response{ID: req.ID, Error: "tool is required"}
	}
	out, err := s.sup.Process(ctx, p.Tool, p.Params, p.Prompt)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	out.Calls = callList(out.Calls)
	return Response{ID: req.ID, Result: out}
}

type batchParams struct {
	Calls  []toolcall.ToolCall `json:"calls"`
	Prompt string              `json:"prompt"`
}

func (s *Server) handleBatch(ctx context.Context, req Request) Response {
	var p batchParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{ID: req.ID, Error: "invalid params: " + err.Error()}
	}
	out, err := s.sup.ProcessBatch(ctx, p.Calls, p.Prompt)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	out.Calls = callList(out.Calls)
	return Response{ID: req.ID, Result: out}
}

func (s *Server) handleSetGoal(ctx context.Context, req Request) Response {
	var p struct {
		Goal string `json:"goal"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{ID: req.ID, Error: "invalid params: " + err.Error()}
	}
	name, err := s.sup.SetGoal(ctx, p.Goal)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: map[string]any{"workflow": name}}
}

func (s *Server) handleStoreValue(ctx context.Context, req Request) Response {
	var p struct {
		Prompt   string `json:"prompt"`
		Workflow string `json:"workflow"`
		Param    string `json:"param"`
		Value    any    `json:"value"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{ID: req.ID, Error: "invalid params: " + err.Error()}
	}
	if err := s.sup.StoreResolvedValue(ctx, p.Prompt, p.Workflow, p.Param, p.Value); err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: map[string]any{"stored": true}}
}

// callList keeps an empty result as [] rather than null on the wire.
func callList(calls []toolcall.ToolCall) []toolcall.ToolCall {
	if calls == nil {
		return []toolcall.ToolCall{}
	}
	return calls
}
