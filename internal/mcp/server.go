package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"webpilot/internal/catalog"
	"webpilot/internal/domain"
	"webpilot/internal/metrics"
)

// Server owns the protocol state for one transport: a bound catalog, the
// advertised protocol version and capabilities, and request dispatch.
// Requests arrive one at a time from the transport's read loop; responses
// may be written while the next request is being read.
type Server struct {
	cat       domain.Catalog
	transport Transport
	info      ServerInfo
	logger    *slog.Logger
}

func NewServer(cat domain.Catalog, transport Transport, info ServerInfo, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cat: cat, transport: transport, info: info, logger: logger}
}

// Run wires dispatch into the transport and blocks until the stream ends or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.transport.OnMessage(func(req Request) {
		if resp := s.Handle(ctx, req); resp != nil {
			if err := s.transport.Send(*resp); err != nil {
				s.logger.Error("send failed", "method", req.Method, "err", err)
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- s.transport.Run()
	}()

	select {
	case <-ctx.Done():
		_ = s.transport.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Handle dispatches one request and returns the response to write, or nil
// for notifications. Errors while handling a notification are swallowed:
// there is no channel to report them on.
func (s *Server) Handle(ctx context.Context, req Request) *Response {
	metrics.RPCRequests.Inc()
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		if req.IsNotification() {
			return nil
		}
		resp := NewError(req.ID, CodeInvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", req.JSONRPC))
		return &resp
	}

	resp := s.dispatch(ctx, req)
	if req.IsNotification() {
		if resp.Error != nil {
			s.logger.Debug("error during notification, dropped", "method", req.Method, "code", resp.Error.Code)
		}
		return nil
	}
	return &resp
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return NewResult(req.ID, ListToolsResult{Tools: CatalogToWire(s.cat.List())})
	case "tools/call":
		return s.handleToolCall(ctx, req)
	default:
		return NewError(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleInitialize never fails on well-formed input; unknown capability
// requests in params are ignored for forward compatibility.
func (s *Server) handleInitialize(req Request) Response {
	return NewResult(req.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    Capabilities{Tools: map[string]any{"listChanged": false}},
		ServerInfo:      s.info,
	})
}

func (s *Server) handleToolCall(ctx context.Context, req Request) Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewError(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}
	if params.Name == "" {
		return NewError(req.ID, CodeInvalidParams, "missing tool name")
	}

	result, err := s.cat.Execute(ctx, params.Name, params.Arguments, nil)
	if err != nil {
		var verr *catalog.ValidationError
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return NewError(req.ID, CodeToolNotFound, fmt.Sprintf("unknown tool: %s", params.Name))
		case errors.As(err, &verr):
			return NewError(req.ID, CodeInvalidToolParameters, verr.Error())
		default:
			return NewError(req.ID, CodeToolExecutionError, err.Error())
		}
	}

	return NewResult(req.ID, ResultToWire(result))
}
