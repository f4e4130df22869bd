package mcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Transport frames and deframes JSON-RPC messages over a byte stream.
// Implementations must keep each sent message on a single line and must not
// interleave partial writes from concurrent senders.
type Transport interface {
	Send(resp Response) error
	OnMessage(handler func(Request))
	Run() error
	Close() error
}

// maxLineBytes bounds a single framed message (tool results can be large).
const maxLineBytes = 10 * 1024 * 1024

// StdioTransport speaks newline-delimited JSON over an arbitrary
// reader/writer pair, stdin/stdout in production. Message boundaries depend
// only on newlines, never on read-call boundaries: a line split across reads
// is buffered until its newline arrives.
type StdioTransport struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	handler func(Request)
	closed  bool
}

// NewStdioTransport wraps the given stream pair. Run must be called to start
// consuming messages.
func NewStdioTransport(in io.Reader, out io.Writer, logger *slog.Logger) *StdioTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{in: in, out: out, logger: logger}
}

// OnMessage installs the handler invoked for every successfully parsed
// message. It must be set before Run.
func (t *StdioTransport) OnMessage(handler func(Request)) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// errLineTooLong marks a line past maxLineBytes; its bytes are discarded up
// to the next newline.
var errLineTooLong = errors.New("line exceeds size limit")

// Run reads the stream until EOF or Close, dispatching one handler call per
// complete line. A line that fails to parse or exceeds the size limit is
// logged and dropped; it never terminates the stream.
func (t *StdioTransport) Run() error {
	reader := bufio.NewReaderSize(t.in, 64*1024)

	for {
		line, err := readLine(reader)

		t.mu.Lock()
		closed := t.closed
		handler := t.handler
		t.mu.Unlock()
		if closed {
			return nil
		}

		switch {
		case err == nil || errors.Is(err, io.EOF):
		case errors.Is(err, errLineTooLong):
			t.logger.Warn("dropping oversized message", "limit", maxLineBytes)
			continue
		default:
			return err
		}

		if len(line) > 0 {
			var req Request
			if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
				t.logger.Warn("dropping unparseable message", "err", jsonErr, "len", len(line))
			} else if handler != nil {
				handler(req)
			}
		}

		if err != nil {
			return nil
		}
	}
}

// readLine returns the next newline-terminated line without its newline. A
// final unterminated line is returned with io.EOF. Lines past maxLineBytes
// yield errLineTooLong after their remainder has been skipped.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if err == nil {
			return line[:len(line)-1], nil
		}
		if err != bufio.ErrBufferFull {
			return line, err
		}
		if len(line) > maxLineBytes {
			return nil, skipLine(r)
		}
	}
}

// skipLine discards the remainder of the current line.
func skipLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil {
			return errLineTooLong
		}
		if err != bufio.ErrBufferFull {
			return err
		}
	}
}

// Send serializes one response as a single line. The write happens in one
// call under a lock, so concurrent sends never interleave.
func (t *StdioTransport) Send(resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.out.Write(data)
	return err
}

// Close stops the read loop and drops the handler. Messages read after Close
// are ignored, not errored. Safe to call more than once.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.handler = nil
	t.mu.Unlock()
	return nil
}
