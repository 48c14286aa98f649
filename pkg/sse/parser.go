// Package sse decodes a chunked byte stream framed as server-sent-event
// records into an ordered sequence of raw payloads. Decoding a payload into
// a provider-native chunk type is the owning converter's job.
package sse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
)

const (
	// DefaultSentinel is the terminal marker most providers emit before
	// closing the transport, distinct from EOF.
	DefaultSentinel = "[DONE]"

	defaultMaxRecord = 10 << 20
	readChunkSize    = 4096
)

// StreamError is a transport or framing failure. Record boundaries are not
// recoverable once corrupted: the parser poisons itself and the entire
// stream fails.
type StreamError struct {
	Op    string
	cause error
}

func (e *StreamError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("stream %s: %v", e.Op, e.cause)
	}
	return "stream " + e.Op
}

func (e *StreamError) Unwrap() error { return e.cause }

// Parser incrementally frames records out of an io.Reader. It buffers
// partial records across read boundaries, byte-accurately, so a record is
// never emitted before its full bytes (including mid-codepoint splits of
// multi-byte text) have arrived. A Parser serves exactly one stream and is
// not safe for concurrent use.
type Parser struct {
	r         io.Reader
	sentinel  string
	maxRecord int

	buf  []byte   // unconsumed bytes carried across reads
	data []string // data lines of the event being assembled
	eof  bool
	done bool
	err  error
}

var (
	// WithSentinel overrides the terminal marker ("" disables detection).
	WithSentinel = opts.ForName[Parser, string]("sentinel")
	// WithMaxRecordSize caps the byte size of a single buffered record.
	WithMaxRecordSize = opts.ForName[Parser, int]("maxRecord")
)

// New creates a parser over r with the default sentinel and record cap.
func New(r io.Reader, options ...opts.Option[Parser]) (*Parser, error) {
	p := &Parser{r: r, sentinel: DefaultSentinel, maxRecord: defaultMaxRecord}
	if err := opts.Apply(p, options); err != nil {
		return nil, err
	}
	return p, nil
}

// Next returns the next complete record payload. It blocks on the underlying
// reader until enough bytes arrive; cancellation is the caller's concern
// (close the reader or use Events with a context). After the sentinel or
// transport close it returns io.EOF; any other failure is a *StreamError and
// the parser stays failed.
func (p *Parser) Next() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	for {
		// drain complete lines already buffered
		for {
			idx := bytes.IndexByte(p.buf, '\n')
			if idx < 0 {
				break
			}
			line := string(p.buf[:idx])
			p.buf = p.buf[idx+1:]
			record, ok := p.consumeLine(line)
			if p.done {
				p.err = io.EOF
				return nil, io.EOF
			}
			if ok {
				return record, nil
			}
		}

		if p.eof {
			// transport closed: a dangling unterminated line still belongs
			// to the stream
			if len(p.buf) > 0 {
				line := string(p.buf)
				p.buf = nil
				if record, ok := p.consumeLine(line); ok && !p.done {
					return record, nil
				}
			}
			if record, ok := p.flush(); ok && !p.done {
				return record, nil
			}
			p.err = io.EOF
			return nil, io.EOF
		}

		if len(p.buf) > p.maxRecord {
			p.err = &StreamError{Op: "frame", cause: fmt.Errorf("record exceeds %d bytes", p.maxRecord)}
			return nil, p.err
		}

		chunk := make([]byte, readChunkSize)
		n, err := p.r.Read(chunk)
		if n > 0 {
			p.buf = append(p.buf, chunk[:n]...)
		}
		switch {
		case err == io.EOF:
			p.eof = true
		case err != nil:
			p.err = &StreamError{Op: "read", cause: err}
			return nil, p.err
		}
	}
}

// consumeLine folds one framed line into the event under assembly. It
// returns a record when the line completes one.
func (p *Parser) consumeLine(line string) ([]byte, bool) {
	line = strings.TrimSuffix(line, "\r")

	if line == "" {
		return p.flush()
	}
	if strings.HasPrefix(line, ":") {
		// comment / keep-alive
		return nil, false
	}
	if payload, found := strings.CutPrefix(line, "data:"); found {
		p.data = append(p.data, strings.TrimPrefix(payload, " "))
		return nil, false
	}
	// other SSE fields (event:, id:, retry:) carry no payload for us
	return nil, false
}

// flush dispatches the accumulated data lines, joined with newlines, as one
// record. It detects the terminal sentinel.
func (p *Parser) flush() ([]byte, bool) {
	if len(p.data) == 0 {
		return nil, false
	}
	record := strings.Join(p.data, "\n")
	p.data = p.data[:0]
	if p.sentinel != "" && record == p.sentinel {
		p.done = true
		return nil, false
	}
	return []byte(record), true
}

// Events drives a parser over r and yields each record. The sequence ends on
// sentinel or transport close; a failure is yielded once with a nil record.
// Cancelling ctx ends the sequence at the next record boundary and drops all
// buffered state with the parser.
func Events(ctx context.Context, r io.Reader, options ...opts.Option[Parser]) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		p, err := New(r, options...)
		if err != nil {
			yield(nil, err)
			return
		}
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, &StreamError{Op: "read", cause: err})
				return
			}
			record, err := p.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(json.RawMessage(record), nil) {
				return
			}
		}
	}
}
