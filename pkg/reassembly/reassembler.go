// Package reassembly folds an ordered stream of message deltas into one
// completed message. A Reassembler owns the accumulation state for exactly
// one message stream and is reached only by the task driving that stream, so
// it takes no locks.
package reassembly

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/babel/pkg/messages"
	"github.com/casualjim/babel/pkg/usage"
)

type state int

const (
	stateIdle state = iota
	stateAccumulating
	stateEnded
)

// node is one positional entry of the message under construction: either an
// open text buffer or a tool-call slot.
type node struct {
	text *strings.Builder
	slot *toolSlot
}

type toolSlot struct {
	index int
	id    string
	name  string
	args  strings.Builder
	err   error
}

// Reassembler drives the Idle → Accumulating → Ended lifecycle of a single
// streaming message.
type Reassembler struct {
	log *slog.Logger

	state       state
	role        messages.Role
	nodes       []*node
	slots       []*toolSlot
	lastWasText bool

	usage        *usage.Usage
	finishReason messages.FinishReason
}

// WithLogger overrides the logger used for protocol-violation warnings.
var WithLogger = opts.ForName[Reassembler, *slog.Logger]("log")

// New creates a reassembler in the Idle state.
func New(options ...opts.Option[Reassembler]) (*Reassembler, error) {
	r := &Reassembler{log: slog.Default()}
	if err := opts.Apply(r, options); err != nil {
		return nil, err
	}
	return r, nil
}

// Push applies one stream event. A DeltaEvent accumulates; an EndEvent
// finalizes. Events arriving after the end are a protocol violation: they
// are reported via ErrClosed and discarded, since the underlying transport
// is not guaranteed to enforce ordering.
func (r *Reassembler) Push(ev messages.StreamEvent) error {
	if r.state == stateEnded {
		r.log.Warn("discarding stream event received after end")
		return ErrClosed
	}
	switch e := ev.(type) {
	case messages.DeltaEvent:
		return r.applyDelta(e.Delta)
	case messages.EndEvent:
		r.usage = e.Usage
		r.finishReason = e.FinishReason
		r.finish()
		return nil
	default:
		return fmt.Errorf("unknown stream event %T", ev)
	}
}

func (r *Reassembler) applyDelta(delta messages.MessageDelta) error {
	if delta.Role != "" {
		if r.role != "" && r.role != delta.Role {
			return fmt.Errorf("role already fixed to %q, delta carries %q", r.role, delta.Role)
		}
		r.role = delta.Role
	}
	r.state = stateAccumulating

	for _, pd := range delta.Content {
		switch d := pd.(type) {
		case messages.TextDelta:
			r.applyText(d)
		case messages.ToolCallDelta:
			if err := r.applyToolCall(d); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown part delta %T", pd)
		}
	}
	return nil
}

func (r *Reassembler) applyText(d messages.TextDelta) {
	if r.lastWasText {
		if n := r.lastNode(); n != nil && n.text != nil {
			n.text.WriteString(d.Text)
			return
		}
	}
	sb := &strings.Builder{}
	sb.WriteString(d.Text)
	r.nodes = append(r.nodes, &node{text: sb})
	r.lastWasText = true
}

func (r *Reassembler) applyToolCall(d messages.ToolCallDelta) error {
	next := len(r.slots)
	switch {
	case d.Index == next:
		for _, open := range r.slots {
			if d.ID != "" && open.id == d.ID {
				return &Error{Kind: DuplicateID, Index: d.Index, ID: d.ID}
			}
		}
		slot := &toolSlot{index: d.Index, id: d.ID, name: d.Name}
		slot.args.WriteString(d.Args)
		r.slots = append(r.slots, slot)
		r.nodes = append(r.nodes, &node{slot: slot})
		r.lastWasText = false
	case d.Index >= 0 && d.Index == next-1:
		slot := r.slots[d.Index]
		if d.ID != "" {
			if slot.id != "" && slot.id != d.ID {
				return &Error{Kind: DuplicateID, Index: d.Index, ID: d.ID}
			}
			slot.id = d.ID
		}
		if d.Name != "" && slot.name == "" {
			slot.name = d.Name
		}
		slot.args.WriteString(d.Args)
		r.lastWasText = false
	default:
		// either a closed slot (index < next-1) or a gap ahead of the next
		// unopened index
		return &Error{Kind: OutOfOrder, Index: d.Index, ID: d.ID}
	}
	return nil
}

func (r *Reassembler) lastNode() *node {
	if len(r.nodes) == 0 {
		return nil
	}
	return r.nodes[len(r.nodes)-1]
}

func (r *Reassembler) finish() {
	for _, slot := range r.slots {
		raw := slot.args.String()
		if raw == "" {
			continue
		}
		if !gjson.Valid(raw) {
			slot.err = &Error{
				Kind:     MalformedArguments,
				Index:    slot.index,
				ID:       slot.id,
				Fragment: raw,
				cause:    errors.New("argument buffer is not valid json"),
			}
		}
	}
	r.state = stateEnded
}

// Ended reports whether the stream has been finalized.
func (r *Reassembler) Ended() bool { return r.state == stateEnded }

// Usage returns the token accounting carried by the end event, if any.
func (r *Reassembler) Usage() *usage.Usage { return r.usage }

// FinishReason returns the finish signal carried by the end event.
func (r *Reassembler) FinishReason() messages.FinishReason { return r.finishReason }

// Message returns the completed message once the stream has ended. A
// MalformedArguments failure on one tool-call slot does not abort the rest:
// the offending slot keeps its raw fragment, string-encoded, as its args and
// the joined slot errors are returned alongside the still-valid message.
// Streams that never carried a role finalize as assistant messages.
func (r *Reassembler) Message() (messages.Message, error) {
	if r.state != stateEnded {
		return messages.Message{}, errors.New("message stream has not ended")
	}

	role := r.role
	if role == "" {
		role = messages.RoleAssistant
	}

	var slotErrs []error
	parts := make(messages.Parts, 0, len(r.nodes))
	for _, n := range r.nodes {
		switch {
		case n.text != nil:
			parts = append(parts, messages.Text(n.text.String()))
		case n.slot != nil:
			slot := n.slot
			call := messages.ToolCallPart{ID: slot.id, Name: slot.name}
			raw := slot.args.String()
			switch {
			case slot.err != nil:
				slotErrs = append(slotErrs, slot.err)
				encoded, err := json.Marshal(raw)
				if err != nil {
					return messages.Message{}, err
				}
				call.Args = json.RawMessage(encoded)
			case raw != "":
				call.Args = json.RawMessage(raw)
			}
			parts = append(parts, call)
		}
	}

	msg := messages.Message{
		Role:      role,
		Content:   parts,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}
	if err := msg.Validate(); err != nil {
		return messages.Message{}, err
	}
	return msg, errors.Join(slotErrs...)
}
