// Package eventtest provides an in-memory transport for tests.
package eventtest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/quocanhngo/delivertalk/internal/event"
)

// Recorder captures every published envelope
type Recorder struct {
	mu        sync.Mutex
	envelopes []event.Envelope

	// Fail, when set, is consulted before recording; a non-nil result fails the publish
	Fail func(channel string) error
}

func (r *Recorder) Publish(_ context.Context, channel string, envelope []byte) error {
	if r.Fail != nil {
		if err := r.Fail(channel); err != nil {
			return err
		}
	}
	var env event.Envelope
	if err := json.Unmarshal(envelope, &env); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
	return nil
}

// All returns a copy of every recorded envelope
func (r *Recorder) All() []event.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Envelope, len(r.envelopes))
	copy(out, r.envelopes)
	return out
}

// Named returns envelopes whose event name is name
func (r *Recorder) Named(name string) []event.Envelope {
	var out []event.Envelope
	for _, env := range r.All() {
		if env.Event == name {
			out = append(out, env)
		}
	}
	return out
}

// OnChannel returns envelopes published to channel
func (r *Recorder) OnChannel(channel string) []event.Envelope {
	var out []event.Envelope
	for _, env := range r.All() {
		if env.Channel == channel {
			out = append(out, env)
		}
	}
	return out
}

// Reset drops everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = nil
}

// Decode unmarshals an envelope's data into v
func Decode(env event.Envelope, v interface{}) error {
	return json.Unmarshal(env.Data, v)
}
