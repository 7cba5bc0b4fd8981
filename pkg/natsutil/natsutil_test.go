package natsutil

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
)

type payload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestMsgHandler_DecodesAndDispatches(t *testing.T) {
	var got payload
	var gotCtx context.Context
	h := msgHandler(func(ctx context.Context, p payload) {
		gotCtx = ctx
		got = p
	}, nil)

	h(&nats.Msg{Subject: "test", Data: []byte(`{"id":"a","name":"McDonald's KLCC"}`)})

	if got.ID != "a" || got.Name != "McDonald's KLCC" {
		t.Errorf("payload = %+v", got)
	}
	if gotCtx == nil {
		t.Error("handler must receive a context")
	}
}

func TestMsgHandler_MalformedHitsOnBad(t *testing.T) {
	var badData []byte
	var badErr error
	handled := false

	h := msgHandler(func(context.Context, payload) { handled = true },
		func(data []byte, err error) {
			badData = data
			badErr = err
		})

	h(&nats.Msg{Subject: "test", Data: []byte(`{"id":`)})

	if handled {
		t.Error("handler must not run for malformed messages")
	}
	if badErr == nil || string(badData) != `{"id":` {
		t.Errorf("onBad got (%q, %v)", badData, badErr)
	}
}

func TestMsgHandler_MalformedNilOnBad(t *testing.T) {
	h := msgHandler(func(context.Context, payload) {
		t.Error("handler must not run")
	}, nil)
	// Must not panic with no onBad callback.
	h(&nats.Msg{Subject: "test", Data: []byte(`not json`)})
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{Subject: "test"}
	c := (*natsHeaderCarrier)(msg)

	if c.Get("traceparent") != "" {
		t.Error("empty carrier must return empty values")
	}
	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("Get = %q", got)
	}
	keys := c.Keys()
	if len(keys) != 1 {
		t.Errorf("keys = %v", keys)
	}
	if msg.Header.Get("traceparent") == "" {
		t.Error("carrier must write through to the message header")
	}
}
