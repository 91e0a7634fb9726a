// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirror

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	published []string
	fail      error
	closed    bool
}

func (f *fakeSink) Publish(_ context.Context, relay string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.published = append(f.published, relay+"="+string(payload))
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestTopicAndChannel(t *testing.T) {
	assert.Equal(t, "devmgr/adsb", Topic("devmgr", "adsb"))
	assert.Equal(t, "adsb", Topic("", "adsb"))
	assert.Equal(t, "devmgr:camera", Channel("devmgr", "camera"))
	assert.Equal(t, "camera", Channel("", "camera"))
}

func TestMulti(t *testing.T) {
	a := &fakeSink{}
	b := &fakeSink{fail: errors.New("broker down")}
	m := Multi{a, b}

	err := m.Publish(context.Background(), "jammer", []byte("x"))
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, []string{"jammer=x"}, a.snapshot(), "a failing sink does not block the others")

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestQueue_PublishesInOrder(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(sink, quietLog(), 8)

	require.True(t, q.Offer("adsb", []byte("1")))
	require.True(t, q.Offer("adsb", []byte("2")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"adsb=1", "adsb=2"}, sink.snapshot())

	cancel()
	<-done
	assert.True(t, sink.closed)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(&fakeSink{}, quietLog(), 1)
	assert.True(t, q.Offer("radar", []byte("a")))
	assert.False(t, q.Offer("radar", []byte("b")))
}

func TestQueue_FailuresAreLoggedOnly(t *testing.T) {
	sink := &fakeSink{fail: errors.New("timeout")}
	q := NewQueue(sink, quietLog(), 4)
	q.Offer("camera", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(q.items) == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

// ============================================================
// MQTT connect
// ============================================================

type fakeToken struct {
	done chan struct{}
	err  error
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

// fakeMQTTClient records Disconnect calls; other methods are unused
type fakeMQTTClient struct {
	mqtt.Client
	token       *fakeToken
	disconnects int
}

func (c *fakeMQTTClient) Connect() mqtt.Token { return c.token }
func (c *fakeMQTTClient) Disconnect(uint)     { c.disconnects++ }

func TestConnect(t *testing.T) {
	completed := func(err error) *fakeToken {
		tok := &fakeToken{done: make(chan struct{}), err: err}
		close(tok.done)
		return tok
	}

	tests := []struct {
		name           string
		token          *fakeToken
		wantErr        string
		wantDisconnect int
	}{
		{"connected", completed(nil), "", 0},
		{"refused", completed(errors.New("not authorized")), "not authorized", 1},
		{"timed out", &fakeToken{done: make(chan struct{})}, "timed out", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeMQTTClient{token: tt.token}
			err := connect(client, "tcp://broker:1883", 20*time.Millisecond)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			assert.Equal(t, tt.wantDisconnect, client.disconnects)
		})
	}
}
