package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

type chanBus struct {
	subs map[string]chan []byte
}

func newChanBus() *chanBus {
	b := &chanBus{subs: make(map[string]chan []byte)}
	for _, ch := range Channels {
		b.subs[ch] = make(chan []byte, 4)
	}
	return b
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.subs[channel] <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.subs[channel], nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestHubForwardsBusEvents(t *testing.T) {
	bus := newChanBus()
	hub := NewHub(bus, "full", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	kind, greeting, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Contains(t, string(greeting), "oracle_status")

	require.NoError(t, bus.Publish(ctx, domain.ChannelMarket, []byte(`{"type":"market_created"}`)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got envelope
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, domain.ChannelMarket, got.Channel)
	assert.JSONEq(t, `{"type":"market_created"}`, string(got.Event))
}

func TestIsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{"ch:*": true}}
	assert.True(t, c.isSubscribed(domain.ChannelSettlement))

	c = &client{subs: map[string]bool{domain.ChannelMarket: true}}
	assert.True(t, c.isSubscribed(domain.ChannelMarket))
	assert.False(t, c.isSubscribed(domain.ChannelDetection))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelMarket}})
	assert.False(t, c.isSubscribed(domain.ChannelMarket))
}
