package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opd-desk/internal/daily"
	"opd-desk/internal/mirror"
	"opd-desk/internal/models"
	"opd-desk/internal/store"
)

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return Message{}
}

func TestHub_RegisterGetsLastView(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.Publish(daily.View{ISODate: "2024-05-01", TodayCount: 3})

	c := NewClient()
	h.Register(c)
	assert.Equal(t, 1, h.ClientCount())

	msg := receive(t, c)
	assert.Equal(t, MessageToday, msg.Type)
	assert.Equal(t, 3, msg.Data.TodayCount)
}

func TestHub_BroadcastAndUnregister(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a, b := NewClient(), NewClient()
	h.Register(a)
	h.Register(b)

	h.Publish(daily.View{TodayCount: 1})
	assert.Equal(t, 1, receive(t, a).Data.TodayCount)
	assert.Equal(t, 1, receive(t, b).Data.TodayCount)

	h.Unregister(a)
	h.Unregister(a)
	assert.Equal(t, 1, h.ClientCount())
	_, open := <-a.Send
	assert.False(t, open)
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := NewClient()
	h.Register(c)

	for i := 0; i < sendBuffer+5; i++ {
		h.Publish(daily.View{TodayCount: i})
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestHub_FollowPublishesOnSnapshots(t *testing.T) {
	mem := store.NewMemory()
	b := mirror.NewBridge(mem, mirror.New(), zerolog.Nop(), nil)
	h := NewHub(zerolog.Nop())

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	h.Follow(b, daily.NewProjector(time.UTC, ""), func() time.Time { return now })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Start(ctx))

	c := NewClient()
	h.Register(c)
	first := receive(t, c)
	assert.True(t, first.Data.Loaded)
	assert.True(t, first.Data.Empty)
	assert.Equal(t, daily.Placeholder, first.Data.Placeholder)

	_, err := mem.Insert(ctx, models.CollectionVisits, models.Visit{OPDID: "OPD-000001", ISODate: "2024-05-01"}.Record())
	require.NoError(t, err)

	msg := receive(t, c)
	assert.Equal(t, 1, msg.Data.TodayCount)
	assert.Equal(t, "OPD-000001", msg.Data.Visits[0].OPDID)
}

func TestHub_ServeWebSocket(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.Publish(daily.View{ISODate: "2024-05-01", TodayCount: 2})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.Serve(w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, 2, msg.Data.TodayCount)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	ws.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

// visitsPending never delivers a visit snapshot.
type visitsPending struct {
	*store.Memory
}

func (v *visitsPending) Subscribe(ctx context.Context, collection string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) error {
	if collection == models.CollectionVisits {
		return nil
	}
	return v.Memory.Subscribe(ctx, collection, onSnapshot, onError)
}

func TestHub_FollowWaitsForVisits(t *testing.T) {
	st := &visitsPending{Memory: store.NewMemory()}
	b := mirror.NewBridge(st, mirror.New(), zerolog.Nop(), nil)
	h := NewHub(zerolog.Nop())
	h.Follow(b, daily.NewProjector(time.UTC, ""), time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Start(ctx))

	_, err := st.Insert(ctx, models.CollectionPatients, models.Patient{ID: "P-1001"}.Record())
	require.NoError(t, err)

	c := NewClient()
	h.Register(c)
	select {
	case data := <-c.Send:
		t.Fatalf("pushed before visits loaded: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}
