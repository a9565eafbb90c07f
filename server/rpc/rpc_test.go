package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/internal/progress"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
	"github.com/marcopiovanello/ytdl-eta/server/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{}

func (fakeProvider) Lookup(ctx context.Context, url string) (*source.Video, error) {
	return &source.Video{
		URL:   url,
		Title: "clip",
		Variants: []source.Variant{
			{Resolution: "360p", ContainerFormat: "mp4", SizeBytes: 100},
		},
	}, nil
}

// gatedTransport sends one chunk, then waits for release.
type gatedTransport struct {
	release chan struct{}
}

func (g gatedTransport) Fetch(ctx context.Context, h source.Handle, dest string, fn transport.ProgressFunc) error {
	fn(50, 50)
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	fn(50, 0)
	return os.WriteFile(dest, []byte("media"), 0o644)
}

type fixture struct {
	srv     *httptest.Server
	bus     EventBus.Bus
	hub     *Hub
	dm      *downloads.Manager
	release chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{bus: EventBus.New(), release: make(chan struct{})}

	f.hub = NewHub(f.bus)
	require.NoError(t, f.hub.Listen())

	f.dm = downloads.New(fakeProvider{}, gatedTransport{release: f.release}, f.bus,
		downloads.WithDirectory(t.TempDir()))

	server, err := Container(f.dm)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/rpc", ApplyRouter(server, f.hub, f.dm))
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) call(t *testing.T, method string, params any) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]any{"method": method, "params": []any{params}, "id": 1})
	require.NoError(t, err)

	res, err := http.Post(f.srv.URL+"/rpc/http", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestHubKeepsNewestForSlowClients(t *testing.T) {
	bus := EventBus.New()
	hub := NewHub(bus)
	require.NoError(t, hub.Listen())

	updates, release := hub.subscribe(1)
	assert.Equal(t, 1, hub.Clients())

	bus.Publish(downloads.TopicUpdate, progress.Update{State: progress.StateActive, Percentage: 10})
	bus.Publish(downloads.TopicUpdate, progress.Update{State: progress.StateCompleted, Percentage: 100})

	last := <-updates
	assert.Equal(t, progress.StateCompleted, last.State)
	assert.Equal(t, 100.0, last.Percentage)
	select {
	case u := <-updates:
		t.Fatalf("unexpected update %v", u)
	default:
	}

	release()
	release()
	assert.Zero(t, hub.Clients())
	require.NoError(t, hub.Close())
}

func TestHubDeliversFinalStateWithFullBuffer(t *testing.T) {
	bus := EventBus.New()
	hub := NewHub(bus)
	require.NoError(t, hub.Listen())
	defer hub.Close()

	updates, release := hub.subscribe(4)
	defer release()

	for i := range 50 {
		bus.Publish(downloads.TopicUpdate, progress.Update{State: progress.StateActive, Percentage: float64(i)})
	}
	bus.Publish(downloads.TopicUpdate, progress.Update{State: progress.StateCompleted, Percentage: 100})

	var got []progress.Update
	for len(updates) > 0 {
		got = append(got, <-updates)
	}
	require.Len(t, got, 4)
	assert.Equal(t, []float64{48, 49}, []float64{got[1].Percentage, got[2].Percentage})
	assert.Equal(t, progress.StateCompleted, got[3].State)
}

func TestJSONRPC(t *testing.T) {
	f := newFixture(t)

	out := f.call(t, "Service.Progress", NoArgs{})
	assert.Equal(t, downloads.ErrNoDownload.Error(), out["error"])

	out = f.call(t, "Service.Start", downloads.Request{URL: "https://youtu.be/x", Resolution: "360p", Format: "mp4", ShowPlots: true})
	require.Nil(t, out["error"])
	id, err := uuid.Parse(out["result"].(string))
	require.NoError(t, err)

	out = f.call(t, "Service.Progress", NoArgs{})
	require.Nil(t, out["error"])
	snap := out["result"].(map[string]any)
	assert.Equal(t, id.String(), snap["session_id"])
	assert.Equal(t, "active", snap["state"])

	out = f.call(t, "Service.Report", NoArgs{})
	assert.Equal(t, downloads.ErrNotCompleted.Error(), out["error"])

	out = f.call(t, "Service.Stop", NoArgs{})
	require.Nil(t, out["error"])

	d, err := f.dm.Current()
	require.NoError(t, err)
	<-d.Done()
	assert.Equal(t, progress.StateCancelled, d.Session().State())
}

func TestWebSocketStreamsUpdates(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/rpc/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	d, err := f.dm.Start(context.Background(), downloads.Request{URL: "https://youtu.be/x", Resolution: "360p", Format: "mp4"})
	require.NoError(t, err)
	close(f.release)
	<-d.Done()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var states []progress.State
	var last progress.Update
	for len(states) == 0 || !states[len(states)-1].Terminal() {
		var u progress.Update
		require.NoError(t, conn.ReadJSON(&u))
		states = append(states, u.State)
		last = u
	}

	assert.Equal(t, progress.StateActive, states[0])
	assert.Equal(t, progress.StateCompleted, last.State)
	assert.Equal(t, 100.0, last.Percentage)
	assert.Equal(t, d.ID(), last.SessionID)
}

func TestWebSocketUpdatesCarryChartFields(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/rpc/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	d, err := f.dm.Start(context.Background(), downloads.Request{URL: "https://youtu.be/x", Resolution: "360p", Format: "mp4", ShowPlots: true})
	require.NoError(t, err)
	close(f.release)
	<-d.Done()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	progressed := 0
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		for _, key := range []string{"session_id", "state", "time_passed", "percentage", "predicted_time_left", "bytes_received"} {
			assert.Contains(t, msg, key)
		}
		if msg["state"] == "active" && msg["bytes_received"].(float64) > 0 {
			progressed++
		}
		if msg["state"] != "active" {
			break
		}
	}
	assert.Positive(t, progressed)
}

func TestWebSocketSendsCurrentStateFirst(t *testing.T) {
	f := newFixture(t)

	d, err := f.dm.Start(context.Background(), downloads.Request{URL: "https://youtu.be/x", Resolution: "360p", Format: "mp4"})
	require.NoError(t, err)
	defer func() {
		close(f.release)
		<-d.Done()
	}()

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/rpc/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var u progress.Update
	require.NoError(t, conn.ReadJSON(&u))
	assert.Equal(t, d.ID(), u.SessionID)
	assert.Equal(t, progress.StateActive, u.State)
}
