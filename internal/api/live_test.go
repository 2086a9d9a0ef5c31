package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehab-data/motion.report/internal/exercise"
)

func TestStreamEventsForwardsEngineEvents(t *testing.T) {
	t.Parallel()
	engine := newFakeEngine()
	srv := httptest.NewServer(testServer(engine, &fakeStorage{}).ServeMux())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	engine.events <- exercise.Event{Kind: exercise.EventRep, Exercise: "stick_switch", Rep: 1, Target: 5}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev exercise.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, exercise.EventRep, ev.Kind)
	assert.Equal(t, "stick_switch", ev.Exercise)
	assert.Equal(t, 1, ev.Rep)
}
