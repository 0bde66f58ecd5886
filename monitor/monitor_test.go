package monitor

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("test")

	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	m.SetActiveRooms(3)
	m.IncMessagesReceived("move")
	m.IncMessagesReceived("move")
	m.IncMessagesReceived("joinRoom")
	m.AddMovesRelayed(2)
	m.IncJoinFailures("full")
	m.IncDeliveryFailures(1)
	m.IncRoomsClosed("disconnect")
	m.ObserveMessageLatency(time.Millisecond)

	metrics := m.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OnlinePlayers))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ActiveRooms))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MessagesReceived.WithLabelValues("move")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesReceived.WithLabelValues("joinRoom")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MovesRelayed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JoinFailures.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DeliveryFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RoomsClosed.WithLabelValues("disconnect")))
}

func TestMonitor_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMonitor("same")
		NewMonitor("same")
	})
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("test")
	m.SetActiveRooms(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_active_rooms 1")
	assert.Contains(t, string(body), "test_uptime_seconds")
}
