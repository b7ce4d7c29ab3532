package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyDeliversEvent(t *testing.T) {
	var mu sync.Mutex
	var received []Event

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	n.Notify(EventPostPublished, map[string]interface{}{"post_id": "p1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	event := received[0]
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventPostPublished, event.Type)
	assert.False(t, event.Timestamp.IsZero())

	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "p1", data["post_id"])
}

func TestNotifyDoesNotBlockOnSlowReceiver(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	n := NewNotifier(server.URL)

	start := time.Now()
	n.Notify(EventPostFailed, map[string]interface{}{"post_id": "p1"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestNotifyNoopWithoutURL(t *testing.T) {
	n := NewNotifier("")
	// must be safe to call with no receiver configured
	n.Notify(EventCampaignCompleted, map[string]interface{}{"campaign_id": "c1"})
}
