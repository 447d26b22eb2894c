package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductline/ductline/backend-go/internal/centerline"
	"github.com/ductline/ductline/backend-go/internal/geom"
)

// testClient is a hub client with no websocket; messages land in its
// send buffer.
func testClient(h *Hub, projectID, clientID string) *Client {
	return &Client{
		hub:         h,
		send:        make(chan []byte, 64),
		UserID:      "user_" + clientID,
		DisplayName: "Tester",
		ProjectID:   projectID,
		ClientID:    clientID,
	}
}

// drain decodes every buffered message for a client.
func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data := <-c.send:
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func ofType(msgs []Message, msgType string) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func openRoom(h *Hub, clients ...*Client) *Room {
	for _, c := range clients {
		h.addClient(c)
	}
	return h.room(clients[0].ProjectID)
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestPointerMoveReturnsSnapResult(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a := testClient(h, "proj_1", "c1")
	b := testClient(h, "proj_1", "c2")
	openRoom(h, a, b)
	drain(t, a)
	drain(t, b)

	h.handleMessage(a, &Message{
		Type:      TypePointerMove,
		ProjectID: "proj_1",
		Payload:   mustMarshal(t, PointerPayload{X: 10, Y: 20}),
	})

	got := drain(t, a)
	results := ofType(got, TypeSnapResult)
	require.Len(t, results, 1)
	var payload SnapResultPayload
	require.NoError(t, json.Unmarshal(results[0].Payload, &payload))
	assert.InDelta(t, 10, payload.Attraction.AttractedPosition.X, 1e-9)

	// The other client sees the cursor as presence, not a snap result.
	other := drain(t, b)
	assert.Empty(t, ofType(other, TypeSnapResult))
	assert.Len(t, ofType(other, TypePresenceUpdate), 1)
}

func TestClickAndCompleteBroadcastDrawingState(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a := testClient(h, "proj_2", "c1")
	b := testClient(h, "proj_2", "c2")
	openRoom(h, a, b)
	drain(t, a)
	drain(t, b)

	click := func(x, y float64) {
		h.handleMessage(a, &Message{
			Type:      TypePointerClick,
			ProjectID: "proj_2",
			Payload:   mustMarshal(t, PointerPayload{X: x, Y: y}),
		})
	}
	click(0, 0)
	click(100, 0)
	h.handleMessage(a, &Message{Type: TypeDrawingComplete, ProjectID: "proj_2", Payload: mustMarshal(t, struct{}{})})

	states := ofType(drain(t, b), TypeDrawingState)
	require.Len(t, states, 3)

	var last DrawingStatePayload
	require.NoError(t, json.Unmarshal(states[2].Payload, &last))
	assert.Equal(t, centerline.StateComplete, last.Status.State)
	require.NotNil(t, last.Status.Centerline)
	assert.InDelta(t, 100, last.Status.Centerline.Metadata.TotalLength, 1e-9)
}

func TestConvertBroadcastsDuctworkResult(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a := testClient(h, "proj_3", "c1")
	openRoom(h, a)
	drain(t, a)

	room := h.room("proj_3")
	room.mu.Lock()
	_, err := room.engine.StartDrawing(geom.Point2D{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = room.engine.AddPoint(geom.Point2D{X: 100, Y: 0})
	require.NoError(t, err)
	_, err = room.engine.CompleteDrawing()
	require.NoError(t, err)
	room.mu.Unlock()

	h.handleMessage(a, &Message{Type: TypeConvert, ProjectID: "proj_3"})

	results := ofType(drain(t, a), TypeDuctworkResult)
	require.Len(t, results, 1)
	var payload DuctworkResultPayload
	require.NoError(t, json.Unmarshal(results[0].Payload, &payload))
	assert.True(t, payload.Result.Success)
	assert.Len(t, payload.Result.DuctSegments, 1)
	assert.Len(t, payload.Result.OpenConnections, 2)
}

func TestInvalidPayloadYieldsError(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a := testClient(h, "proj_4", "c1")
	openRoom(h, a)
	drain(t, a)

	h.handleMessage(a, &Message{
		Type:      TypePointerMove,
		ProjectID: "proj_4",
		Payload:   json.RawMessage(`"nope"`),
	})

	errs := ofType(drain(t, a), TypeError)
	require.Len(t, errs, 1)
}

func TestUndoWithoutDrawingYieldsError(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a := testClient(h, "proj_5", "c1")
	openRoom(h, a)
	drain(t, a)

	h.handleMessage(a, &Message{Type: TypeDrawingUndo, ProjectID: "proj_5"})

	errs := ofType(drain(t, a), TypeError)
	require.Len(t, errs, 1)
}

func TestDesignLoaderSeedsNewRoom(t *testing.T) {
	t.Parallel()

	h := NewHub()
	seeded := `{"projectId":"proj_6","name":"seeded","version":3,"rooms":[],"equipment":[],"centerlines":[],"segments":[],"fittings":[]}`
	h.SetDesignLoader(func(projectID string) (string, bool) {
		return seeded, projectID == "proj_6"
	})

	a := testClient(h, "proj_6", "c1")
	openRoom(h, a)

	data, ok := h.RoomDesignJSON("proj_6")
	require.True(t, ok)
	assert.Contains(t, data, `"name":"seeded"`)
	assert.Contains(t, data, `"version":3`)

	_, ok = h.RoomDesignJSON("proj_other")
	assert.False(t, ok)
}

func TestRoomRemovedWhenLastClientLeaves(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a := testClient(h, "proj_7", "c1")
	openRoom(h, a)
	require.NotNil(t, h.room("proj_7"))

	h.removeClient(a)
	assert.Nil(t, h.room("proj_7"))
}

func TestGridSpacingAppliesToNewRooms(t *testing.T) {
	t.Parallel()

	h := NewHub()
	h.SetGridSpacing(10)
	a := testClient(h, "proj_grid", "c1")
	room := openRoom(h, a)
	drain(t, a)

	// An otherwise empty room still carries grid snap points.
	room.mu.Lock()
	count := room.engine.Metrics().SnapPointCount
	room.mu.Unlock()
	assert.Greater(t, count, 0)

	h.handleMessage(a, &Message{
		Type:      TypePointerMove,
		ProjectID: "proj_grid",
		Payload:   mustMarshal(t, PointerPayload{X: 103, Y: 98}),
	})

	msgs := ofType(drain(t, a), TypeSnapResult)
	require.Len(t, msgs, 1)
	var payload SnapResultPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.True(t, payload.Attraction.IsAttracted)
	assert.Equal(t, geom.Point2D{X: 100, Y: 100}, payload.Attraction.AttractedPosition)
}
