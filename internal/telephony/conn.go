package telephony

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn wraps the Media Streams WebSocket for one call. Writes are
// serialized; reads are expected from a single goroutine.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	streamSID string
	closed    bool
}

// NewConn wraps an upgraded WebSocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// ReadMessage returns the next decoded event. A malformed frame is logged
// and skipped ((nil, nil)); a transport error ends the stream.
func (c *Conn) ReadMessage() (*Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("twilio_parse_err err=%v", err)
		return nil, nil
	}
	return &msg, nil
}

// SetStreamSID records the stream identity from the start event.
func (c *Conn) SetStreamSID(sid string) {
	c.mu.Lock()
	c.streamSID = sid
	c.mu.Unlock()
}

// StreamSID returns the recorded stream identity, or "" before start.
func (c *Conn) StreamSID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamSID
}

// SendAudio forwards one synthesized audio chunk to the caller, followed by
// a uuid-named mark so playback completion is observable.
func (c *Conn) SendAudio(chunk []byte) error {
	sid := c.StreamSID()
	if sid == "" {
		return nil
	}
	payload := base64.StdEncoding.EncodeToString(chunk)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(Message{
		Event:     EventMedia,
		StreamSID: sid,
		Media:     &MediaPayload{Payload: payload},
	}); err != nil {
		return err
	}
	return c.ws.WriteJSON(Message{
		Event:     EventMark,
		StreamSID: sid,
		Mark:      &MarkPayload{Name: uuid.NewString()},
	})
}

// SendClear asks Twilio to drop its buffered playback immediately.
func (c *Conn) SendClear() error {
	sid := c.StreamSID()
	if sid == "" {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(Message{Event: EventClear, StreamSID: sid})
}

// Close shuts the socket down. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.ws.Close()
}
