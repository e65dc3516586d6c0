package agentsession

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is the Deepgram Voice Agent converse endpoint.
const DefaultURL = "wss://agent.deepgram.com/v1/agent/converse"

// maxPromptLen bounds the system prompt sent in settings; oversized prompts
// destabilize the session handshake.
const maxPromptLen = 380

const fallbackPrompt = "You are the intake specialist. Determine existing client vs accident. " +
	"If existing: ask full name, best phone, and attorney; then say you will transfer. " +
	"If accident: collect full name, phone, email, what happened, when, and city/state; " +
	"confirm all; then say you will transfer. Be warm, concise, and stop speaking if the caller talks."

// Client is the agent-session WebSocket connection for one call.
type Client struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Dial connects to the agent endpoint, authenticating through the token
// subprotocol pair.
func Dial(url, apiKey string) (*Client, error) {
	if url == "" {
		url = DefaultURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("agent api key is empty")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{"token", apiKey},
	}
	ws, resp, err := dialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("agent dial failed: status=%d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("agent dial failed: %w", err)
	}
	log.Printf("agent_open url=%s", url)
	return &Client{ws: ws}, nil
}

// SendSettings transmits the one-time session configuration.
func (c *Client) SendSettings(s Settings) error {
	s.Type = "Settings"
	return c.writeJSON(s)
}

// SendKeepAlive sends the periodic heartbeat.
func (c *Client) SendKeepAlive() error {
	return c.writeJSON(map[string]string{"type": "KeepAlive"})
}

// SendAudio streams one binary audio chunk to the agent.
func (c *Client) SendAudio(chunk []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, chunk)
}

// InjectMessage asks the agent to speak the given line verbatim.
func (c *Client) InjectMessage(text string) error {
	return c.writeJSON(map[string]string{
		"type":    "InjectAgentMessage",
		"message": text,
	})
}

// ReadEvent returns the next inbound message: a decoded JSON event, or raw
// synthesized audio bytes. A malformed JSON frame yields (nil, nil, nil)
// and is skipped by the caller.
func (c *Client) ReadEvent() (*Event, []byte, error) {
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, nil, err
	}
	if msgType == websocket.BinaryMessage {
		return nil, data, nil
	}
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Printf("agent_parse_err err=%v", err)
		return nil, nil, nil
	}
	return &evt, nil, nil
}

// Close shuts the socket down. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// SanitizePrompt collapses a prompt to printable ASCII on one line and
// bounds its length. A prompt that collapses to almost nothing falls back
// to a canned instruction set rather than sending garbage to the peer.
func SanitizePrompt(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	s := strings.Join(strings.Fields(b.String()), " ")
	if len(s) > maxPromptLen {
		s = s[:maxPromptLen]
	}
	if len(s) < 40 {
		return fallbackPrompt
	}
	return s
}
