// Package http holds the Twilio webhook handlers: the voice webhook that
// bridges an incoming call onto the media-stream WebSocket, the transfer
// fallback, and the recording status callback.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go/twiml"

	"github.com/ErikRobinson94/caseconnect/internal/config"
)

// CallRecorder starts a call-scoped recording over the Twilio REST API.
type CallRecorder interface {
	StartRecording(ctx context.Context, callSID, callbackURL string) error
}

// RecordingArchiver moves a completed recording into long-term storage.
type RecordingArchiver interface {
	Archive(recordingURL, objectKey string) error
}

type Handlers struct {
	Cfg      config.Config
	Recorder CallRecorder
	Archiver RecordingArchiver

	// Stream serves the bidirectional media WebSocket.
	Stream echo.HandlerFunc
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/twilio/voice", h.voice)
	e.POST("/twilio/transfer", h.transfer)
	e.POST("/twilio/recording-status", h.recordingStatus)
	if h.Stream != nil {
		e.GET(h.Cfg.StreamRoute, h.Stream)
	}
}

// voice answers the inbound call webhook with a <Connect><Stream> that
// bridges the caller's audio onto our WebSocket route, and optionally kicks
// off a continuous call recording.
func (h Handlers) voice(c echo.Context) error {
	params, ok := c.Get("twilioParams").(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}

	callSID := params["CallSid"]
	from := params["From"]
	c.Echo().Logger.Infof("Inbound call from %s, CallSid=%s", from, callSID)

	if h.Cfg.RecordCalls && callSID != "" && h.Recorder != nil {
		callback := h.absoluteURL(c, "/twilio/recording-status")
		// The context is pooled; only the logger may outlive the handler.
		logger := c.Echo().Logger
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.Recorder.StartRecording(ctx, callSID, callback); err != nil {
				logger.Errorf("Failed to start recording for CallSid=%s: %v", callSID, err)
			}
		}()
	}

	stream := &twiml.VoiceStream{Url: h.Cfg.StreamURL(c.Request().Host)}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	response, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

// transfer is the webhook form of the warm handoff: dial the configured
// destination, keeping the caller's number as caller id.
func (h Handlers) transfer(c echo.Context) error {
	params, ok := c.Get("twilioParams").(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}

	if h.Cfg.TransferNumber == "" {
		say := &twiml.VoiceSay{Message: "We are unable to connect you right now. Someone will call you back shortly. Goodbye."}
		hangup := &twiml.VoiceHangup{}
		response, err := twiml.Voice([]twiml.Element{say, hangup})
		if err != nil {
			return c.String(http.StatusInternalServerError, "failed to build TwiML")
		}
		c.Response().Header().Set(echo.HeaderContentType, "application/xml")
		return c.String(http.StatusOK, response)
	}

	dial := &twiml.VoiceDial{Number: h.Cfg.TransferNumber, CallerId: params["From"]}
	response, err := twiml.Voice([]twiml.Element{dial})
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

func (h Handlers) recordingStatus(c echo.Context) error {
	params, ok := c.Get("twilioParams").(map[string]string)
	if !ok {
		return c.String(http.StatusInternalServerError, "Failed to get Twilio parameters")
	}

	callSID := params["CallSid"]
	recordingSID := params["RecordingSid"]
	recordingURL := params["RecordingUrl"]
	status := params["RecordingStatus"]
	duration := params["RecordingDuration"]

	c.Echo().Logger.Infof("Recording status: SID=%s, Status=%s, Duration=%s", recordingSID, status, duration)

	switch status {
	case "completed":
		if h.Archiver == nil {
			break
		}
		objectKey := fmt.Sprintf("recordings/%s_%s_%d.wav", callSID, recordingSID, time.Now().Unix())
		logger := c.Echo().Logger
		go func() {
			if err := h.Archiver.Archive(recordingURL, objectKey); err != nil {
				logger.Errorf("Failed to archive recording %s: %v", recordingSID, err)
			} else {
				logger.Infof("Recording archived: %s", objectKey)
			}
		}()
	case "failed", "absent":
		c.Echo().Logger.Errorf("Recording failed or absent: SID=%s, Status=%s", recordingSID, status)
	}

	return c.String(http.StatusOK, "OK")
}

// absoluteURL builds a public callback URL. Priority: configured BASE_URL,
// then X-Forwarded-* headers, then the request host.
func (h Handlers) absoluteURL(c echo.Context, path string) string {
	baseURL := h.Cfg.BaseURL
	if baseURL == "" {
		proto := c.Request().Header.Get("X-Forwarded-Proto")
		host := c.Request().Header.Get("X-Forwarded-Host")
		if proto != "" && host != "" {
			baseURL = fmt.Sprintf("%s://%s", proto, host)
		}
	}
	if baseURL == "" {
		host := c.Request().Host
		proto := "https"
		if strings.HasPrefix(host, "localhost:") || strings.HasPrefix(host, "127.0.0.1:") {
			proto = "http"
		}
		baseURL = fmt.Sprintf("%s://%s", proto, host)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(baseURL, "/") + path
}
