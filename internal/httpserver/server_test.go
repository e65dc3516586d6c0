package httpserver

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ErikRobinson94/caseconnect/internal/config"
)

func testServer(cfg config.Config) *httptest.Server {
	srv := New(cfg, Deps{})
	return httptest.NewServer(srv.Router())
}

func postForm(t *testing.T, rawURL string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.Post(rawURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var b strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		b.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return b.String()
}

func TestServer_Healthz(t *testing.T) {
	ts := testServer(config.Config{StreamRoute: "/audio-stream"})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "ok" {
		t.Fatalf("expected ok body, got %q", body)
	}
}

func TestServer_VoiceWebhookBridgesToStream(t *testing.T) {
	// Empty auth token: signature verification is skipped in tests.
	ts := testServer(config.Config{StreamRoute: "/audio-stream"})
	defer ts.Close()

	resp := postForm(t, ts.URL+"/twilio/voice", url.Values{
		"CallSid": {"CA123"},
		"From":    {"+15551234567"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "<Connect>") || !strings.Contains(body, "<Stream") {
		t.Fatalf("expected connect/stream twiml, got %s", body)
	}
	if !strings.Contains(body, "wss://") || !strings.Contains(body, "/audio-stream") {
		t.Fatalf("expected wss stream url, got %s", body)
	}
}

func TestServer_TransferWebhook(t *testing.T) {
	ts := testServer(config.Config{
		StreamRoute:    "/audio-stream",
		TransferNumber: "+16025550000",
	})
	defer ts.Close()

	resp := postForm(t, ts.URL+"/twilio/transfer", url.Values{"From": {"+15551234567"}})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "<Dial") || !strings.Contains(body, "+16025550000") {
		t.Fatalf("expected dial twiml, got %s", body)
	}
}

func TestServer_TransferWebhookWithoutDestination(t *testing.T) {
	ts := testServer(config.Config{StreamRoute: "/audio-stream"})
	defer ts.Close()

	resp := postForm(t, ts.URL+"/twilio/transfer", url.Values{"From": {"+15551234567"}})
	body := readBody(t, resp)
	if !strings.Contains(body, "<Hangup") {
		t.Fatalf("expected apology and hangup, got %s", body)
	}
}

func TestServer_RecordingStatusIgnoresNonCompleted(t *testing.T) {
	ts := testServer(config.Config{StreamRoute: "/audio-stream"})
	defer ts.Close()

	resp := postForm(t, ts.URL+"/twilio/recording-status", url.Values{
		"RecordingSid":    {"RE1"},
		"RecordingStatus": {"in-progress"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
