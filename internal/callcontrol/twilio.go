// Package callcontrol redirects or terminates live Twilio calls through the
// REST API, and starts call-level recordings.
package callcontrol

import (
	"context"
	"fmt"
	"log"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

// Service wraps the Twilio REST client for in-call control operations.
type Service struct {
	client         *twilio.RestClient
	transferNumber string
}

// New builds the service. With empty credentials every operation fails with
// a descriptive error instead of panicking; intake still runs, only the
// hand-off is unavailable.
func New(accountSID, authToken, transferNumber string) *Service {
	var client *twilio.RestClient
	if accountSID != "" && authToken != "" {
		client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
	}
	return &Service{client: client, transferNumber: transferNumber}
}

// Transfer redirects the in-flight call to the configured destination by
// replacing its TwiML with a dial. callerID, when present, is shown to the
// destination.
func (s *Service) Transfer(ctx context.Context, callSID, callerID string) error {
	if s.client == nil {
		return fmt.Errorf("missing Twilio credentials: TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN required to transfer")
	}
	if callSID == "" {
		return fmt.Errorf("no call SID recorded for transfer")
	}
	if s.transferNumber == "" {
		// Nothing to dial; end the call gracefully instead.
		return s.Complete(ctx, callSID)
	}

	dial := &twiml.VoiceDial{Number: s.transferNumber}
	if callerID != "" {
		dial.CallerId = callerID
	}
	body, err := twiml.Voice([]twiml.Element{dial})
	if err != nil {
		return fmt.Errorf("failed to build transfer TwiML: %w", err)
	}

	params := &twilioApi.UpdateCallParams{}
	params.SetTwiml(body)
	call, err := s.client.Api.UpdateCall(callSID, params)
	if err != nil {
		return fmt.Errorf("failed to redirect call: %w", err)
	}
	status := ""
	if call.Status != nil {
		status = *call.Status
	}
	log.Printf("handoff_result call=%s status=%s to=%s", callSID, status, s.transferNumber)
	return nil
}

// Complete hangs the call up.
func (s *Service) Complete(ctx context.Context, callSID string) error {
	if s.client == nil {
		return fmt.Errorf("missing Twilio credentials: TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN required to end call")
	}
	if callSID == "" {
		return fmt.Errorf("no call SID recorded for hangup")
	}
	params := &twilioApi.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := s.client.Api.UpdateCall(callSID, params); err != nil {
		return fmt.Errorf("failed to complete call: %w", err)
	}
	return nil
}

// StartRecording creates a call-level recording with status callbacks.
func (s *Service) StartRecording(ctx context.Context, callSID, callbackURL string) error {
	if s.client == nil {
		return fmt.Errorf("missing Twilio credentials: TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN required to record")
	}
	params := &twilioApi.CreateCallRecordingParams{}
	params.SetRecordingStatusCallback(callbackURL)
	params.SetRecordingStatusCallbackMethod("POST")
	params.SetRecordingStatusCallbackEvent([]string{"completed"})
	params.SetRecordingChannels("mono")
	params.SetTrim("do-not-trim")
	if _, err := s.client.Api.CreateCallRecording(callSID, params); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	return nil
}
