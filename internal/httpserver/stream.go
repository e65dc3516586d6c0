package httpserver

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ErikRobinson94/caseconnect/internal/agentsession"
	"github.com/ErikRobinson94/caseconnect/internal/callcontrol"
	"github.com/ErikRobinson94/caseconnect/internal/config"
	"github.com/ErikRobinson94/caseconnect/internal/intake"
	"github.com/ErikRobinson94/caseconnect/internal/relay"
	"github.com/ErikRobinson94/caseconnect/internal/telephony"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Twilio's media stream client sends no Origin header.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamHandler serves one call per connection: upgrade the Twilio media
// stream, dial the voice agent, and run the relay until either leg ends.
func streamHandler(cfg config.Config, calls *callcontrol.Service, onFinalize relay.FinalizeFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Printf("stream_upgrade_failed err=%v", err)
			return nil
		}
		tw := telephony.NewConn(ws)

		agent, err := agentsession.Dial(cfg.AgentURL, cfg.DeepgramKey)
		if err != nil {
			log.Printf("agent_dial_failed err=%v", err)
			_ = tw.Close()
			return nil
		}

		sess, err := relay.Open(tw, agent, calls, sessionConfig(cfg), onFinalize)
		if err != nil {
			log.Printf("session_open_failed err=%v", err)
			_ = agent.Close()
			_ = tw.Close()
			return nil
		}
		sess.Wait()
		sess.Close()
		return nil
	}
}

func sessionConfig(cfg config.Config) relay.Config {
	return relay.Config{
		BurstFrames:        cfg.BurstFrames,
		PrerollMaxFrames:   cfg.PrerollMaxChunks,
		AudioMeterInterval: cfg.AudioMeter,
		Playback: relay.PlaybackConfig{
			BargeEnabled:  cfg.BargeEnabled,
			MuteWindow:    cfg.BargeMute,
			ClearThrottle: cfg.ClearThrottle,
			PlaybackMask:  cfg.PlaybackMask,
		},
		Settings: buildSettings(cfg),
		Intake: intake.ControllerConfig{
			Machine: intake.MachineConfig{
				RepromptDelay:  cfg.RepromptDelay,
				HardNudgeDelay: cfg.HardNudgeDelay,
				MaxReprompts:   cfg.MaxReprompts,
			},
			ExhaustPolicy: cfg.ExhaustPolicy,
		},
		ShadowLogMode: cfg.ShadowLogMode,
	}
}

// buildSettings assembles the one-time agent session configuration: mulaw
// 8kHz both ways to match the telephony leg, plus greeting and prompt.
func buildSettings(cfg config.Config) agentsession.Settings {
	format := agentsession.AudioFormat{Encoding: "mulaw", SampleRate: 8000}
	out := format
	out.Container = "none"

	greeting := cfg.AgentGreeting
	if greeting == "" {
		greeting = fmt.Sprintf(
			"Hi, this is %s with %s. I can take down a few details about your situation. First, are you a new or existing client?",
			cfg.AgentName, cfg.FirmName)
	}

	prompt := basePrompt(cfg.AgentName, cfg.FirmName)
	if cfg.AgentPrompt != "" && !cfg.EnvPromptOff {
		prompt = agentsession.SanitizePrompt(cfg.AgentPrompt)
	}

	return agentsession.Settings{
		Type:  "Settings",
		Audio: agentsession.AudioSettings{Input: format, Output: out},
		Agent: agentsession.AgentSettings{
			Language: "en",
			Greeting: greeting,
			Listen: agentsession.ListenSettings{
				Provider: agentsession.ListenProvider{
					Type: "deepgram", Model: cfg.STTModel, SmartFormat: true,
				},
			},
			Think: agentsession.ThinkSettings{
				Provider: agentsession.ThinkProvider{
					Type: "open_ai", Model: cfg.ThinkModel, Temperature: 0.3,
				},
				Prompt: prompt,
			},
			Speak: agentsession.SpeakSettings{
				Provider: agentsession.SpeakProvider{Type: "deepgram", Model: cfg.TTSVoice},
			},
		},
	}
}

func basePrompt(agentName, firmName string) string {
	return fmt.Sprintf(
		"You are %s, a phone intake assistant for %s. Speak in one short sentence at a time. "+
			"Ask exactly the question you are given and wait for the answer. "+
			"Never give legal advice, quote fees, or promise outcomes.",
		agentName, firmName)
}
