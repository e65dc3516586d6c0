package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// HTTP surface.
	HTTPAddress  string
	BaseURL      string
	StreamRoute  string
	StreamDomain string

	// Twilio.
	TwilioAccountSID string
	TwilioAuthToken  string
	TransferNumber   string
	RecordCalls      bool

	// Deepgram voice agent.
	AgentURL      string
	DeepgramKey   string
	STTModel      string
	TTSVoice      string
	ThinkModel    string
	FirmName      string
	AgentName     string
	AgentGreeting string
	AgentPrompt   string
	EnvPromptOff  bool

	// OpenAI post-call normalization.
	OpenAIKey string
	LLMModel  string

	// Supabase recording storage.
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// Audio relay tuning.
	BurstFrames      int
	PrerollMaxChunks int
	BargeEnabled     bool
	BargeMute        time.Duration
	ClearThrottle    time.Duration
	PlaybackMask     time.Duration
	AudioMeter       time.Duration

	// Dialog timers.
	RepromptDelay  time.Duration
	HardNudgeDelay time.Duration
	MaxReprompts   int
	ExhaustPolicy  string
	ShadowLogMode  string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}

	dgKey := os.Getenv("DEEPGRAM_API_KEY")
	if dgKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - the agent leg will not connect")
	}

	sid := os.Getenv("TWILIO_ACCOUNT_SID")
	token := os.Getenv("TWILIO_AUTH_TOKEN")
	if sid == "" || token == "" {
		log.Println("Warning: TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN not set - transfer and recording are disabled")
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - post-call normalization falls back to realtime fields only")
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: SUPABASE_URL / SUPABASE_SERVICE_ROLE_KEY not set - recordings are not archived")
	}

	policy := strings.ToLower(os.Getenv("EXHAUST_POLICY"))
	switch policy {
	case "transfer", "hangup":
	case "":
		policy = "transfer"
	default:
		log.Printf("config: unknown EXHAUST_POLICY %q, using transfer", policy)
		policy = "transfer"
	}

	shadowMode := strings.ToLower(os.Getenv("SHADOW_LOG_MODE"))
	switch shadowMode {
	case "off", "fields", "summary", "verbose":
	case "":
		shadowMode = "summary"
	default:
		log.Printf("config: unknown SHADOW_LOG_MODE %q, using summary", shadowMode)
		shadowMode = "summary"
	}

	cfg := Config{
		HTTPAddress:  addr,
		BaseURL:      os.Getenv("BASE_URL"),
		StreamRoute:  envStr("AUDIO_STREAM_ROUTE", "/audio-stream"),
		StreamDomain: os.Getenv("AUDIO_STREAM_DOMAIN"),

		TwilioAccountSID: sid,
		TwilioAuthToken:  token,
		TransferNumber:   os.Getenv("TRANSFER_NUMBER"),
		RecordCalls:      envBool("RECORD_CALLS", false),

		AgentURL:      envStr("DG_AGENT_URL", "wss://agent.deepgram.com/v1/agent/converse"),
		DeepgramKey:   dgKey,
		STTModel:      envStr("DG_STT_MODEL", "nova-2"),
		TTSVoice:      envStr("DG_TTS_VOICE", "aura-2-thalia-en"),
		ThinkModel:    envStr("DG_THINK_MODEL", "gpt-4o-mini"),
		FirmName:      envStr("FIRM_NAME", "the firm"),
		AgentName:     envStr("AGENT_NAME", "Alexis"),
		AgentGreeting: os.Getenv("AGENT_GREETING"),
		AgentPrompt:   os.Getenv("AGENT_INSTRUCTIONS"),
		EnvPromptOff:  envBool("DISABLE_ENV_INSTRUCTIONS", false),

		OpenAIKey: openAIKey,
		LLMModel:  envStr("LLM_MODEL", "gpt-4o-mini"),

		SupabaseURL:    supabaseURL,
		SupabaseKey:    supabaseKey,
		SupabaseBucket: envStr("SUPABASE_RECORDINGS_BUCKET", "call-recordings"),

		BurstFrames:      envInt("BUFFER_FRAMES", 4),
		PrerollMaxChunks: envInt("PREBUF_MAX_CHUNKS", 6),
		BargeEnabled:     envBool("BARGE_ENABLE", true),
		BargeMute:        envMillis("BARGE_MUTE_MS", 400),
		ClearThrottle:    envMillis("CLEAR_THROTTLE_MS", 600),
		PlaybackMask:     envMillis("PLAYBACK_MASK_MS", 150),
		AudioMeter:       envMillis("AGENT_AUDIO_METER_MS", 2000),

		RepromptDelay:  envMillis("REPROMPT_MS", 6000),
		HardNudgeDelay: envMillis("HARD_NUDGE_MS", 0),
		MaxReprompts:   envInt("MAX_REPROMPTS_PER_STATE", 1),
		ExhaustPolicy:  policy,
		ShadowLogMode:  shadowMode,
	}

	log.Printf("config: HTTP_ADDRESS=%s stream_route=%s barge=%v burst_frames=%d preroll=%d exhaust=%s",
		cfg.HTTPAddress, cfg.StreamRoute, cfg.BargeEnabled, cfg.BurstFrames, cfg.PrerollMaxChunks, cfg.ExhaustPolicy)
	return cfg
}

// StreamURL builds the absolute wss URL Twilio should connect its media
// stream to. The request host is used unless AUDIO_STREAM_DOMAIN overrides it.
func (c Config) StreamURL(requestHost string) string {
	host := c.StreamDomain
	if host == "" {
		host = requestHost
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "wss://")
	host = strings.TrimSuffix(host, "/")
	return fmt.Sprintf("wss://%s%s", host, c.StreamRoute)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	log.Printf("config: invalid %s=%q, using %v", key, v, def)
	return def
}

func envMillis(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Millisecond
}
