package config

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	PIN        PINConfig
	Face       FaceConfig
	Voice      VoiceConfig
	Embedding  EmbeddingConfig
	Transcribe TranscribeConfig
	Web        WebConfig
	Debug      DebugConfig
}

type PINConfig struct {
	Digest string // hex-encoded SHA-256 digest of the PIN
}

type FaceConfig struct {
	ReferenceImagePath string
	Threshold          float64 // maximum embedding distance for a match
	MaxAttempts        int
	RetryDelaySeconds  float64
}

type VoiceConfig struct {
	ExpectedPhrase       string // plain expected passphrase
	ExpectedDigest       string // hex SHA-256 of the passphrase (legacy form)
	MaxAttempts          int
	ListenTimeoutSeconds float64
	MicIndex             int // -1 means system default
}

type EmbeddingConfig struct {
	URL      string // face embedding service, defaults to http://localhost:8000
	Distance string // "cosine" (default) or "euclidean"
}

type TranscribeConfig struct {
	Provider     string // "openai" (default) or "gemini"
	OpenAIToken  string
	GeminiAPIKey string
}

type WebConfig struct {
	Port          int
	Host          string
	SessionSecret string
	MaxImageBytes int64 // reject data-URI payloads larger than this before decode
}

type DebugConfig struct {
	CaptureDir string // directory for transient capture artifacts, empty disables
}

// policyDefaults mirrors the embedded policy.yaml.
type policyDefaults struct {
	Face struct {
		Threshold         float64 `yaml:"threshold"`
		MaxAttempts       int     `yaml:"max_attempts"`
		RetryDelaySeconds float64 `yaml:"retry_delay_seconds"`
	} `yaml:"face"`
	Voice struct {
		MaxAttempts          int     `yaml:"max_attempts"`
		ListenTimeoutSeconds float64 `yaml:"listen_timeout_seconds"`
	} `yaml:"voice"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// DigestPIN returns the hex-encoded SHA-256 digest of a PIN string.
func DigestPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

func Load() *Config {
	var policy policyDefaults
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// Embedded file, so this should never happen in practice.
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	// AUTH_PIN_DIGEST wins over AUTH_PIN. Deriving the digest from a plain
	// PIN keeps local setups simple, but the raw PIN never leaves this scope.
	pinDigest := os.Getenv("AUTH_PIN_DIGEST")
	if pinDigest == "" {
		pinDigest = DigestPIN(envString("AUTH_PIN", "7648"))
	}

	micIndex := -1
	if s := os.Getenv("MIC_INDEX"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			micIndex = n
		} else {
			log.Printf("invalid MIC_INDEX %q, falling back to system default", s)
		}
	}

	cfg := &Config{
		PIN: PINConfig{
			Digest: pinDigest,
		},
		Face: FaceConfig{
			ReferenceImagePath: os.Getenv("REFERENCE_IMAGE_PATH"),
			Threshold:          envFloat("FACE_MATCH_THRESHOLD", policy.Face.Threshold),
			MaxAttempts:        envInt("FACE_MAX_ATTEMPTS", policy.Face.MaxAttempts),
			RetryDelaySeconds:  envFloat("FACE_RETRY_DELAY", policy.Face.RetryDelaySeconds),
		},
		Voice: VoiceConfig{
			ExpectedPhrase:       envString("AUTH_VOICE_PHRASE", "HELLO"),
			ExpectedDigest:       os.Getenv("AUTH_VOICE_DIGEST"),
			MaxAttempts:          envInt("VOICE_MAX_ATTEMPTS", policy.Voice.MaxAttempts),
			ListenTimeoutSeconds: envFloat("VOICE_LISTEN_TIMEOUT", policy.Voice.ListenTimeoutSeconds),
			MicIndex:             micIndex,
		},
		Embedding: EmbeddingConfig{
			URL:      os.Getenv("EMBEDDING_URL"),
			Distance: envString("EMBEDDING_DISTANCE", "cosine"),
		},
		Transcribe: TranscribeConfig{
			Provider:     envString("TRANSCRIBER", "openai"),
			OpenAIToken:  os.Getenv("OPENAI_TOKEN"),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Web: WebConfig{
			Port:          envInt("WEB_PORT", 8080),
			Host:          envString("WEB_HOST", "0.0.0.0"),
			SessionSecret: os.Getenv("WEB_SESSION_SECRET"),
			MaxImageBytes: int64(envInt("MAX_IMAGE_MB", 10)) * 1024 * 1024,
		},
		Debug: DebugConfig{
			CaptureDir: os.Getenv("DEBUG_CAPTURE_DIR"),
		},
	}

	if cfg.Face.Threshold <= 0 || cfg.Face.Threshold > 1 {
		log.Printf("face threshold %.2f out of (0,1], using default %.2f", cfg.Face.Threshold, policy.Face.Threshold)
		cfg.Face.Threshold = policy.Face.Threshold
	}

	if cfg.Face.ReferenceImagePath == "" {
		log.Printf("WARNING: REFERENCE_IMAGE_PATH is not set; face verification cannot succeed until it is configured")
	} else if _, err := os.Stat(cfg.Face.ReferenceImagePath); err != nil {
		log.Printf("WARNING: reference image not found at %s: %v", cfg.Face.ReferenceImagePath, err)
	}

	return cfg
}
