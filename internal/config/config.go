package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingConfig is wrapped by Validate for every required key that is unset.
var ErrMissingConfig = errors.New("missing required configuration")

// Kind selects which agent a process runs; each has its own required keys.
type Kind string

const (
	KindStructure Kind = "structure"
	KindElection  Kind = "election"
)

// Config holds all configuration for an agent process. It is built once at
// startup and passed by reference to the components that need it.
type Config struct {
	Port      int
	Name      string
	Version   string
	LogLevel  string
	Boltz     BoltzConfig
	Extractor ExtractorConfig
	Artifacts ArtifactConfig
	Sessions  SessionConfig
	Election  ElectionConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
}

type BoltzConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// ExtractorConfig picks how free text becomes a structured candidate:
// "peer" forwards to another agent at PeerAddress, "gemini" calls Gemini directly.
type ExtractorConfig struct {
	Backend      string
	PeerAddress  string
	ReplyAddress string
	GeminiAPIKey string
	GeminiModel  string
}

type ArtifactConfig struct {
	Backend      string // gist or s3
	GitHubToken  string
	GistEndpoint string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PathStyle  bool
	S3URLExpiry  time.Duration
}

type SessionConfig struct {
	Backend       string // memory or redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

type ElectionConfig struct {
	DBPath   string
	DataPath string // optional CSV replacing the embedded sample
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type AuthConfig struct {
	// Comma-separated keys accepted on /chat and /structured-output. Empty disables auth.
	APIKeys []string
}

// defaultNames names each agent when AGENT_NAME is unset.
var defaultNames = map[Kind]string{
	KindStructure: "boltz2-agent",
	KindElection:  "election-agent",
}

// Load reads configuration for the given agent from environment variables
// with sensible defaults.
func Load(kind Kind) *Config {
	name, ok := defaultNames[kind]
	if !ok {
		name = string(kind) + "-agent"
	}
	return &Config{
		Port:     envInt("AGENT_PORT", 8000),
		Name:     envStr("AGENT_NAME", name),
		Version:  envStr("AGENT_VERSION", "0.1.0"),
		LogLevel: envStr("LOG_LEVEL", "info"),
		Boltz: BoltzConfig{
			APIKey:   envStr("NVCF_API_KEY", ""),
			Endpoint: envStr("BOLTZ_URL", "https://health.api.nvidia.com/v1/biology/mit/boltz2/predict"),
			Timeout:  envDuration("BOLTZ_TIMEOUT", 60*time.Second),
		},
		Extractor: ExtractorConfig{
			Backend:      envStr("EXTRACTOR_BACKEND", "peer"),
			PeerAddress:  envStr("AI_AGENT_ADDRESS", ""),
			ReplyAddress: envStr("AGENT_PUBLIC_URL", "http://localhost:8000"),
			GeminiAPIKey: envStr("GEMINI_API_KEY", ""),
			GeminiModel:  envStr("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Artifacts: ArtifactConfig{
			Backend:      envStr("ARTIFACT_BACKEND", "gist"),
			GitHubToken:  envStr("GITHUB_PAT", ""),
			GistEndpoint: envStr("GIST_URL", "https://api.github.com/gists"),
			S3Bucket:     envStr("ARTIFACT_S3_BUCKET", ""),
			S3Region:     envStr("ARTIFACT_S3_REGION", "us-east-1"),
			S3Endpoint:   envStr("ARTIFACT_S3_ENDPOINT", ""),
			S3PathStyle:  envBool("ARTIFACT_S3_PATH_STYLE", false),
			S3URLExpiry:  envDuration("ARTIFACT_S3_URL_EXPIRY", 7*24*time.Hour),
		},
		Sessions: SessionConfig{
			Backend:       envStr("SESSION_BACKEND", "memory"),
			RedisAddr:     envStr("REDIS_ADDR", "localhost:6379"),
			RedisPassword: envStr("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			TTL:           envDuration("SESSION_TTL", 24*time.Hour),
		},
		Election: ElectionConfig{
			DBPath:   envStr("ELECTION_DB_PATH", "election.db"),
			DataPath: envStr("ELECTION_DATA_PATH", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "boltzchat-agent"),
		},
		Auth: AuthConfig{
			APIKeys: envList("AGENT_API_KEYS"),
		},
	}
}

// Validate reports every required key that is missing for the given agent.
// Callers treat a non-nil result as fatal.
func (c *Config) Validate(kind Kind) error {
	var missing []string

	if kind == KindStructure && c.Boltz.APIKey == "" {
		missing = append(missing, "NVCF_API_KEY")
	}

	switch c.Extractor.Backend {
	case "peer":
		if c.Extractor.PeerAddress == "" {
			missing = append(missing, "AI_AGENT_ADDRESS")
		}
	case "gemini":
		if c.Extractor.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown EXTRACTOR_BACKEND %q", c.Extractor.Backend)
	}

	if kind == KindStructure {
		switch c.Artifacts.Backend {
		case "gist":
			// A missing token is tolerated: gist uploads then fail per turn.
		case "s3":
			if c.Artifacts.S3Bucket == "" {
				missing = append(missing, "ARTIFACT_S3_BUCKET")
			}
		default:
			return fmt.Errorf("unknown ARTIFACT_BACKEND %q", c.Artifacts.Backend)
		}
	}

	switch c.Sessions.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.Sessions.Backend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
