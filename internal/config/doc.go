// Package config handles configuration loading, saving, and schema definition.
package config

// Config is the top-level dealerbot configuration.
// Uses json tags in camelCase to match the JSON config file format.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Twilio    TwilioConfig    `json:"twilio"`
	LLM       LLMConfig       `json:"llm"`
	Agent     AgentConfig     `json:"agent"`
	Worker    WorkerConfig    `json:"worker"`
	Queue     QueueConfig     `json:"queue"`
	Session   SessionConfig   `json:"session"`
	Financing FinancingConfig `json:"financing"`
	Auth      AuthConfig      `json:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	PublicURL string `json:"publicUrl,omitempty"` // base URL Twilio signs webhooks against
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	URL string `json:"url,omitempty"` // pgx connection string
}

// RedisConfig holds optional Redis settings. An empty Addr keeps the
// dedup ledger in process memory.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// TwilioConfig holds WhatsApp delivery settings.
type TwilioConfig struct {
	AccountSID string `json:"accountSid,omitempty"`
	AuthToken  string `json:"authToken,omitempty"`
	FromNumber string `json:"fromNumber,omitempty"` // e.g. "+14155238886"
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	APIKey         string  `json:"apiKey,omitempty"`
	BaseURL        string  `json:"baseUrl,omitempty"`
	Model          string  `json:"model,omitempty"`
	EmbeddingModel string  `json:"embeddingModel,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	MaxTokens      int     `json:"maxTokens,omitempty"`
}

// AgentConfig holds agent behavior settings.
type AgentConfig struct {
	MaxIterations int `json:"maxIterations,omitempty"` // tool rounds per message
	HistoryWindow int `json:"historyWindow,omitempty"` // turns replayed to the model
}

// WorkerConfig holds message worker settings.
type WorkerConfig struct {
	PollIntervalSeconds int `json:"pollIntervalSeconds,omitempty"`
	MaxAttempts         int `json:"maxAttempts,omitempty"`
	AgentTimeoutSeconds int `json:"agentTimeoutSeconds,omitempty"`
	DeliveryRetries     int `json:"deliveryRetries,omitempty"`
}

// QueueConfig holds inbound queue settings.
type QueueConfig struct {
	Capacity int `json:"capacity,omitempty"`
}

// SessionConfig holds conversation store settings.
type SessionConfig struct {
	MaxTurns       int `json:"maxTurns,omitempty"`       // transcript cap per conversation
	IdleTTLMinutes int `json:"idleTtlMinutes,omitempty"` // eviction of inactive conversations
}

// FinancingConfig holds financing calculator settings.
type FinancingConfig struct {
	AnnualRate     float64 `json:"annualRate,omitempty"`
	DownPaymentPct float64 `json:"downPaymentPct,omitempty"`
}

// AuthConfig holds admin API auth settings.
type AuthConfig struct {
	JWTSecret     string `json:"jwtSecret,omitempty"`
	TokenTTLHours int    `json:"tokenTtlHours,omitempty"`
	AdminUsername string `json:"adminUsername,omitempty"`
	AdminPassword string `json:"adminPassword,omitempty"` // bcrypt hash or plaintext
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.3,
			MaxTokens:      1024,
		},
		Agent: AgentConfig{
			MaxIterations: 8,
			HistoryWindow: 20,
		},
		Worker: WorkerConfig{
			PollIntervalSeconds: 2,
			MaxAttempts:         3,
			AgentTimeoutSeconds: 90,
			DeliveryRetries:     3,
		},
		Queue: QueueConfig{
			Capacity: 100,
		},
		Session: SessionConfig{
			MaxTurns:       200,
			IdleTTLMinutes: 24 * 60,
		},
		Financing: FinancingConfig{
			AnnualRate:     0.10,
			DownPaymentPct: 0.10,
		},
		Auth: AuthConfig{
			TokenTTLHours: 24,
			AdminUsername: "admin",
		},
	}
}
