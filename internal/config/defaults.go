package config

const (
	defaultLogDir         = "~/.local/share/notewriter/logs"
	defaultStateDir       = "~/.local/share/notewriter/state"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultLLMBaseURL     = "https://api.anthropic.com/v1/messages"
	defaultLLMAPIVersion  = "2023-06-01"
	defaultLLMModel       = "claude-3-7-sonnet-20250219"
	defaultLLMTimeout     = 60
	defaultLLMTemperature = 0.7
	defaultVisionTemp     = 0.0
	defaultLLMMaxTokens   = 1024
	defaultTagRetries     = 3
	defaultBatchWorkers   = 4
	defaultDescribeImages = true
	defaultMisleadingTags = true
	defaultNtfyTimeout    = 10
	projectConfigName     = "notewriter.toml"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			APIVersion:     defaultLLMAPIVersion,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
			Temperature:    defaultLLMTemperature,
			MaxTokens:      defaultLLMMaxTokens,

			VisionTemperature: defaultVisionTemp,
		},
		MisleadingTags: MisleadingTags{
			Enabled: defaultMisleadingTags,
			Retries: defaultTagRetries,
		},
		Batch: Batch{
			Workers:        defaultBatchWorkers,
			DescribeImages: defaultDescribeImages,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
