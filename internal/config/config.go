package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Storage
	DataDir string

	// Audio format
	SampleRate int
	Channels   int

	// Segmentation
	ChunkSeconds int
	OverlapMS    int

	// ASR backend: "vosk" or "deepgram"
	ASRBackend string

	// Vosk settings
	VoskModelPath string

	// Deepgram settings
	DeepgramAPIKey     string
	DeepgramModel      string
	DeepgramLanguage   string
	DeepgramDiarize    bool
	DeepgramPunctuate  bool
	DeepgramUtterances bool

	// Gemini settings
	GenAIAPIKey string
	GenAIModel  string

	// Processing
	Workers           int
	QueueDepth        int
	MaxParallelASR    int
	ASRTimeoutSeconds int

	// Transcript merge tuning
	MergeOverlapThreshold    float64
	MergeSimilarityThreshold float64
	MergeLookback            int

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file found, using environment variables only")
	}

	cfg := &Config{
		// Storage
		DataDir: getEnvOrDefault("DATA_DIR", "./data"),

		// Audio format
		SampleRate: getIntEnvOrDefault("SAMPLE_RATE", 16000),
		Channels:   getIntEnvOrDefault("CHANNELS", 1),

		// Segmentation
		ChunkSeconds: getIntEnvOrDefault("CHUNK_SECONDS", 60),
		OverlapMS:    getIntEnvOrDefault("CHUNK_OVERLAP_MS", 500),

		// ASR backend
		ASRBackend: getEnvOrDefault("ASR_BACKEND", "vosk"),

		// Vosk
		VoskModelPath: getEnvOrDefault("VOSK_MODEL_PATH", "./models/vosk/en"),

		// Deepgram
		DeepgramAPIKey:     os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramModel:      getEnvOrDefault("DEEPGRAM_MODEL", "nova-2"),
		DeepgramLanguage:   getEnvOrDefault("DEEPGRAM_LANGUAGE", "en"),
		DeepgramDiarize:    getBoolEnvOrDefault("DEEPGRAM_DIARIZE", true),
		DeepgramPunctuate:  getBoolEnvOrDefault("DEEPGRAM_PUNCTUATE", true),
		DeepgramUtterances: getBoolEnvOrDefault("DEEPGRAM_UTTERANCES", true),

		// Gemini
		GenAIAPIKey: os.Getenv("GENAI_API_KEY"),
		GenAIModel:  getEnvOrDefault("GENAI_MODEL", "gemini-2.5-flash"),

		// Processing
		Workers:           getIntEnvOrDefault("WORKERS", 2),
		QueueDepth:        getIntEnvOrDefault("QUEUE_DEPTH", 256),
		MaxParallelASR:    getIntEnvOrDefault("MAX_PARALLEL_ASR", 4),
		ASRTimeoutSeconds: getIntEnvOrDefault("ASR_TIMEOUT_SECONDS", 120),

		// Transcript merge tuning
		MergeOverlapThreshold:    getFloatEnvOrDefault("MERGE_OVERLAP_THRESHOLD", 0.5),
		MergeSimilarityThreshold: getFloatEnvOrDefault("MERGE_SIMILARITY_THRESHOLD", 0.7),
		MergeLookback:            getIntEnvOrDefault("MERGE_LOOKBACK", 5),

		// Logging
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.ASRBackend != "vosk" && c.ASRBackend != "deepgram" {
		return fmt.Errorf("ASR_BACKEND must be 'vosk' or 'deepgram'")
	}

	if c.ASRBackend == "deepgram" && c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required when using deepgram backend")
	}

	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GENAI_API_KEY is required")
	}

	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive")
	}

	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("CHANNELS must be 1 or 2")
	}

	if c.ChunkSeconds <= 0 {
		return fmt.Errorf("CHUNK_SECONDS must be positive")
	}

	if c.OverlapMS < 0 || c.OverlapMS >= c.ChunkSeconds*1000 {
		return fmt.Errorf("CHUNK_OVERLAP_MS must be non-negative and shorter than a chunk")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
