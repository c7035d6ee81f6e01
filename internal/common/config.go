package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string

	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
	OCR      OCRConfig
	Extract  ExtractConfig
	Chain    ChainConfig
	Pipeline PipelineConfig
}

// OpenAIConfig holds settings for the primary AI provider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// GeminiConfig holds settings for the secondary AI provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// OCRConfig holds OCR-related configuration.
type OCRConfig struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit
	PSM           int // e.g., 6 is good for uniform blocks of text
}

// ExtractConfig holds the text-sufficiency thresholds. These are the main
// tunable quality knobs of the extraction stage.
type ExtractConfig struct {
	MinTextLength    int // embedded PDF text shorter than this falls through to OCR
	MinAIInputLength int // final text shorter than this is not sent to AI at all
}

// ChainConfig holds retry and validation settings for the provider chain.
type ChainConfig struct {
	MaxAttempts        int           // attempts per provider, default 3
	BaseDelay          time.Duration // first backoff delay, doubles per retry
	Tolerance          float64       // arithmetic tolerance for line totals
	MaxFallbackTextLen int           // raw-text truncation in the fallback invoice
	RatePerSecond      float64       // global provider call rate shared by workers
}

// PipelineConfig holds run-level settings.
type PipelineConfig struct {
	Workers int // 1 = sequential
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_PATH", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			PSM:           getEnvAsInt("OCR_PSM", 6),
		},
		Extract: ExtractConfig{
			MinTextLength:    getEnvAsInt("MIN_TEXT_LENGTH", 50),
			MinAIInputLength: getEnvAsInt("MIN_AI_INPUT_LENGTH", 20),
		},
		Chain: ChainConfig{
			MaxAttempts:        getEnvAsInt("PROVIDER_MAX_ATTEMPTS", 3),
			BaseDelay:          getEnvAsDuration("PROVIDER_BACKOFF_BASE", 500*time.Millisecond),
			Tolerance:          getEnvAsFloat64("LINE_TOTAL_TOLERANCE", 0.05),
			MaxFallbackTextLen: getEnvAsInt("FALLBACK_TEXT_LEN", 500),
			RatePerSecond:      getEnvAsFloat64("PROVIDER_RATE_PER_SECOND", 2),
		},
		Pipeline: PipelineConfig{
			Workers: getEnvAsInt("PIPELINE_WORKERS", 1),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
