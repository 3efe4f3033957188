package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Detector  DetectorConfig
	Embedding EmbeddingConfig
	PhotoLib  PhotoLibConfig
	Database  DatabaseConfig
	Policy    PolicyConfig
}

type DetectorConfig struct {
	URL string // defaults to http://localhost:8500
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512
}

// PhotoLibConfig points at the photo library bridge, the HTTP agent that
// proxies the device photo library (listing, hiding, deleting assets).
type PhotoLibConfig struct {
	URL   string
	Token string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty keeps runs in memory
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// PolicyConfig holds the matching policy constants loaded from the embedded
// policy.yaml. The relative effect of the boosts (higher quality/confidence
// lowers the effective bar) must be preserved when tuning.
type PolicyConfig struct {
	Match  MatchPolicyConfig  `yaml:"match"`
	Dedup  DedupPolicyConfig  `yaml:"dedup"`
	Detect DetectPolicyConfig `yaml:"detect"`
}

type MatchPolicyConfig struct {
	BaseThreshold       float64 `yaml:"base_threshold"`
	StrictThreshold     float64 `yaml:"strict_threshold"`
	HighQualityBoost    float64 `yaml:"high_quality_boost"`
	MediumQualityBoost  float64 `yaml:"medium_quality_boost"`
	ConfidenceBoost     float64 `yaml:"confidence_boost"`
	ConfidenceFloor     float64 `yaml:"confidence_floor"`
	FallbackTolerancePx float64 `yaml:"fallback_tolerance_px"`
}

type DedupPolicyConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	FallbackTolerancePx float64 `yaml:"fallback_tolerance_px"`
}

type DetectPolicyConfig struct {
	MinConfidence      float64 `yaml:"min_confidence"`
	FallbackConfidence float64 `yaml:"fallback_confidence"`
	WholeImageFallback bool    `yaml:"whole_image_fallback"`
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

func Load() *Config {
	var policy PolicyConfig
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL: os.Getenv("DETECTOR_URL"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		PhotoLib: PhotoLibConfig{
			URL:   os.Getenv("PHOTOLIB_URL"),
			Token: os.Getenv("PHOTOLIB_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Policy: policy,
	}
}
