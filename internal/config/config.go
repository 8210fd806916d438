package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the persistent engine configuration.
//
// Every numeric threshold used by the correlators and the adaptive
// controller lives here rather than in code. The defaults are calibrated
// against a single small dataset and should be recalibrated against a
// larger labeled corpus before operational use.
type Config struct {
	// Temporal correlation
	Temporal TemporalConfig `json:"temporal"`

	// Spatial correlation
	Spatial SpatialConfig `json:"spatial"`

	// Content value scoring
	Content ContentConfig `json:"content"`

	// Social graph analysis
	Social SocialConfig `json:"social"`

	// Adaptive cycle (tiering, vocabulary mining, false-positive review)
	Adaptive AdaptiveConfig `json:"adaptive"`

	// Cycle scheduling
	CycleIntervalMinutes int `json:"cycle_interval_minutes"`

	// Domain keywords seed the vocabulary on first run
	DomainKeywords []string `json:"domain_keywords"`
}

// TemporalConfig holds thresholds for volume-anomaly correlation.
type TemporalConfig struct {
	WindowHours     int     `json:"window_hours"`
	BaselineDays    int     `json:"baseline_days"`
	MinBaselineDays int     `json:"min_baseline_days"`
	ZScoreCutoff    float64 `json:"z_score_cutoff"`
	// AbsoluteCountFallback gates correlation when the baseline has zero
	// variance and a z-score cannot be computed.
	AbsoluteCountFallback int `json:"absolute_count_fallback"`
	// HighEngagement is the engagement count above which a message earns
	// the volume bonus.
	HighEngagement int `json:"high_engagement"`

	// Confidence weights
	ConfidenceBase float64 `json:"confidence_base"`
	KeywordBonus   float64 `json:"keyword_bonus"`
	ProximityBonus float64 `json:"proximity_bonus"`
	VolumeBonus    float64 `json:"volume_bonus"`
}

// SpatialConfig holds thresholds for location-based correlation.
type SpatialConfig struct {
	RadiusKM           float64 `json:"radius_km"`
	BaseStrength       float64 `json:"base_strength"`
	CorroborationBonus float64 `json:"corroboration_bonus"`
}

// ContentConfig holds thresholds for vocabulary-density scoring.
type ContentConfig struct {
	MinDistinctHits  int     `json:"min_distinct_hits"`
	DensityThreshold float64 `json:"density_threshold"`
	// StrengthScale maps raw density into link strength; natural-text
	// densities run well below 1.0.
	StrengthScale  float64 `json:"strength_scale"`
	BaseConfidence float64 `json:"base_confidence"`
	HitBonus       float64 `json:"hit_bonus"`
	MaxConfidence  float64 `json:"max_confidence"`
}

// SocialConfig holds thresholds for the mention graph.
type SocialConfig struct {
	HubPercentile  float64 `json:"hub_percentile"`
	MaxIterations  int     `json:"max_iterations"`
	LinkConfidence float64 `json:"link_confidence"`
}

// AdaptiveConfig holds tiering and vocabulary-mining thresholds.
type AdaptiveConfig struct {
	PromoteUtility       float64 `json:"promote_utility"`
	PromoteHitRate       float64 `json:"promote_hit_rate"`
	DemoteUtility        float64 `json:"demote_utility"`
	DemoteMinMessages    int     `json:"demote_min_messages"`
	HighConfidence       float64 `json:"high_confidence"`
	FalsePositivePenalty float64 `json:"false_positive_penalty"`

	// Vocabulary mining
	VocabTopN          int `json:"vocab_top_n"`
	VocabMinCorpusFreq int `json:"vocab_min_corpus_freq"`

	// False-positive review
	ReviewHorizonDays int     `json:"review_horizon_days"`
	ReviewZFraction   float64 `json:"review_z_fraction"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Temporal: TemporalConfig{
			WindowHours:           6,
			BaselineDays:          14,
			MinBaselineDays:       3,
			ZScoreCutoff:          2.5,
			AbsoluteCountFallback: 10,
			HighEngagement:        50,
			ConfidenceBase:        0.3,
			KeywordBonus:          0.4,
			ProximityBonus:        0.2,
			VolumeBonus:           0.1,
		},
		Spatial: SpatialConfig{
			RadiusKM:           25,
			BaseStrength:       0.6,
			CorroborationBonus: 0.3,
		},
		Content: ContentConfig{
			MinDistinctHits:  2,
			DensityThreshold: 0.05,
			StrengthScale:    10,
			BaseConfidence:   0.4,
			HitBonus:         0.1,
			MaxConfidence:    0.9,
		},
		Social: SocialConfig{
			HubPercentile:  0.90,
			MaxIterations:  20,
			LinkConfidence: 0.85,
		},
		Adaptive: AdaptiveConfig{
			PromoteUtility:       50,
			PromoteHitRate:       0.05,
			DemoteUtility:        5,
			DemoteMinMessages:    50,
			HighConfidence:       0.7,
			FalsePositivePenalty: 2,
			VocabTopN:            10,
			VocabMinCorpusFreq:   5,
			ReviewHorizonDays:    14,
			ReviewZFraction:      0.8,
		},
		CycleIntervalMinutes: 60,
		DomainKeywords: []string{
			"explosion", "convoy", "checkpoint", "airstrike", "protest",
			"evacuation", "blackout", "casualties", "shelling", "mobilization",
		},
	}
}

// DataDir returns the application data directory.
func DataDir() string {
	if dir := os.Getenv("LOOM_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".loom")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// Load reads config from disk, or returns defaults.
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		// A corrupt config file should not brick the engine; fall back
		// to defaults and let Save rewrite it.
		return DefaultConfig(), nil
	}

	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
