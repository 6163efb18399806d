package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/helixmap/biograph-backend/internal/platform/envutil"
)

// RecencyNewer weights recent publication years higher; RecencyOlder inverts
// that for domains where older, well-replicated findings carry more trust.
const (
	RecencyNewer = "newer"
	RecencyOlder = "older"
)

// Scoring holds the evidence-aggregation knobs. Every field has a working
// default so a zero config file still scores.
type Scoring struct {
	// Direction of the recency weight: "newer" or "older".
	RecencyDirection string `yaml:"recency_direction"`
	// Relative weights of the three score components. Normalized at load.
	SupportWeight  float64 `yaml:"support_weight"`
	RecencyWeight  float64 `yaml:"recency_weight"`
	CitationWeight float64 `yaml:"citation_weight"`
	// Cluster count at which independent support saturates.
	SupportSaturation int `yaml:"support_saturation"`
	// Provenance trust used when an edge carries no literature evidence.
	CuratedTrust   float64 `yaml:"curated_trust"`
	ManualTrust    float64 `yaml:"manual_trust"`
	TextMinedTrust float64 `yaml:"text_mined_trust"`
	// Edges scoring below this with no evidence are flagged unverified.
	UnverifiedThreshold float64 `yaml:"unverified_threshold"`
}

type Rationale struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	CacheTTLMin    int `yaml:"cache_ttl_minutes"`
}

type Config struct {
	LogMode   string    `yaml:"log_mode"`
	Scoring   Scoring   `yaml:"scoring"`
	Rationale Rationale `yaml:"rationale"`
}

func Default() Config {
	return Config{
		LogMode: envutil.Str("LOG_MODE", "development"),
		Scoring: Scoring{
			RecencyDirection:    RecencyNewer,
			SupportWeight:       0.6,
			RecencyWeight:       0.25,
			CitationWeight:      0.15,
			SupportSaturation:   5,
			CuratedTrust:        0.75,
			ManualTrust:         0.6,
			TextMinedTrust:      0.25,
			UnverifiedThreshold: 0.5,
		},
		Rationale: Rationale{
			TimeoutSeconds: envutil.Int("RATIONALE_TIMEOUT_SECONDS", 30),
			CacheTTLMin:    envutil.Int("RATIONALE_CACHE_TTL_MINUTES", 720),
		},
	}
}

// Load reads path (if non-empty) over the defaults. Unknown keys are ignored.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	s := c.Scoring
	switch s.RecencyDirection {
	case RecencyNewer, RecencyOlder:
	default:
		return fmt.Errorf("config: recency_direction must be %q or %q, got %q", RecencyNewer, RecencyOlder, s.RecencyDirection)
	}
	if s.SupportWeight < 0 || s.RecencyWeight < 0 || s.CitationWeight < 0 {
		return fmt.Errorf("config: scoring weights must be non-negative")
	}
	if s.SupportWeight+s.RecencyWeight+s.CitationWeight <= 0 {
		return fmt.Errorf("config: at least one scoring weight must be positive")
	}
	for _, t := range []float64{s.CuratedTrust, s.ManualTrust, s.TextMinedTrust, s.UnverifiedThreshold} {
		if t < 0 || t > 1 {
			return fmt.Errorf("config: trust values must be in [0,1]")
		}
	}
	if s.SupportSaturation < 1 {
		return fmt.Errorf("config: support_saturation must be >= 1")
	}
	return nil
}
