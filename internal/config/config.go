// Package config collects every documented threshold of the matching, dedup
// and pricing components into one explicit structure, so the values used in
// production and in tests come from a single source of truth.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/celikd/orderdesk/internal/common"
)

// MatchingConfig holds the thresholds for the client and product matchers.
type MatchingConfig struct {
	// FuzzyThreshold is the minimum similarity ratio for a fuzzy name
	// strategy to fire.
	FuzzyThreshold float64
	// MinSignificantWordLen is the minimum length of a name word for the
	// single-keyword strategy to consider it.
	MinSignificantWordLen int
	// Stopwords are never treated as significant name words.
	Stopwords []string
}

// DedupConfig holds the thresholds for the duplicate detector.
type DedupConfig struct {
	// LookbackWindow bounds how far back prior requests are compared.
	LookbackWindow time.Duration
	// ProbableOverlap is the minimum Jaccard overlap of product sets for a
	// probable duplicate.
	ProbableOverlap float64
	// PossibleSubjectSimilarity is the minimum subject-line similarity for a
	// possible duplicate.
	PossibleSubjectSimilarity float64
}

// PricingConfig holds the thresholds for the pricing decision engine.
type PricingConfig struct {
	// StabilityThresholdPct is the supplier price variance (percent) at or
	// above which a prior sale price is no longer reused verbatim.
	StabilityThresholdPct float64
	// MarginPct is the fixed margin applied on top of the supplier price.
	MarginPct float64
	// MinReferenceSales is the reference-sale count below which a
	// known-elsewhere price requires validation.
	MinReferenceSales int
	// SignificantDeltaPct is the price delta (percent) that raises a
	// commercial alert on repeat sales.
	SignificantDeltaPct float64
}

// ExtractConfig holds the candidate extractor settings.
type ExtractConfig struct {
	// NoiseTerms is the blacklist of domain-specific noise tokens.
	NoiseTerms []string
	// IntlPrefixes are the recognized international dialing prefixes.
	IntlPrefixes []string
}

// DirectoryConfig holds the read-through cache settings.
type DirectoryConfig struct {
	// CacheTTL bounds how long directory snapshots are served before a
	// refresh.
	CacheTTL time.Duration
}

// Config is the full component configuration.
type Config struct {
	Matching  MatchingConfig
	Dedup     DedupConfig
	Pricing   PricingConfig
	Extract   ExtractConfig
	Directory DirectoryConfig
}

// Default returns the documented default thresholds.
func Default() Config {
	return Config{
		Matching: MatchingConfig{
			FuzzyThreshold:        0.75,
			MinSignificantWordLen: 4,
			Stopwords: []string{
				"the", "and", "for", "les", "des", "une", "sarl", "sas",
				"gmbh", "ltd", "inc", "company", "societe",
			},
		},
		Dedup: DedupConfig{
			LookbackWindow:            30 * 24 * time.Hour,
			ProbableOverlap:           0.5,
			PossibleSubjectSimilarity: 0.8,
		},
		Pricing: PricingConfig{
			StabilityThresholdPct: 5.0,
			MarginPct:             45.0,
			MinReferenceSales:     3,
			SignificantDeltaPct:   20.0,
		},
		Extract: ExtractConfig{
			NoiseTerms: []string{
				// Machine-axis labels show up as product-code lookalikes.
				"axe x", "axe y", "axe z", "x axis", "y axis", "z axis",
				"achse x", "achse y", "achse z",
				// Boilerplate words near attachments.
				"attached", "attachment", "ci-joint", "ci-jointe", "anbei",
			},
			IntlPrefixes: []string{"1", "33", "44", "49", "90", "212", "216"},
		},
		Directory: DirectoryConfig{
			CacheTTL: 15 * time.Minute,
		},
	}
}

// Load reads overrides from viper on top of the defaults. Keys mirror the
// struct layout, e.g. pricing.stability_threshold_pct.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v.IsSet("matching.fuzzy_threshold") {
		cfg.Matching.FuzzyThreshold = v.GetFloat64("matching.fuzzy_threshold")
	}
	if v.IsSet("matching.min_significant_word_len") {
		cfg.Matching.MinSignificantWordLen = v.GetInt("matching.min_significant_word_len")
	}
	if v.IsSet("matching.stopwords") {
		cfg.Matching.Stopwords = v.GetStringSlice("matching.stopwords")
	}
	if v.IsSet("dedup.lookback_days") {
		cfg.Dedup.LookbackWindow = time.Duration(v.GetInt("dedup.lookback_days")) * 24 * time.Hour
	}
	if v.IsSet("dedup.probable_overlap") {
		cfg.Dedup.ProbableOverlap = v.GetFloat64("dedup.probable_overlap")
	}
	if v.IsSet("dedup.possible_subject_similarity") {
		cfg.Dedup.PossibleSubjectSimilarity = v.GetFloat64("dedup.possible_subject_similarity")
	}
	if v.IsSet("pricing.stability_threshold_pct") {
		cfg.Pricing.StabilityThresholdPct = v.GetFloat64("pricing.stability_threshold_pct")
	}
	if v.IsSet("pricing.margin_pct") {
		cfg.Pricing.MarginPct = v.GetFloat64("pricing.margin_pct")
	}
	if v.IsSet("pricing.min_reference_sales") {
		cfg.Pricing.MinReferenceSales = v.GetInt("pricing.min_reference_sales")
	}
	if v.IsSet("pricing.significant_delta_pct") {
		cfg.Pricing.SignificantDeltaPct = v.GetFloat64("pricing.significant_delta_pct")
	}
	if v.IsSet("extract.noise_terms") {
		cfg.Extract.NoiseTerms = v.GetStringSlice("extract.noise_terms")
	}
	if v.IsSet("extract.intl_prefixes") {
		cfg.Extract.IntlPrefixes = v.GetStringSlice("extract.intl_prefixes")
	}
	if v.IsSet("directory.cache_ttl") {
		cfg.Directory.CacheTTL = v.GetDuration("directory.cache_ttl")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects threshold combinations that would make components
// misbehave silently.
func (c Config) Validate() error {
	if c.Matching.FuzzyThreshold <= 0 || c.Matching.FuzzyThreshold >= 1 {
		return fmt.Errorf("%w: matching.fuzzy_threshold must be in (0,1), got %v",
			common.ErrInvalidConfig, c.Matching.FuzzyThreshold)
	}
	if c.Dedup.LookbackWindow <= 0 {
		return fmt.Errorf("%w: dedup.lookback_days must be positive", common.ErrInvalidConfig)
	}
	if c.Dedup.ProbableOverlap <= 0 || c.Dedup.ProbableOverlap > 1 {
		return fmt.Errorf("%w: dedup.probable_overlap must be in (0,1]", common.ErrInvalidConfig)
	}
	if c.Pricing.StabilityThresholdPct <= 0 {
		return fmt.Errorf("%w: pricing.stability_threshold_pct must be positive", common.ErrInvalidConfig)
	}
	if c.Pricing.MarginPct < 0 {
		return fmt.Errorf("%w: pricing.margin_pct must not be negative", common.ErrInvalidConfig)
	}
	if c.Pricing.MinReferenceSales < 1 {
		return fmt.Errorf("%w: pricing.min_reference_sales must be at least 1", common.ErrInvalidConfig)
	}
	if len(c.Extract.IntlPrefixes) == 0 {
		return fmt.Errorf("%w: extract.intl_prefixes", common.ErrMissingConfig)
	}
	return nil
}
