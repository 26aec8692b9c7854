// Package config holds the YAML configuration of the preprocessing pipeline.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/listingprep/pkg/errors"
	"github.com/YuminosukeSato/listingprep/pkg/log"
	"github.com/YuminosukeSato/listingprep/stats/distfit"
)

// Estimator kinds for the regression imputer.
const (
	EstimatorLinear = "linear"
	EstimatorForest = "forest"
)

// Config is the full pipeline configuration.
type Config struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Imputer    ImputerConfig    `yaml:"imputer"`
	Outlier    OutlierConfig    `yaml:"outlier"`
	DropRules  DropRuleConfig   `yaml:"drop_rules"`
	Report     ReportConfig     `yaml:"report"`

	// Seed drives every random draw in the pipeline.
	Seed uint64 `yaml:"seed"`
	// Workers bounds per-column parallelism; 0 means one per CPU.
	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
}

// ClassifierConfig controls column dropping and role assignment.
type ClassifierConfig struct {
	MissingThreshold float64  `yaml:"missing_threshold"`
	Protected        []string `yaml:"protected"`
	DateSpecial      []string `yaml:"date_special"`
	EncodeExclude    []string `yaml:"encode_exclude"`
	MinCardinality   int      `yaml:"min_cardinality"`
	MaxCardinality   int      `yaml:"max_cardinality"`
}

// ImputerConfig selects the regression estimator.
type ImputerConfig struct {
	Estimator string       `yaml:"estimator"`
	Forest    ForestConfig `yaml:"forest"`
}

// ForestConfig parameterises the forest estimator.
type ForestConfig struct {
	NEstimators    int `yaml:"n_estimators"`
	MaxDepth       int `yaml:"max_depth"`
	MinSamplesLeaf int `yaml:"min_samples_leaf"`
	MaxFeatures    int `yaml:"max_features"`
}

// OutlierConfig parameterises detection and distribution resampling.
type OutlierConfig struct {
	Nu             float64  `yaml:"nu"`
	Gamma          float64  `yaml:"gamma"`
	GammaMode      string   `yaml:"gamma_mode"`
	Tol            float64  `yaml:"tol"`
	MaxIter        int      `yaml:"max_iter"`
	Scaling        string   `yaml:"scaling"`
	Families       []string `yaml:"families"`
	QuantilePoints int      `yaml:"quantile_points"`
	CacheFits      bool     `yaml:"cache_fits"`
}

// DropRuleConfig holds the price limits of the row drop rules.
type DropRuleConfig struct {
	SaleMinPrice float64 `yaml:"sale_min_price"`
	RentMaxPrice float64 `yaml:"rent_max_price"`
}

// ReportConfig controls the optional debug artifacts.
type ReportConfig struct {
	SampleXLSX string `yaml:"sample_xlsx"`
	SampleRows int    `yaml:"sample_rows"`
	QQPlotDir  string `yaml:"qq_plot_dir"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			MissingThreshold: 0.6,
			Protected:        []string{"bltYr-n", "sqft-n", "sp-n"},
			DateSpecial: []string{
				"offD", "offD-month-n", "offD-season-n", "offD-year-n",
				"onD", "onD-month-n", "onD-season-n", "onD-week-n", "onD-year-n",
				"bltYr-n", "rmBltYr", "taxyr-n", "taxyr",
			},
			EncodeExclude:  []string{"saletp-b", "ptype2-l", "prov", "area", "city", "_id"},
			MinCardinality: 2,
			MaxCardinality: 17,
		},
		Imputer: ImputerConfig{
			Estimator: EstimatorLinear,
			Forest: ForestConfig{
				NEstimators:    100,
				MinSamplesLeaf: 1,
			},
		},
		Outlier: OutlierConfig{
			Nu:             0.5,
			GammaMode:      "auto",
			Tol:            1e-3,
			Scaling:        "standard",
			Families:       []string{"gamma", "lognorm", "beta", "expon", "norm"},
			QuantilePoints: distfit.DefaultQuantilePoints,
		},
		DropRules: DropRuleConfig{
			SaleMinPrice: 10000,
			RentMaxPrice: 50000,
		},
		Report: ReportConfig{
			SampleRows: 30,
		},
		Seed:     42,
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults. ${VAR} and ${VAR:-fallback}
// references are replaced from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal YAML")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		name, fallback, hasFallback := strings.Cut(content[start+2:end], ":-")
		value, ok := os.LookupEnv(name)
		if (!ok || value == "") && hasFallback {
			value = fallback
		}
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	cl := c.Classifier
	if cl.MissingThreshold < 0 || cl.MissingThreshold > 1 {
		return errors.NewValidationError("classifier.missing_threshold", "must be in [0, 1]", cl.MissingThreshold)
	}
	if cl.MinCardinality < 1 || cl.MaxCardinality < cl.MinCardinality {
		return errors.NewValidationError("classifier.cardinality", "need 1 <= min_cardinality <= max_cardinality",
			[2]int{cl.MinCardinality, cl.MaxCardinality})
	}

	switch c.Imputer.Estimator {
	case EstimatorLinear, EstimatorForest:
	default:
		return errors.NewValidationError("imputer.estimator", "must be linear or forest", c.Imputer.Estimator)
	}
	if c.Imputer.Estimator == EstimatorForest && c.Imputer.Forest.NEstimators < 1 {
		return errors.NewValidationError("imputer.forest.n_estimators", "must be at least 1", c.Imputer.Forest.NEstimators)
	}

	o := c.Outlier
	if o.Nu <= 0 || o.Nu > 1 {
		return errors.NewValidationError("outlier.nu", "must be in (0, 1]", o.Nu)
	}
	if o.Tol <= 0 {
		return errors.NewValidationError("outlier.tol", "must be positive", o.Tol)
	}
	switch o.GammaMode {
	case "auto", "scale":
	default:
		return errors.NewValidationError("outlier.gamma_mode", "must be auto or scale", o.GammaMode)
	}
	switch o.Scaling {
	case "", "none", "standard", "minmax":
	default:
		return errors.NewValidationError("outlier.scaling", "must be none, standard or minmax", o.Scaling)
	}
	if len(o.Families) == 0 {
		return errors.NewValidationError("outlier.families", "at least one family is required", o.Families)
	}
	for _, f := range o.Families {
		if _, ok := distfit.ParseFamily(f); !ok {
			return errors.NewValidationError("outlier.families", "unknown distribution family", f)
		}
	}
	if o.QuantilePoints < 1 {
		return errors.NewValidationError("outlier.quantile_points", "must be positive", o.QuantilePoints)
	}

	if c.Report.SampleRows < 0 {
		return errors.NewValidationError("report.sample_rows", "must not be negative", c.Report.SampleRows)
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return errors.NewValidationError("log_level", "must be debug, info, warn or error", c.LogLevel)
		}
	}
	return nil
}

// FamilyList returns the configured families as typed values.
func (o OutlierConfig) FamilyList() []distfit.Family {
	out := make([]distfit.Family, 0, len(o.Families))
	for _, f := range o.Families {
		if fam, ok := distfit.ParseFamily(f); ok {
			out = append(out, fam)
		}
	}
	return out
}
