package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/YuminosukeSato/listingprep/pkg/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Classifier.MissingThreshold != 0.6 || cfg.Outlier.Nu != 0.5 || cfg.Outlier.Scaling != "standard" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Outlier.FamilyList()) != 5 {
		t.Errorf("FamilyList() = %v", cfg.Outlier.FamilyList())
	}
}

func TestLoad_OverridesAndEnv(t *testing.T) {
	t.Setenv("LISTINGPREP_ESTIMATOR", "forest")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
imputer:
  estimator: ${LISTINGPREP_ESTIMATOR}
outlier:
  nu: 0.2
  families: [norm, gamma]
log_level: ${LISTINGPREP_UNSET_LEVEL:-debug}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Imputer.Estimator != EstimatorForest {
		t.Errorf("estimator = %q, want forest", cfg.Imputer.Estimator)
	}
	if cfg.Outlier.Nu != 0.2 || !reflect.DeepEqual(cfg.Outlier.Families, []string{"norm", "gamma"}) {
		t.Errorf("outlier = %+v", cfg.Outlier)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want fallback debug", cfg.LogLevel)
	}
	// untouched sections keep their defaults
	if cfg.Classifier.MaxCardinality != 17 || cfg.Imputer.Forest.NEstimators != 100 {
		t.Errorf("defaults lost: %+v", cfg.Classifier)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("outlier:\n  nu: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("Load() error = %v, want ValidationError", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Outlier.CacheFits = true
	cfg.Report.SampleXLSX = "sample.xlsx"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.Classifier.MissingThreshold = 1.5 }},
		{"inverted cardinality", func(c *Config) { c.Classifier.MinCardinality = 5; c.Classifier.MaxCardinality = 2 }},
		{"unknown estimator", func(c *Config) { c.Imputer.Estimator = "xgboost" }},
		{"forest without trees", func(c *Config) { c.Imputer.Estimator = EstimatorForest; c.Imputer.Forest.NEstimators = 0 }},
		{"unknown family", func(c *Config) { c.Outlier.Families = []string{"weibull"} }},
		{"no families", func(c *Config) { c.Outlier.Families = nil }},
		{"bad gamma mode", func(c *Config) { c.Outlier.GammaMode = "wide" }},
		{"bad scaling", func(c *Config) { c.Outlier.Scaling = "robust" }},
		{"zero tol", func(c *Config) { c.Outlier.Tol = 0 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
