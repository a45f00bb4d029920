package config

import (
	"fmt"
	"os"
	"strconv"

	"epifit/domain/core"
)

// Config represents the complete application configuration
type Config struct {
	Dataset    DatasetConfig
	Model      ModelConfig
	Search     SearchConfig
	Simulation SimulationConfig
	Database   DatabaseConfig
	Server     ServerConfig
	LogLevel   string
}

// DatasetConfig names the input data and its seasonal layout
type DatasetConfig struct {
	Path string
	Name string
	// Pipeline selects which fits run at startup: "tsir", "chain-binomial"
	// or "both". The chain-binomial fit expects a closed outbreak, not an
	// endemic series.
	Pipeline string
	// SeasonPeriod is the number of sub-year periods (26 for biweekly data)
	SeasonPeriod int
	SeasonPhase  int
	// AggregateWidth collapses fine steps into coarser ones before the
	// chain-binomial fit (2 sums weekly counts into biweekly). 1 disables.
	AggregateWidth int
}

// ModelConfig holds reconstruction and regression settings
type ModelConfig struct {
	// SmoothingEDF is the effective degrees of freedom of the penalized
	// spline used in susceptible reconstruction.
	SmoothingEDF float64
	// SBarFracMin/Max bound the profile grid over the mean susceptible
	// pool, expressed as fractions of population size.
	SBarFracMin  float64
	SBarFracMax  float64
	SBarGridSize int
	PenalizeGrid bool
}

// SearchConfig holds chain-binomial search settings
type SearchConfig struct {
	// S0 is the susceptible pool candidate the beta grid is profiled at.
	S0           float64
	BetaGridMin  float64
	BetaGridMax  float64
	BetaGridStep float64
	MaxIters     int
	Tolerance    float64
	ConfLevel    float64
	Workers      int
}

// SimulationConfig holds forward-simulation settings
type SimulationConfig struct {
	// Horizon caps chain-binomial trajectories; 0 means the data length.
	Horizon      int
	EnsembleSize int
	Workers      int
	Seed         int64
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	// URL may be empty: the application then keeps its ledger in memory.
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Dataset:    loadDatasetConfig(),
		Model:      loadModelConfig(),
		Search:     loadSearchConfig(),
		Simulation: loadSimulationConfig(),
		Database:   loadDatabaseConfig(),
		Server:     loadServerConfig(),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Path:           getEnvOrDefault("DATASET_PATH", ""),
		Name:           getEnvOrDefault("DATASET_NAME", "dataset"),
		Pipeline:       getEnvOrDefault("PIPELINE", "tsir"),
		SeasonPeriod:   getEnvIntOrDefault("SEASON_PERIOD", 26),
		SeasonPhase:    getEnvIntOrDefault("SEASON_PHASE", 0),
		AggregateWidth: getEnvIntOrDefault("AGGREGATE_WIDTH", 1),
	}
}

func loadModelConfig() ModelConfig {
	return ModelConfig{
		SmoothingEDF: getEnvFloatOrDefault("SMOOTHING_EDF", 7),
		SBarFracMin:  getEnvFloatOrDefault("SBAR_FRAC_MIN", 0.01),
		SBarFracMax:  getEnvFloatOrDefault("SBAR_FRAC_MAX", 0.4),
		SBarGridSize: getEnvIntOrDefault("SBAR_GRID_SIZE", 40),
		PenalizeGrid: getEnvBoolOrDefault("GRID_PENALIZE", true),
	}
}

func loadSearchConfig() SearchConfig {
	return SearchConfig{
		S0:           getEnvFloatOrDefault("CB_S0", 6500),
		BetaGridMin:  getEnvFloatOrDefault("BETA_GRID_MIN", 0),
		BetaGridMax:  getEnvFloatOrDefault("BETA_GRID_MAX", 10),
		BetaGridStep: getEnvFloatOrDefault("BETA_GRID_STEP", 0.1),
		MaxIters:     getEnvIntOrDefault("NM_MAX_ITERS", 500),
		Tolerance:    getEnvFloatOrDefault("NM_TOLERANCE", 1e-8),
		ConfLevel:    getEnvFloatOrDefault("CONF_LEVEL", 0.95),
		Workers:      getEnvIntOrDefault("GRID_WORKERS", 8),
	}
}

func loadSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Horizon:      getEnvIntOrDefault("SIM_HORIZON", 0),
		EnsembleSize: getEnvIntOrDefault("ENSEMBLE_SIZE", 100),
		Workers:      getEnvIntOrDefault("SIM_WORKERS", 8),
		Seed:         int64(getEnvIntOrDefault("SEED", 42)),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func validateConfig(config *Config) error {
	switch config.Dataset.Pipeline {
	case "tsir", "chain-binomial", "both":
	default:
		return core.NewValidationError("PIPELINE", "must be tsir, chain-binomial or both")
	}
	if config.Dataset.SeasonPeriod < 1 {
		return core.NewValidationError("SEASON_PERIOD", "must be positive")
	}
	if config.Dataset.AggregateWidth < 1 {
		return core.NewValidationError("AGGREGATE_WIDTH", "must be positive")
	}
	if config.Model.SmoothingEDF < 2 {
		return core.NewValidationError("SMOOTHING_EDF", "must be at least 2")
	}
	if config.Model.SBarFracMin <= 0 || config.Model.SBarFracMax <= config.Model.SBarFracMin {
		return core.NewValidationError("SBAR_FRAC", "need 0 < min < max")
	}
	if config.Model.SBarGridSize < 1 {
		return core.NewValidationError("SBAR_GRID_SIZE", "must be positive")
	}
	if config.Search.S0 <= 0 {
		return core.NewValidationError("CB_S0", "must be positive")
	}
	if config.Search.BetaGridStep <= 0 {
		return core.NewValidationError("BETA_GRID_STEP", "must be positive")
	}
	if config.Search.BetaGridMax < config.Search.BetaGridMin {
		return core.NewValidationError("BETA_GRID", "max must be >= min")
	}
	if config.Search.MaxIters < 1 {
		return core.NewValidationError("NM_MAX_ITERS", "must be positive")
	}
	if config.Search.ConfLevel <= 0 || config.Search.ConfLevel >= 1 {
		return core.NewValidationError("CONF_LEVEL", "must be in (0,1)")
	}
	if config.Search.Workers < 1 {
		return core.NewValidationError("GRID_WORKERS", "must be positive")
	}
	if config.Simulation.EnsembleSize < 1 {
		return core.NewValidationError("ENSEMBLE_SIZE", "must be positive")
	}
	if config.Simulation.Workers < 1 {
		return core.NewValidationError("SIM_WORKERS", "must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
