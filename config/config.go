// Package config loads the searchpagerd configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Alp4ka/searchpager"
)

// Config holds the searchpagerd configuration.
type Config struct {
	Env     string        `yaml:"env" validate:"oneof=local dev test prod"`
	HTTP    HTTPConfig    `yaml:"http"`
	Engine  EngineConfig  `yaml:"engine"`
	Index   IndexConfig   `yaml:"index"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec" validate:"min=1"`
	WriteTimeoutSec int `yaml:"write_timeout_sec" validate:"min=1"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec" validate:"min=1"`
}

// EngineConfig selects and reaches the search backend.
type EngineConfig struct {
	Driver    string   `yaml:"driver" validate:"oneof=elasticsearch opensearch mysql postgres"`
	Addresses []string `yaml:"addresses" validate:"required_if=Driver elasticsearch,required_if=Driver opensearch,dive,url"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Insecure  bool     `yaml:"insecure"`
	// DSN is the database connection string for the SQL drivers.
	DSN         string   `yaml:"dsn" validate:"required_if=Driver mysql,required_if=Driver postgres"`
	TextColumns []string `yaml:"text_columns"`
	// Columns maps request fields to SQL columns, e.g. name.keyword: name.
	Columns    map[string]string `yaml:"columns" validate:"omitempty,dive,keys,required,endkeys,required"`
	MaxRetries int               `yaml:"max_retries" validate:"min=0"`
	Breaker    BreakerConfig     `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the engine. Zero
// values keep the breaker defaults.
type BreakerConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MaxRequests  uint32  `yaml:"max_requests"`
	IntervalSec  int     `yaml:"interval_sec" validate:"min=0"`
	TimeoutSec   int     `yaml:"timeout_sec" validate:"min=0"`
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio" validate:"min=0,max=1"`
}

// IndexConfig describes the index served and how its pages look.
type IndexConfig struct {
	Name        string   `yaml:"name" validate:"required"`
	EntityType  string   `yaml:"entity_type" validate:"required"`
	KeyName     string   `yaml:"key_name"`
	DefaultSort []string `yaml:"default_sort" validate:"required,min=1"`
	// SortFields maps the sort aliases clients may use to index fields.
	SortFields  map[string]string              `yaml:"sort_fields"`
	Relations   map[string]map[string]Relation `yaml:"relations" validate:"dive,dive"`
	PerPage     int                            `yaml:"per_page" validate:"min=1,ltefield=MaxPerPage"`
	MaxPerPage  int                            `yaml:"max_per_page" validate:"min=1"`
	CursorParam string                         `yaml:"cursor_param" validate:"required"`
	PageParam   string                         `yaml:"page_param" validate:"required,nefield=CursorParam"`
	MaxDepth    int                            `yaml:"max_depth" validate:"min=1"`
}

// Relation is the YAML form of searchpager.RelationLink.
type Relation struct {
	Related     string `yaml:"related" validate:"required"`
	Cardinality string `yaml:"cardinality" validate:"oneof=one many"`
	PivotKey    string `yaml:"pivot_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Load reads a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML, substituting ${VAR} with environment variables, then
// applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "local"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Engine.Driver == "" {
		c.Engine.Driver = "elasticsearch"
	}
	if c.Index.PerPage <= 0 {
		c.Index.PerPage = searchpager.DefaultPerPage
	}
	if c.Index.MaxPerPage <= 0 {
		c.Index.MaxPerPage = searchpager.MaxPerPage
	}
	if c.Index.CursorParam == "" {
		c.Index.CursorParam = searchpager.DefaultCursorParam
	}
	if c.Index.PageParam == "" {
		c.Index.PageParam = searchpager.DefaultPageParam
	}
	if c.Index.MaxDepth <= 0 {
		c.Index.MaxDepth = searchpager.DefaultMaxDepth
	}
	if c.Index.KeyName == "" {
		c.Index.KeyName = searchpager.DefaultKeyName
	}
}

var _validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := _validate.Struct(c); err != nil {
		return err
	}

	if _, err := c.Index.Sort(); err != nil {
		return fmt.Errorf("index.default_sort: %w", err)
	}

	return c.Index.RelationGraph().Validate()
}

// Sort parses the default sort strings.
func (c IndexConfig) Sort() (searchpager.SortSpec, error) {
	return searchpager.ParseSortSpec(c.DefaultSort...)
}

// SortMapping returns the aliases clients may sort by. Every default sort
// field is reachable under its own name.
func (c IndexConfig) SortMapping() searchpager.FieldMapping {
	ret := make(searchpager.FieldMapping, len(c.SortFields)+len(c.DefaultSort))
	for _, s := range c.DefaultSort {
		if parts := strings.Fields(s); len(parts) > 0 {
			ret[parts[0]] = parts[0]
		}
	}
	for alias, field := range c.SortFields {
		ret[alias] = field
	}

	return ret
}

// RelationGraph converts the relation section.
func (c IndexConfig) RelationGraph() searchpager.RelationGraph {
	if len(c.Relations) == 0 {
		return nil
	}

	ret := make(searchpager.RelationGraph, len(c.Relations))
	for typ, links := range c.Relations {
		ret[typ] = make(map[string]searchpager.RelationLink, len(links))
		for name, rel := range links {
			card := searchpager.Many
			if rel.Cardinality == "one" {
				card = searchpager.One
			}
			ret[typ][name] = searchpager.RelationLink{
				Related:     rel.Related,
				Cardinality: card,
				PivotKey:    rel.PivotKey,
			}
		}
	}

	return ret
}

// ReadTimeout and the other duration helpers convert the *_sec settings.
func (c HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

func (c HTTPConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

func (c HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSec) * time.Second
}

var _envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars substitutes ${VAR} with the variable's value. Unset
// variables expand to the empty string.
func expandEnvVars(data []byte) []byte {
	return _envVarRe.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(_envVarRe.FindSubmatch(match)[1])
		return []byte(os.Getenv(name))
	})
}
