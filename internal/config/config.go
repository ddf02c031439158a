// Package config loads the flocking geese configuration.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/goose"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var schemaSource string

const schemaURL = "https://github.com/lao-tseu-is-alive/go-flocking-geese/config.schema.json"

var schema = jsonschema.MustCompileString(schemaURL, schemaSource)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GEESE_"

type Config struct {
	// World Dimensions
	WorldWidth  float64 `json:"worldWidth"`
	WorldHeight float64 `json:"worldHeight"`

	// Population
	FlockSize int    `json:"flockSize"`
	Seed      uint64 `json:"seed"` // 0 picks a random seed

	// Ticks allowed between two renders, <= 0 disables the throttle
	ThrottleThreshold int `json:"throttleThreshold"`

	// Steering (see goose.Params)
	MaxSpeed         float64 `json:"maxSpeed"`
	MaxForce         float64 `json:"maxForce"`
	SeparationRadius float64 `json:"separationRadius"`
	NeighborRadius   float64 `json:"neighborRadius"`
	SeparationWeight float64 `json:"separationWeight"`
	AlignmentWeight  float64 `json:"alignmentWeight"`
	CohesionWeight   float64 `json:"cohesionWeight"`
	AttractorWeight  float64 `json:"attractorWeight"`
	AttractorFalloff float64 `json:"attractorFalloff"`

	// Rendering
	Background string `json:"background"`
	Ink        string `json:"ink"`
	ShowSprite bool   `json:"showSprite"`

	// Command limits
	MaxFlockSize  int `json:"maxFlockSize"`
	MaxAttractors int `json:"maxAttractors"`

	// Serving
	ListenAddr     string `json:"listenAddr"`
	InfoIntervalMs int    `json:"infoIntervalMs"` // 0 disables the info push

	LogLevel string `json:"logLevel"`
}

func DefaultConfig() *Config {
	p := goose.DefaultParams()
	return &Config{
		WorldWidth:        800,
		WorldHeight:       600,
		FlockSize:         150,
		ThrottleThreshold: 4,
		MaxSpeed:          p.MaxSpeed,
		MaxForce:          p.MaxForce,
		SeparationRadius:  p.SeparationRadius,
		NeighborRadius:    p.NeighborRadius,
		SeparationWeight:  p.SeparationWeight,
		AlignmentWeight:   p.AlignmentWeight,
		CohesionWeight:    p.CohesionWeight,
		AttractorWeight:   p.AttractorWeight,
		AttractorFalloff:  p.AttractorFalloff,
		Background:        "#87ceeb",
		Ink:               "#202020",
		ShowSprite:        true,
		MaxFlockSize:      10000,
		MaxAttractors:     64,
		ListenAddr:        ":8080",
		InfoIntervalMs:    1000,
		LogLevel:          "info",
	}
}

// LoadConfig reads a JSON or YAML file (by extension), validates it
// against the embedded schema and decodes it over DefaultConfig, so keys
// missing from the file keep their default.
func LoadConfig(configFile string) (*Config, error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		b, err = yamlToJSON(b)
		if err != nil {
			return nil, err
		}
	case ".json":
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", filepath.Ext(configFile))
	}
	return Parse(b)
}

// Parse validates a JSON document and decodes it over DefaultConfig.
func Parse(doc []byte) (*Config, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(doc, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.checkLimits(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks c against the schema, e.g. after ApplyEnv.
func (c *Config) Validate() error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := validate(doc); err != nil {
		return err
	}
	return c.checkLimits()
}

func (c *Config) checkLimits() error {
	if c.FlockSize > c.MaxFlockSize {
		return fmt.Errorf("config validation failed: flockSize %d exceeds maxFlockSize %d", c.FlockSize, c.MaxFlockSize)
	}
	return nil
}

func validate(doc []byte) error {
	var v interface{}
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func yamlToJSON(b []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config yaml: %w", err)
	}
	if v == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to convert config yaml: %w", err)
	}
	return out, nil
}

// ApplyEnv overrides fields from GEESE_* variables found by lookup, e.g.
// GEESE_FLOCK_SIZE=300 or GEESE_LOG_LEVEL=debug. Pass os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	floats := map[string]*float64{
		"WORLD_WIDTH":       &c.WorldWidth,
		"WORLD_HEIGHT":      &c.WorldHeight,
		"MAX_SPEED":         &c.MaxSpeed,
		"MAX_FORCE":         &c.MaxForce,
		"SEPARATION_RADIUS": &c.SeparationRadius,
		"NEIGHBOR_RADIUS":   &c.NeighborRadius,
		"SEPARATION_WEIGHT": &c.SeparationWeight,
		"ALIGNMENT_WEIGHT":  &c.AlignmentWeight,
		"COHESION_WEIGHT":   &c.CohesionWeight,
		"ATTRACTOR_WEIGHT":  &c.AttractorWeight,
		"ATTRACTOR_FALLOFF": &c.AttractorFalloff,
	}
	ints := map[string]*int{
		"FLOCK_SIZE":         &c.FlockSize,
		"THROTTLE_THRESHOLD": &c.ThrottleThreshold,
		"INFO_INTERVAL_MS":   &c.InfoIntervalMs,
		"MAX_FLOCK_SIZE":     &c.MaxFlockSize,
		"MAX_ATTRACTORS":     &c.MaxAttractors,
	}
	strs := map[string]*string{
		"BACKGROUND":  &c.Background,
		"INK":         &c.Ink,
		"LISTEN_ADDR": &c.ListenAddr,
		"LOG_LEVEL":   &c.LogLevel,
	}

	for key, dst := range floats {
		if s, ok := lookup(EnvPrefix + key); ok {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = v
		}
	}
	for key, dst := range ints {
		if s, ok := lookup(EnvPrefix + key); ok {
			v, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = v
		}
	}
	for key, dst := range strs {
		if s, ok := lookup(EnvPrefix + key); ok {
			*dst = s
		}
	}
	if s, ok := lookup(EnvPrefix + "SEED"); ok {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSEED: %w", EnvPrefix, err)
		}
		c.Seed = v
	}
	if s, ok := lookup(EnvPrefix + "SHOW_SPRITE"); ok {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid %sSHOW_SPRITE: %w", EnvPrefix, err)
		}
		c.ShowSprite = v
	}
	return nil
}

// GooseParams returns the steering rules.
func (c *Config) GooseParams() goose.Params {
	return goose.Params{
		MaxSpeed:         c.MaxSpeed,
		MaxForce:         c.MaxForce,
		SeparationRadius: c.SeparationRadius,
		NeighborRadius:   c.NeighborRadius,
		SeparationWeight: c.SeparationWeight,
		AlignmentWeight:  c.AlignmentWeight,
		CohesionWeight:   c.CohesionWeight,
		AttractorWeight:  c.AttractorWeight,
		AttractorFalloff: c.AttractorFalloff,
	}
}

// Bounds returns the world size.
func (c *Config) Bounds() geometry.Size {
	return geometry.NewSize(c.WorldWidth, c.WorldHeight)
}

// InfoInterval returns the info push period, 0 when disabled.
func (c *Config) InfoInterval() time.Duration {
	return time.Duration(c.InfoIntervalMs) * time.Millisecond
}

// Colors returns the background and ink colours.
func (c *Config) Colors() (background, ink color.RGBA, err error) {
	if background, err = parseHexColor(c.Background); err != nil {
		return
	}
	ink, err = parseHexColor(c.Ink)
	return
}

func parseHexColor(s string) (color.RGBA, error) {
	var r, g, b uint8
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid colour %q, want #rrggbb", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
