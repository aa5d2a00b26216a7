package snowfield

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WindDirection selects the sign policy of the wind signal.
type WindDirection string

const (
	WindLeft   WindDirection = "left"
	WindRight  WindDirection = "right"
	WindRandom WindDirection = "random"
)

// Config holds every tunable recognized by a Session. Field names mirror
// the option keys of the embedding layer, so a yaml document written for
// it loads directly.
type Config struct {
	// Particle population.
	Snowmax     int     `yaml:"snowmax"`     // particle count
	SinkSpeed   float64 `yaml:"sinkspeed"`   // base fall speed multiplier
	SnowMinSize float64 `yaml:"snowminsize"` // smallest particle, px
	SnowMaxSize float64 `yaml:"snowmaxsize"` // largest particle, px

	// Appearance.
	SnowColor     []string `yaml:"snowcolor"`     // hex tint palette for monotone cells
	SnowLetters   []string `yaml:"snowletters"`   // glyphs rendered into the atlas
	SnowSentences []string `yaml:"snowsentences"` // sentence pool, sampled round-robin
	SentenceCount int      `yaml:"sentenceCount"` // sentence particles among Snowmax

	// Secondary image layer.
	GifURLs  []string `yaml:"gifUrls"`
	GifCount int      `yaml:"gifCount"`

	// Pointer interaction.
	MouseRadius          float64 `yaml:"mouseRadius"`
	MouseForce           float64 `yaml:"mouseForce"`
	MouseImpulseStrength float64 `yaml:"mouseImpulseStrength"`
	MouseDragThreshold   float64 `yaml:"mouseDragThreshold"` // px/frame of pointer speed before drag kicks in
	MouseDragStrength    float64 `yaml:"mouseDragStrength"`

	// Collisions.
	EnableCollisions     bool    `yaml:"enableCollisions"`
	CollisionDamping     float64 `yaml:"collisionDamping"` // restitution, (0,1]
	CollisionCheckRadius float64 `yaml:"collisionCheckRadius"`

	// Wind.
	WindEnabled       bool          `yaml:"windEnabled"`
	WindDirection     WindDirection `yaml:"windDirection"`
	WindStrength      float64       `yaml:"windStrength"`
	WindGustFrequency float64       `yaml:"windGustFrequency"`
}

// DefaultConfig returns a Config with the stock tuning: a moderate field
// of snow glyphs, collisions and wind on, no sentences or images.
func DefaultConfig() Config {
	return Config{
		Snowmax:     120,
		SinkSpeed:   1.0,
		SnowMinSize: 12,
		SnowMaxSize: 30,

		SnowColor:   []string{"#ffffff", "#d0e7ff", "#f6f6f6"},
		SnowLetters: []string{"❄", "❅", "❆"},

		GifCount: 0,

		MouseRadius:          150,
		MouseForce:           60,
		MouseImpulseStrength: 0.25,
		MouseDragThreshold:   2.0,
		MouseDragStrength:    0.5,

		EnableCollisions:     true,
		CollisionDamping:     0.95,
		CollisionCheckRadius: 60,

		WindEnabled:       true,
		WindDirection:     WindRandom,
		WindStrength:      30,
		WindGustFrequency: 0.5,
	}
}

// LoadConfig reads a yaml config file, applying defaults for any key the
// file omits.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path is user-provided
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize clamps out-of-range values into usable ones. It is applied
// after every load and patch so the simulation never sees a degenerate
// tuning (zero-size particles, inverted size band, negative counts).
func (c *Config) Normalize() {
	if c.Snowmax < 0 {
		c.Snowmax = 0
	}
	if c.SnowMinSize <= 0 {
		c.SnowMinSize = 1
	}
	if c.SnowMaxSize < c.SnowMinSize {
		c.SnowMaxSize = c.SnowMinSize
	}
	if c.SentenceCount < 0 {
		c.SentenceCount = 0
	}
	if c.SentenceCount > c.Snowmax {
		c.SentenceCount = c.Snowmax
	}
	if len(c.SnowSentences) == 0 {
		c.SentenceCount = 0
	}
	if c.GifCount < 0 {
		c.GifCount = 0
	}
	if len(c.GifURLs) == 0 {
		c.GifCount = 0
	}
	if c.MouseRadius < 0 {
		c.MouseRadius = 0
	}
	if c.MouseDragThreshold < 0 {
		c.MouseDragThreshold = 0
	}
	if c.CollisionDamping <= 0 || c.CollisionDamping > 1 {
		c.CollisionDamping = 0.95
	}
	if c.CollisionCheckRadius < 0 {
		c.CollisionCheckRadius = 0
	}
	if c.WindStrength < 0 {
		c.WindStrength = 0
	}
	if c.WindGustFrequency <= 0 {
		c.WindGustFrequency = 0.5
	}
	switch c.WindDirection {
	case WindLeft, WindRight, WindRandom:
	default:
		c.WindDirection = WindRandom
	}
	if len(c.SnowLetters) == 0 {
		c.SnowLetters = []string{"❄"}
	}
	if len(c.SnowColor) == 0 {
		c.SnowColor = []string{"#ffffff"}
	}
}

// Validate reports tunings Normalize cannot repair.
func (c *Config) Validate() error {
	if c.SinkSpeed < 0 {
		return fmt.Errorf("%w: sinkspeed must be >= 0, got %v", ErrInvalidConfig, c.SinkSpeed)
	}
	if c.MouseForce < 0 {
		return fmt.Errorf("%w: mouseForce must be >= 0, got %v", ErrInvalidConfig, c.MouseForce)
	}
	return nil
}

// Patch is a partial configuration update. Nil fields are left unchanged.
// Patches are merged atomically at the top of the next frame, never
// mid-frame.
type Patch struct {
	Snowmax     *int     `yaml:"snowmax,omitempty"`
	SinkSpeed   *float64 `yaml:"sinkspeed,omitempty"`
	SnowMinSize *float64 `yaml:"snowminsize,omitempty"`
	SnowMaxSize *float64 `yaml:"snowmaxsize,omitempty"`

	SnowColor     []string `yaml:"snowcolor,omitempty"`
	SnowLetters   []string `yaml:"snowletters,omitempty"`
	SnowSentences []string `yaml:"snowsentences,omitempty"`
	SentenceCount *int     `yaml:"sentenceCount,omitempty"`

	GifURLs  []string `yaml:"gifUrls,omitempty"`
	GifCount *int     `yaml:"gifCount,omitempty"`

	MouseRadius          *float64 `yaml:"mouseRadius,omitempty"`
	MouseForce           *float64 `yaml:"mouseForce,omitempty"`
	MouseImpulseStrength *float64 `yaml:"mouseImpulseStrength,omitempty"`
	MouseDragThreshold   *float64 `yaml:"mouseDragThreshold,omitempty"`
	MouseDragStrength    *float64 `yaml:"mouseDragStrength,omitempty"`

	EnableCollisions     *bool    `yaml:"enableCollisions,omitempty"`
	CollisionDamping     *float64 `yaml:"collisionDamping,omitempty"`
	CollisionCheckRadius *float64 `yaml:"collisionCheckRadius,omitempty"`

	WindEnabled       *bool          `yaml:"windEnabled,omitempty"`
	WindDirection     *WindDirection `yaml:"windDirection,omitempty"`
	WindStrength      *float64       `yaml:"windStrength,omitempty"`
	WindGustFrequency *float64       `yaml:"windGustFrequency,omitempty"`
}

// Apply merges the patch into cfg and re-normalizes the result.
func (p *Patch) Apply(cfg *Config) {
	if p == nil {
		return
	}
	if p.Snowmax != nil {
		cfg.Snowmax = *p.Snowmax
	}
	if p.SinkSpeed != nil {
		cfg.SinkSpeed = *p.SinkSpeed
	}
	if p.SnowMinSize != nil {
		cfg.SnowMinSize = *p.SnowMinSize
	}
	if p.SnowMaxSize != nil {
		cfg.SnowMaxSize = *p.SnowMaxSize
	}
	if p.SnowColor != nil {
		cfg.SnowColor = p.SnowColor
	}
	if p.SnowLetters != nil {
		cfg.SnowLetters = p.SnowLetters
	}
	if p.SnowSentences != nil {
		cfg.SnowSentences = p.SnowSentences
	}
	if p.SentenceCount != nil {
		cfg.SentenceCount = *p.SentenceCount
	}
	if p.GifURLs != nil {
		cfg.GifURLs = p.GifURLs
	}
	if p.GifCount != nil {
		cfg.GifCount = *p.GifCount
	}
	if p.MouseRadius != nil {
		cfg.MouseRadius = *p.MouseRadius
	}
	if p.MouseForce != nil {
		cfg.MouseForce = *p.MouseForce
	}
	if p.MouseImpulseStrength != nil {
		cfg.MouseImpulseStrength = *p.MouseImpulseStrength
	}
	if p.MouseDragThreshold != nil {
		cfg.MouseDragThreshold = *p.MouseDragThreshold
	}
	if p.MouseDragStrength != nil {
		cfg.MouseDragStrength = *p.MouseDragStrength
	}
	if p.EnableCollisions != nil {
		cfg.EnableCollisions = *p.EnableCollisions
	}
	if p.CollisionDamping != nil {
		cfg.CollisionDamping = *p.CollisionDamping
	}
	if p.CollisionCheckRadius != nil {
		cfg.CollisionCheckRadius = *p.CollisionCheckRadius
	}
	if p.WindEnabled != nil {
		cfg.WindEnabled = *p.WindEnabled
	}
	if p.WindDirection != nil {
		cfg.WindDirection = *p.WindDirection
	}
	if p.WindStrength != nil {
		cfg.WindStrength = *p.WindStrength
	}
	if p.WindGustFrequency != nil {
		cfg.WindGustFrequency = *p.WindGustFrequency
	}
	cfg.Normalize()
}
