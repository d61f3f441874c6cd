package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/viper"

	"shedmap/internal/geom"
	"shedmap/internal/heatmap"
	"shedmap/internal/render"
)

// Config holds all application configuration.
type Config struct {
	API  APIConfig  `mapstructure:"api"`
	Grid GridConfig `mapstructure:"grid"`
	View ViewConfig `mapstructure:"view"`
	Draw DrawConfig `mapstructure:"draw"`
	Log  LogConfig  `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// GridConfig bounds the point spacing sent with each grid request.
type GridConfig struct {
	SpacingM int `mapstructure:"spacing_m"`
	MinM     int `mapstructure:"min_m"`
	MaxM     int `mapstructure:"max_m"`
	StepM    int `mapstructure:"step_m"`
}

type ViewConfig struct {
	Mode      string  `mapstructure:"mode"`
	Metric    string  `mapstructure:"metric"`
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLon float64 `mapstructure:"center_lon"`
	Zoom      float64 `mapstructure:"zoom"`
	PitchDeg  float64 `mapstructure:"pitch_deg"`
	FovDeg    float64 `mapstructure:"fov_deg"`
	Ellipsoid string  `mapstructure:"ellipsoid"`
	GridDir   string  `mapstructure:"grid_dir"`
}

func (v ViewConfig) Center() orb.Point { return orb.Point{v.CenterLon, v.CenterLat} }

type DrawConfig struct {
	MinExtentDeg float64 `mapstructure:"min_extent_deg"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables. paths
// are searched for config.yaml; the default is "." and "./configs".
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("api.base_url", "http://127.0.0.1:8000/api")
	v.SetDefault("api.timeout_seconds", 60)
	v.SetDefault("grid.spacing_m", 100)
	v.SetDefault("grid.min_m", 50)
	v.SetDefault("grid.max_m", 500)
	v.SetDefault("grid.step_m", 50)
	v.SetDefault("view.mode", "2d")
	v.SetDefault("view.metric", "area")
	v.SetDefault("view.center_lat", 35.2)
	v.SetDefault("view.center_lon", -80.8)
	v.SetDefault("view.zoom", 14)
	v.SetDefault("view.pitch_deg", -45)
	v.SetDefault("view.fov_deg", 60)
	v.SetDefault("view.ellipsoid", "wgs84")
	v.SetDefault("view.grid_dir", ".")
	v.SetDefault("draw.min_extent_deg", geom.MinExtent)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "shedmap.log")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Environment variables: SHEDMAP_API_BASE_URL → api.base_url
	v.SetEnvPrefix("SHEDMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every field is present and sane.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.TimeoutSeconds <= 0 {
		errs = append(errs, "api.timeout_seconds must be positive")
	}

	g := c.Grid
	switch {
	case g.MinM <= 0 || g.StepM <= 0:
		errs = append(errs, "grid.min_m and grid.step_m must be positive")
	case g.MaxM < g.MinM:
		errs = append(errs, fmt.Sprintf("grid.max_m (%d) must be >= grid.min_m (%d)", g.MaxM, g.MinM))
	case g.SpacingM < g.MinM || g.SpacingM > g.MaxM || (g.SpacingM-g.MinM)%g.StepM != 0:
		errs = append(errs, fmt.Sprintf("grid.spacing_m must be %d..%d in steps of %d, got %d", g.MinM, g.MaxM, g.StepM, g.SpacingM))
	}

	if _, err := render.ParseViewMode(c.View.Mode); err != nil {
		errs = append(errs, "view.mode: "+err.Error())
	}
	if _, err := heatmap.ParseMode(c.View.Metric); err != nil {
		errs = append(errs, "view.metric: "+err.Error())
	}
	if err := geom.ValidateCoord(c.View.CenterLon, c.View.CenterLat); err != nil {
		errs = append(errs, "view center: "+err.Error())
	}
	if c.View.Zoom < 0 || c.View.Zoom > 19 {
		errs = append(errs, fmt.Sprintf("view.zoom must be 0-19, got %g", c.View.Zoom))
	}
	if c.View.PitchDeg < -90 || c.View.PitchDeg > -15 {
		errs = append(errs, fmt.Sprintf("view.pitch_deg must be -90..-15, got %g", c.View.PitchDeg))
	}
	if c.View.FovDeg <= 0 || c.View.FovDeg >= 180 {
		errs = append(errs, fmt.Sprintf("view.fov_deg must be in (0, 180), got %g", c.View.FovDeg))
	}
	if _, err := render.ParseEllipsoid(c.View.Ellipsoid); err != nil {
		errs = append(errs, "view.ellipsoid: "+err.Error())
	}

	if c.Draw.MinExtentDeg <= 0 {
		errs = append(errs, "draw.min_extent_deg must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RenderOptions maps the view section onto renderer options.
func (c *Config) RenderOptions() render.Options {
	ell, err := render.ParseEllipsoid(c.View.Ellipsoid)
	if err != nil {
		ell = render.WGS84
	}
	return render.Options{
		Center:    c.View.Center(),
		Zoom:      c.View.Zoom,
		PitchDeg:  c.View.PitchDeg,
		FovDeg:    c.View.FovDeg,
		Ellipsoid: ell,
	}
}
