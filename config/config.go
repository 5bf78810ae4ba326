// Package config loads service settings from a YAML file, an optional .env
// file and GLOBE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"web/communityglobe/cluster"
	"web/communityglobe/lod"
	"web/communityglobe/viewport"
)

type Config struct {
	Server struct {
		HTTPAddr string `yaml:"http_addr"` // gin listen address
		GRPCAddr string `yaml:"grpc_addr"` // runner listen address
		Upstream string `yaml:"upstream"`  // runner address dialled by the API gateway
	} `yaml:"server"`
	Data struct {
		RosterPath      string `yaml:"roster_path"`      // CSV feed loaded at startup, optional
		RosterDir       string `yaml:"roster_dir"`       // requested roster paths are resolved inside it
		SnapshotDir     string `yaml:"snapshot_dir"`     // where clustering snapshots are written
		CoordinateCache string `yaml:"coordinate_cache"` // mmap file of resolved coordinates, optional
	} `yaml:"data"`
	Clustering struct {
		Policy        string  `yaml:"policy"` // home-region or everywhere
		HomeState     string  `yaml:"home_state"`
		HomeCountry   string  `yaml:"home_country"`
		JitterDegrees float64 `yaml:"jitter_degrees"`
		SpreadDegrees float64 `yaml:"spread_degrees"`
		Seed          int64   `yaml:"seed"`
	} `yaml:"clustering"`
	LOD struct {
		Bands           []lod.Band `yaml:"bands"`
		MaxRenderPoints int        `yaml:"max_render_points"`
		Adaptive        bool       `yaml:"adaptive"`
	} `yaml:"lod"`
	Viewport struct {
		CountSlack      int     `yaml:"count_slack"`
		DistanceSlack   float64 `yaml:"distance_slack"`
		InitialDistance float64 `yaml:"initial_distance"`
	} `yaml:"viewport"`
	Runner struct {
		MaxSessions int           `yaml:"max_sessions"`
		IdleTimeout time.Duration `yaml:"idle_timeout"`
	} `yaml:"runner"`
	Log bool `yaml:"log"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.HTTPAddr = ":8000"
	cfg.Server.GRPCAddr = ":50051"
	cfg.Server.Upstream = "localhost:50051"
	cfg.Data.RosterDir = "data/rosters"
	cfg.Data.SnapshotDir = "data/snapshots"
	cfg.Clustering.Policy = string(cluster.PolicyHomeRegion)
	cfg.Clustering.HomeState = "HI"
	cfg.Clustering.HomeCountry = "USA"
	cfg.Clustering.JitterDegrees = 0.1
	cfg.Clustering.SpreadDegrees = 0.01
	cfg.Clustering.Seed = 42
	cfg.LOD.Bands = append([]lod.Band(nil), lod.DefaultBands...)
	cfg.LOD.MaxRenderPoints = lod.DefaultMaxRenderPoints
	cfg.LOD.Adaptive = true
	th := viewport.DefaultThresholds()
	cfg.Viewport.CountSlack = th.CountSlack
	cfg.Viewport.DistanceSlack = th.DistanceSlack
	cfg.Viewport.InitialDistance = viewport.DefaultDistance
	cfg.Runner.MaxSessions = 5
	cfg.Runner.IdleTimeout = 30 * time.Minute
	return cfg
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file. envFiles default to ".env"; missing env
// files are ignored and never override variables that are already set.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("GLOBE_HTTP_ADDR", &c.Server.HTTPAddr)
	str("GLOBE_GRPC_ADDR", &c.Server.GRPCAddr)
	str("GLOBE_UPSTREAM", &c.Server.Upstream)
	str("GLOBE_ROSTER_PATH", &c.Data.RosterPath)
	str("GLOBE_ROSTER_DIR", &c.Data.RosterDir)
	str("GLOBE_SNAPSHOT_DIR", &c.Data.SnapshotDir)
	str("GLOBE_COORDINATE_CACHE", &c.Data.CoordinateCache)
	str("GLOBE_POLICY", &c.Clustering.Policy)
	str("GLOBE_HOME_STATE", &c.Clustering.HomeState)
	str("GLOBE_HOME_COUNTRY", &c.Clustering.HomeCountry)

	if v, ok := os.LookupEnv("GLOBE_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GLOBE_SEED %q: %w", v, err)
		}
		c.Clustering.Seed = n
	}
	if v, ok := os.LookupEnv("GLOBE_MAX_RENDER_POINTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GLOBE_MAX_RENDER_POINTS %q: %w", v, err)
		}
		c.LOD.MaxRenderPoints = n
	}
	if v, ok := os.LookupEnv("GLOBE_MAX_SESSIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GLOBE_MAX_SESSIONS %q: %w", v, err)
		}
		c.Runner.MaxSessions = n
	}
	if v, ok := os.LookupEnv("GLOBE_IDLE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GLOBE_IDLE_TIMEOUT %q: %w", v, err)
		}
		c.Runner.IdleTimeout = d
	}
	if v, ok := os.LookupEnv("GLOBE_LOG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid GLOBE_LOG %q: %w", v, err)
		}
		c.Log = b
	}
	return nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch cluster.Policy(strings.ToLower(c.Clustering.Policy)) {
	case cluster.PolicyHomeRegion, cluster.PolicyEverywhere:
	default:
		return fmt.Errorf("invalid clustering policy %q", c.Clustering.Policy)
	}
	if c.Runner.MaxSessions <= 0 {
		return fmt.Errorf("runner.max_sessions must be positive, got %d", c.Runner.MaxSessions)
	}
	if _, err := lod.NewSelector(c.LODOptions()); err != nil {
		return fmt.Errorf("invalid lod settings: %w", err)
	}
	return nil
}

func (c *Config) HomeRegion() cluster.Region {
	return cluster.Region{State: c.Clustering.HomeState, Country: c.Clustering.HomeCountry}
}

func (c *Config) ClusterOptions() cluster.Options {
	return cluster.Options{
		Policy:        cluster.Policy(strings.ToLower(c.Clustering.Policy)),
		HomeRegion:    c.HomeRegion(),
		JitterDegrees: c.Clustering.JitterDegrees,
		SpreadDegrees: c.Clustering.SpreadDegrees,
		Seed:          c.Clustering.Seed,
		Log:           c.Log,
	}
}

func (c *Config) LODOptions() lod.Options {
	return lod.Options{
		Bands:           c.LOD.Bands,
		MaxRenderPoints: c.LOD.MaxRenderPoints,
		Adaptive:        c.LOD.Adaptive,
		HomeRegion:      c.HomeRegion(),
	}
}

func (c *Config) ViewportOptions() viewport.Options {
	return viewport.Options{
		Thresholds: viewport.Thresholds{
			CountSlack:    c.Viewport.CountSlack,
			DistanceSlack: c.Viewport.DistanceSlack,
		},
		InitialDistance: c.Viewport.InitialDistance,
		Log:             c.Log,
	}
}
