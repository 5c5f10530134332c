// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dispacio/internal/geo"
	"dispacio/internal/solver"
	"dispacio/internal/vrp"
	"dispacio/internal/zone"
)

// FileEnv names the environment variable holding the YAML config path.
const FileEnv = "DISPACIO_CONFIG"

type Config struct {
	Port             string    `yaml:"port"`
	DatabaseURL      string    `yaml:"databaseUrl"`
	DBMigrate        bool      `yaml:"dbMigrate"`
	RedisURL         string    `yaml:"redisUrl"`
	AllowOrigins     []string  `yaml:"allowOrigins"`
	RateRPS          float64   `yaml:"rateRps"`
	RateBurst        int       `yaml:"rateBurst"`
	MaxParallelZones int       `yaml:"maxParallelZones"`
	Solver           Solver    `yaml:"solver"`
	Optimizer        Optimizer `yaml:"optimizer"`
	Clustering       Cluster   `yaml:"clustering"`
	Auth             Auth      `yaml:"auth"`
}

type Solver struct {
	Engine        string `yaml:"engine"` // alns, remote or none
	URL           string `yaml:"url"`
	TimeLimitMs   int    `yaml:"timeLimitMs"`
	HardCeilingMs int    `yaml:"hardCeilingMs"`
	Seed          int64  `yaml:"seed"`
	Iterations    int    `yaml:"iterations"`
}

type Optimizer struct {
	SpeedKph        float64    `yaml:"speedKph"`
	ServiceSec      int64      `yaml:"serviceSec"`
	DefaultCapacity int64      `yaml:"defaultCapacity"`
	FallbackDepot   *geo.Point `yaml:"fallbackDepot"`
}

type Cluster struct {
	RadiusPx  float64 `yaml:"radiusPx"`
	MinPoints int     `yaml:"minPoints"`
}

type Auth struct {
	Mode        string `yaml:"mode"` // dev or hmac
	HMACSecret  string `yaml:"hmacSecret"`
	TenantClaim string `yaml:"tenantClaim"`
	RoleClaim   string `yaml:"roleClaim"`
	DriverClaim string `yaml:"driverClaim"`
}

// Default returns the built-in settings.
func Default() Config {
	zo := zone.DefaultOptions()
	vo := vrp.DefaultOptions()
	return Config{
		Port:             "8080",
		DBMigrate:        true,
		AllowOrigins:     []string{"*"},
		RateRPS:          5,
		RateBurst:        10,
		MaxParallelZones: 4,
		Solver: Solver{
			Engine:        "alns",
			TimeLimitMs:   int(solver.DefaultTimeLimit / time.Millisecond),
			HardCeilingMs: int(solver.DefaultHardCeiling / time.Millisecond),
		},
		Optimizer: Optimizer{
			SpeedKph:        vo.SpeedKph,
			ServiceSec:      vo.ServiceSec,
			DefaultCapacity: vo.DefaultCapacity,
			FallbackDepot:   &geo.Point{Lat: 25.2048, Lng: 55.2708},
		},
		Clustering: Cluster{RadiusPx: zo.Radius, MinPoints: zo.MinPoints},
		Auth:       Auth{Mode: "dev", TenantClaim: "tenant", RoleClaim: "role", DriverClaim: "sub"},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// DISPACIO_CONFIG (if any), then environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, set func(string) error) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		if err := set(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	intVar := func(dst *int) func(string) error {
		return func(s string) error { n, err := strconv.Atoi(s); *dst = n; return err }
	}
	int64Var := func(dst *int64) func(string) error {
		return func(s string) error { n, err := strconv.ParseInt(s, 10, 64); *dst = n; return err }
	}
	floatVar := func(dst *float64) func(string) error {
		return func(s string) error { f, err := strconv.ParseFloat(s, 64); *dst = f; return err }
	}

	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	if v, ok := lookup("DB_MIGRATE"); ok && v != "" {
		c.DBMigrate = !strings.EqualFold(v, "false") && v != "0"
	}
	if v, ok := lookup("ALLOW_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		c.AllowOrigins = splitList(v)
	}
	num("RATE_RPS", floatVar(&c.RateRPS))
	num("RATE_BURST", intVar(&c.RateBurst))
	num("MAX_PARALLEL_ZONES", intVar(&c.MaxParallelZones))

	str("SOLVER_ENGINE", &c.Solver.Engine)
	c.Solver.Engine = strings.ToLower(c.Solver.Engine)
	str("SOLVER_URL", &c.Solver.URL)
	num("SOLVER_TIME_LIMIT_MS", intVar(&c.Solver.TimeLimitMs))
	num("SOLVER_HARD_CEILING_MS", intVar(&c.Solver.HardCeilingMs))
	num("SOLVER_SEED", int64Var(&c.Solver.Seed))
	num("SOLVER_ITERATIONS", intVar(&c.Solver.Iterations))

	num("OPT_SPEED_KPH", floatVar(&c.Optimizer.SpeedKph))
	num("OPT_SERVICE_SEC", int64Var(&c.Optimizer.ServiceSec))
	num("OPT_DEFAULT_CAPACITY", int64Var(&c.Optimizer.DefaultCapacity))
	if v, ok := lookup("OPT_FALLBACK_DEPOT"); ok && strings.TrimSpace(v) != "" {
		p, err := parsePoint(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("OPT_FALLBACK_DEPOT: %w", err))
		} else {
			c.Optimizer.FallbackDepot = &p
		}
	}

	num("CLUSTER_RADIUS_PX", floatVar(&c.Clustering.RadiusPx))
	num("CLUSTER_MIN_POINTS", intVar(&c.Clustering.MinPoints))

	str("AUTH_MODE", &c.Auth.Mode)
	c.Auth.Mode = strings.ToLower(c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	str("AUTH_TENANT_CLAIM", &c.Auth.TenantClaim)
	str("AUTH_ROLE_CLAIM", &c.Auth.RoleClaim)
	str("AUTH_DRIVER_CLAIM", &c.Auth.DriverClaim)
	return errors.Join(errs...)
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Solver.Engine {
	case "alns", "none":
	case "remote":
		if c.Solver.URL == "" {
			errs = append(errs, errors.New("solver.url is required for the remote engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown solver engine %q", c.Solver.Engine))
	}
	if c.Solver.TimeLimitMs < 0 || c.Solver.HardCeilingMs < 0 {
		errs = append(errs, errors.New("solver limits must be >= 0"))
	}
	if c.Optimizer.SpeedKph <= 0 {
		errs = append(errs, errors.New("optimizer.speedKph must be > 0"))
	}
	if c.Optimizer.ServiceSec < 0 {
		errs = append(errs, errors.New("optimizer.serviceSec must be >= 0"))
	}
	if c.Optimizer.FallbackDepot != nil && !c.Optimizer.FallbackDepot.Valid() {
		errs = append(errs, errors.New("optimizer.fallbackDepot is not a valid coordinate"))
	}
	if c.Clustering.RadiusPx < 0 || c.Clustering.MinPoints < 0 {
		errs = append(errs, errors.New("clustering values must be >= 0"))
	}
	if c.RateRPS < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate limits must be >= 0"))
	}
	if c.MaxParallelZones < 1 {
		errs = append(errs, errors.New("maxParallelZones must be >= 1"))
	}
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			errs = append(errs, errors.New("auth.hmacSecret is required in hmac mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}
	return errors.Join(errs...)
}

func (c Config) TimeLimit() time.Duration {
	return time.Duration(c.Solver.TimeLimitMs) * time.Millisecond
}

func (c Config) HardCeiling() time.Duration {
	return time.Duration(c.Solver.HardCeilingMs) * time.Millisecond
}

// VRPOptions maps the optimizer section onto formulation options.
func (c Config) VRPOptions() vrp.Options {
	o := vrp.DefaultOptions()
	o.SpeedKph = c.Optimizer.SpeedKph
	o.ServiceSec = c.Optimizer.ServiceSec
	o.DefaultCapacity = c.Optimizer.DefaultCapacity
	return o
}

func (c Config) ZoneOptions() zone.Options {
	o := zone.DefaultOptions()
	if c.Clustering.RadiusPx > 0 {
		o.Radius = c.Clustering.RadiusPx
	}
	if c.Clustering.MinPoints > 0 {
		o.MinPoints = c.Clustering.MinPoints
	}
	return o
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parsePoint reads "lat,lng".
func parsePoint(v string) (geo.Point, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("want lat,lng, got %q", v)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("coordinate out of range: %q", v)
	}
	return p, nil
}
