package main

import (
	"flag"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config controls one benchmark run. It is read from an optional YAML file
// and then overridden by any flags given on the command line.
type Config struct {
	Scale         int      `yaml:"scale"`
	Orders        []int    `yaml:"orders"`
	LSMThresholds []int    `yaml:"lsmThresholds"`
	CacheLimits   []int    `yaml:"cacheLimits"`
	CachePages    int      `yaml:"cachePages"`
	Workloads     []string `yaml:"workloads"`
	Out           string   `yaml:"out"`
	Pebble        bool     `yaml:"pebble"`
	RecFile       bool     `yaml:"recfile"`
	Plot          bool     `yaml:"plot"`
	DOT           bool     `yaml:"dot"`
	LogLevel      string   `yaml:"logLevel"`
	Seed          uint64   `yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Scale:         1000000,
		Orders:        []int{8, 32, 128},
		LSMThresholds: []int{1000, 10000},
		CacheLimits:   []int{100, 1000, 10000},
		CachePages:    64,
		Workloads:     []string{string(OLTP), string(OLAP), string(Reporting)},
		Out:           "results",
		Plot:          true,
		LogLevel:      "info",
		Seed:          1,
	}
}

// LoadConfig overlays the YAML file at path onto cfg.
func LoadConfig(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Scale < 1 {
		return errors.Newf("config: scale must be positive, got %d", c.Scale)
	}
	for _, o := range c.Orders {
		if o < 3 {
			return errors.Newf("config: orders: %d is below 3", o)
		}
	}
	for _, t := range c.LSMThresholds {
		if t < 1 {
			return errors.Newf("config: lsmThresholds: %d is not positive", t)
		}
	}
	for _, l := range c.CacheLimits {
		if l < 1 {
			return errors.Newf("config: cacheLimits: %d is not positive", l)
		}
	}
	if c.RecFile && c.CachePages < 1 {
		return errors.Newf("config: cachePages must be positive, got %d", c.CachePages)
	}
	for _, w := range c.Workloads {
		if !slices.Contains(allWorkloads, WorkloadType(w)) {
			return errors.Newf("config: unknown workload %q", w)
		}
	}
	if c.Out == "" {
		return errors.New("config: out must not be empty")
	}
	return nil
}

// intList is a comma-separated flag value.
type intList []int

func (l *intList) String() string {
	s := make([]string, len(*l))
	for i, v := range *l {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}

func (l *intList) Set(v string) error {
	*l = nil
	for _, f := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return errors.Wrapf(err, "bad list element %q", f)
		}
		*l = append(*l, n)
	}
	return nil
}

// ParseConfig builds the run configuration from command line arguments.
func ParseConfig(args []string) (Config, error) {
	def := DefaultConfig()
	fs := flag.NewFlagSet("bmark", flag.ContinueOnError)

	path := fs.String("config", "", "YAML config file")
	scale := fs.Int("scale", def.Scale, "keys loaded per suite")
	orders := intList(def.Orders)
	fs.Var(&orders, "orders", "comma-separated ordered map orders")
	thresholds := intList(def.LSMThresholds)
	fs.Var(&thresholds, "lsm", "comma-separated LSM memtable thresholds")
	limits := intList(def.CacheLimits)
	fs.Var(&limits, "cache", "comma-separated LRU limits for the cache suite")
	cachePages := fs.Int("pages", def.CachePages, "record file page cache size")
	workloads := fs.String("workloads", strings.Join(def.Workloads, ","), "comma-separated workloads (oltp, olap, range)")
	out := fs.String("out", def.Out, "output directory")
	pebble := fs.Bool("pebble", def.Pebble, "also benchmark pebble")
	recfile := fs.Bool("recfile", def.RecFile, "also benchmark the record file")
	plot := fs.Bool("plot", def.Plot, "render latency charts")
	dot := fs.Bool("dot", def.DOT, "export a Graphviz rendering of a small map")
	logLevel := fs.String("log", def.LogLevel, "log level")
	seed := fs.Uint64("seed", def.Seed, "workload random seed")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def
	if *path != "" {
		if err := LoadConfig(*path, &cfg); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scale":
			cfg.Scale = *scale
		case "orders":
			cfg.Orders = orders
		case "lsm":
			cfg.LSMThresholds = thresholds
		case "cache":
			cfg.CacheLimits = limits
		case "pages":
			cfg.CachePages = *cachePages
		case "workloads":
			cfg.Workloads = strings.Split(*workloads, ",")
		case "out":
			cfg.Out = *out
		case "pebble":
			cfg.Pebble = *pebble
		case "recfile":
			cfg.RecFile = *recfile
		case "plot":
			cfg.Plot = *plot
		case "dot":
			cfg.DOT = *dot
		case "log":
			cfg.LogLevel = *logLevel
		case "seed":
			cfg.Seed = *seed
		}
	})

	return cfg, cfg.Validate()
}
