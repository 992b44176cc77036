// Package config holds the process-wide Config struct, its defaults,
// and the flag/YAML override layers the entry point composes at
// startup (spec.md's ambient configuration concern; no config surface
// is described by the distilled spec itself, so this package follows
// the shape of the teacher's internal/server.Config/DefaultConfig).
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a geodnsd process.
type Config struct {
	// Listen addresses.
	UDPAddr string `yaml:"udp_addr"`
	TCPAddr string `yaml:"tcp_addr"`

	// UDPListeners is the number of SO_REUSEPORT UDP sockets to open;
	// one goroutine per listener, each owning its own reqctx.Thread.
	UDPListeners int `yaml:"udp_listeners"`

	// ZoneDir is the root of the zone-source directory tree (spec.md §6
	// naming conventions: ROOT_ZONE, "@" => "/", dotfiles excluded).
	ZoneDir string `yaml:"zone_dir"`

	// MaxResponse is the largest response this server will build before
	// a UDP client without EDNS0 negotiates down to 512.
	MaxResponse int `yaml:"max_response"`
	// MaxCNAMEDepth bounds the CNAME chase loop (spec.md §4.4 step 4).
	MaxCNAMEDepth int `yaml:"max_cname_depth"`
	// MaxAddtlRRSets bounds how many Addr RR-sets enqueueGlue will add
	// to the additional section per response.
	MaxAddtlRRSets int `yaml:"max_addtl_rrsets"`
	// AdvertisedUDPSize is this server's own OPT RR receive-size
	// advertisement (spec.md §4.2, 4096-64000, default 16384).
	AdvertisedUDPSize int `yaml:"advertised_udp_size"`
	// CompTargetsMax bounds the per-request compression-target list.
	CompTargetsMax int `yaml:"comp_targets_max"`
	// IncludeOptionalNS controls whether a NOERROR answer also carries
	// the zone's NS RR-set in the authority section.
	IncludeOptionalNS bool `yaml:"include_optional_ns"`
	// ECSEnabled gates EDNS Client Subnet option parsing and echo.
	ECSEnabled bool `yaml:"ecs_enabled"`

	// StatsAddr is wired for a future HTTP stats endpoint but the
	// endpoint itself is out of scope; kept so the collector has a
	// configured address to bind once one exists.
	StatsAddr string `yaml:"stats_addr"`
	// StatsLogInterval is how often the entry point logs a stats
	// snapshot to stderr.
	StatsLogInterval time.Duration `yaml:"stats_log_interval"`

	// ReloadCheckInterval paces the zone directory rescan (wired into
	// golang.org/x/time/rate in internal/zoneload).
	ReloadCheckInterval time.Duration `yaml:"reload_check_interval"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		UDPAddr:             ":53",
		TCPAddr:             ":53",
		UDPListeners:        runtime.NumCPU(),
		ZoneDir:             "/etc/geodnsd/zones",
		MaxResponse:         16384,
		MaxCNAMEDepth:       16,
		MaxAddtlRRSets:      32,
		AdvertisedUDPSize:   16384,
		CompTargetsMax:      64,
		IncludeOptionalNS:   true,
		ECSEnabled:          true,
		StatsAddr:           ":3506",
		StatsLogInterval:    60 * time.Second,
		ReloadCheckInterval: 2 * time.Second,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
	}
}

// LoadYAML reads path and merges its fields over cfg, returning the
// merged result. A missing file is not an error; it means "use cfg
// unchanged".
func LoadYAML(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.UDPListeners < 1 {
		return fmt.Errorf("config: udp_listeners must be >= 1")
	}
	if c.AdvertisedUDPSize < 4096 || c.AdvertisedUDPSize > 64000 {
		return fmt.Errorf("config: advertised_udp_size must be in [4096, 64000]")
	}
	if c.MaxCNAMEDepth < 1 {
		return fmt.Errorf("config: max_cname_depth must be >= 1")
	}
	if c.ZoneDir == "" {
		return fmt.Errorf("config: zone_dir must be set")
	}
	return nil
}
