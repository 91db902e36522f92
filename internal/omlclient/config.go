package omlclient

import (
	"encoding/xml"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is everything Init needs to build a Client: the recognized
// `--oml-*` flags (spec.md §6), with `OML_*` environment fallback applied
// to any flag left at its zero value, and an optional XML config file that
// overrides both.
//
// Grounded on cmd/cc-backend/cli.go's flat flag.*Var block, generalized
// from a single global flag.CommandLine to a private flag.FlagSet so
// Init(appName, args) can parse an arbitrary argument slice rather than
// os.Args -- required since a client library, unlike a standalone binary,
// does not own the process's argument vector.
type Config struct {
	SenderID    string
	Domain      string
	Collect     string
	ConfigFile  string
	Samples     int
	Interval    time.Duration
	ForceText   bool
	ForceBinary bool
	BufSize     int
	LogFile     string
	LogLevel    string
	Noop        bool
	ListFilters bool
	Help        bool
}

const defaultCollectPort = "3003"

// bufferedwriterDefaultBudget mirrors ChunkSize * a handful of links --
// generous enough that a modestly bursty client never advances past its
// initial allocation budget.
const bufferedwriterDefaultBudget = 8 * 8192

// ParseArgs parses args (typically the instrumented application's own
// argument vector with `--oml-*` options) into a Config, applying
// `OML_*` environment fallback to any flag not explicitly set, then
// layering an XML config file on top if `--oml-config`/`OML_CONFIG` names
// one.
func ParseArgs(appName string, args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	var expID, server, file string
	fs.StringVar(&cfg.SenderID, "oml-id", "", "Sender id")
	fs.StringVar(&cfg.Domain, "oml-domain", "", "Experimental domain (table namespace)")
	fs.StringVar(&expID, "oml-exp-id", "", "Obsolescent alias for --oml-domain")
	fs.StringVar(&cfg.Collect, "oml-collect", "", "Output destination URI")
	fs.StringVar(&server, "oml-server", "", "Obsolescent alias for --oml-collect")
	fs.StringVar(&file, "oml-file", "", "Obsolescent alias for --oml-collect")
	fs.StringVar(&cfg.ConfigFile, "oml-config", "", "XML configuration path")
	fs.IntVar(&cfg.Samples, "oml-samples", 0, "Default threshold N >= 1")
	fs.DurationVar(&cfg.Interval, "oml-interval", 0, "Default periodic interval")
	fs.BoolVar(&cfg.ForceText, "oml-text", false, "Force text encoding")
	fs.BoolVar(&cfg.ForceBinary, "oml-binary", false, "Force binary encoding")
	fs.IntVar(&cfg.BufSize, "oml-bufsize", bufferedwriterDefaultBudget, "Total chunk-ring budget in bytes")
	fs.StringVar(&cfg.LogFile, "oml-log-file", "", "Log file path")
	fs.StringVar(&cfg.LogLevel, "oml-log-level", "warn", "Log level")
	fs.BoolVar(&cfg.Noop, "oml-noop", false, "Silently discard all measurements")
	fs.BoolVar(&cfg.ListFilters, "oml-list-filters", false, "Print registered filters and exit")
	fs.BoolVar(&cfg.Help, "oml-help", false, "Print usage and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Domain == "" {
		cfg.Domain = expID
	}
	if cfg.Collect == "" {
		cfg.Collect = server
	}
	if cfg.Collect == "" {
		cfg.Collect = file
	}

	applyEnvFallback(&cfg)

	if cfg.ConfigFile != "" {
		if err := loadXMLConfig(cfg.ConfigFile, &cfg); err != nil {
			return Config{}, fmt.Errorf("omlclient: reading %s: %w", cfg.ConfigFile, err)
		}
	}

	if !ValidIdentifier(appName) {
		return Config{}, fmt.Errorf("omlclient: invalid app name %q", appName)
	}
	return cfg, nil
}

// applyEnvFallback fills any still-zero field from OML_* environment
// variables (spec.md §6: "may also be supplied via environment variable
// in uppercase with underscores").
func applyEnvFallback(cfg *Config) {
	if cfg.SenderID == "" {
		cfg.SenderID = os.Getenv("OML_ID")
	}
	if cfg.Domain == "" {
		cfg.Domain = os.Getenv("OML_DOMAIN")
	}
	if cfg.Collect == "" {
		cfg.Collect = os.Getenv("OML_COLLECT")
	}
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = os.Getenv("OML_CONFIG")
	}
	if cfg.Samples == 0 {
		if v := os.Getenv("OML_SAMPLES"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.Samples = n
			}
		}
	}
	if cfg.Interval == 0 {
		if v := os.Getenv("OML_INTERVAL"); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				cfg.Interval = time.Duration(secs * float64(time.Second))
			}
		}
	}
	if cfg.LogLevel == "" || cfg.LogLevel == "warn" {
		if v := os.Getenv("OML_LOG_LEVEL"); v != "" {
			cfg.LogLevel = v
		}
	}
	if cfg.LogFile == "" {
		cfg.LogFile = os.Getenv("OML_LOG_FILE")
	}
}

// xmlConfig mirrors the key/value tree the original XML config walker
// understands: a flat list of `<omlconfig>` / `<collect>`-style elements.
// Only the fields this client acts on are modeled; unknown elements are
// ignored by encoding/xml by default (forward compatible, like the
// header's unknown-key handling in §4.6).
type xmlConfig struct {
	XMLName xml.Name `xml:"omlconfig"`
	ID      string   `xml:"id,attr"`
	Domain  string   `xml:"domain,attr"`
	Collect []struct {
		URL string `xml:"url,attr"`
	} `xml:"collect"`
}

// loadXMLConfig overrides cfg with values found in path. No third-party
// XML tree-walker appears anywhere in the retrieved pack, so stdlib
// encoding/xml is used here (SPEC_FULL.md §A.2, a justified stdlib use).
func loadXMLConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var x xmlConfig
	if err := xml.Unmarshal(data, &x); err != nil {
		return err
	}
	if x.ID != "" {
		cfg.SenderID = x.ID
	}
	if x.Domain != "" {
		cfg.Domain = x.Domain
	}
	if len(x.Collect) > 0 && x.Collect[0].URL != "" {
		cfg.Collect = x.Collect[0].URL
	}
	return nil
}
