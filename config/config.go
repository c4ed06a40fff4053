// Package config loads and hot-reloads the server's typed configuration
// document (spec.md §6 "Configuration"). Grounded on the teacher's
// vault/decorator config-struct-plus-defaults convention: a single typed
// struct decoded from YAML, with defaults applied post-unmarshal rather than
// scattered through the zero value.
package config

import (
	"os"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/latticedb/lattice/errs"
	"github.com/latticedb/lattice/logging"
)

var (
	ErrMissingServerAddress = errs.Code{Component: "config", Number: 1, Name: "missing_server_address"}
	ErrMissingDataDirectory = errs.Code{Component: "config", Number: 2, Name: "missing_data_directory"}
	ErrSchemaValidation     = errs.Code{Component: "config", Number: 3, Name: "schema_validation"}
)

// Encryption holds the server's TLS material (spec.md §6 "encryption
// (enabled, cert, cert-key, root-ca)").
type Encryption struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	CertKey string `yaml:"cert_key"`
	RootCA  string `yaml:"root_ca"`
}

// Diagnostics holds the reporting/monitoring flags spec.md §6 names.
type Diagnostics struct {
	Reporting     bool `yaml:"reporting"`
	Monitoring    bool `yaml:"monitoring"`
	MonitoringPort int `yaml:"monitoring_port"`
}

// Config is the typed root configuration document (spec.md §6
// "Configuration"). Fields marked required are validated by Validate, not
// by the YAML decoder, so a config file may omit them and still decode
// successfully before being rejected with a precise error.
type Config struct {
	ServerAddress string        `yaml:"server_address"`
	HTTPAddress   string        `yaml:"http_address,omitempty"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	Encryption    Encryption    `yaml:"encryption"`
	Diagnostics   Diagnostics   `yaml:"diagnostics"`
	DataDirectory string        `yaml:"data_directory"`
	Development   bool          `yaml:"development"`
}

// defaults mirrors the teacher's convention of applying defaults once,
// after decoding, rather than relying on zero values meaning "unset".
func (c *Config) defaults() {
	if c.TokenTTL == 0 {
		c.TokenTTL = 4 * time.Hour
	}
	if c.Diagnostics.MonitoringPort == 0 {
		c.Diagnostics.MonitoringPort = 9100
	}
}

// Validate checks the required fields and schema-level constraints spec.md
// §6 implies (a server must bind somewhere, data must live somewhere).
func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return errs.New(ErrMissingServerAddress, "server_address is required")
	}
	if c.DataDirectory == "" {
		return errs.New(ErrMissingDataDirectory, "data_directory is required")
	}
	return nil
}

// Load decodes a Config from path, applies defaults, and validates it. When
// schema is non-nil the raw YAML is additionally checked against it via
// jsonschema before being trusted (SPEC_FULL §10.3 "catches malformed
// deployments before the server binds a port").
func Load(path string, schema *jsonschema.Schema) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if schema != nil {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if err := schema.Validate(toJSONCompatible(doc)); err != nil {
			return nil, errs.Wrap(ErrSchemaValidation, err, "config %q failed schema validation", path)
		}
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	c.defaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// toJSONCompatible converts yaml.Unmarshal's map[string]any output (whose
// nested maps decode as map[string]any already in yaml.v3, unlike yaml.v2's
// map[interface{}]interface{}) into the shape jsonschema.Validate expects;
// kept as a named step so a future yaml.v2 fallback wouldn't silently break
// schema validation.
func toJSONCompatible(v any) any { return v }

// Watcher hot-reloads the subset of Config spec.md §6 allows to change
// without a restart: logging level and diagnostics flags. The listen
// address and data directory are read once at Load and never revisited.
type Watcher struct {
	mu     sync.RWMutex
	path   string
	schema *jsonschema.Schema
	cur    *Config
	onErr  func(error)
}

// NewWatcher starts watching path for writes, reloading and applying the
// hot-reloadable fields on every change (SPEC_FULL §10.3).
func NewWatcher(path string, schema *jsonschema.Schema, initial *Config, onErr func(error)) (*Watcher, func() error, error) {
	w := &Watcher{path: path, schema: schema, cur: initial, onErr: onErr}
	fsw, err := newFSWatcher(path, w.reload)
	if err != nil {
		return nil, nil, err
	}
	return w, fsw, nil
}

func (w *Watcher) reload() {
	next, err := Load(w.path, w.schema)
	if err != nil {
		if w.onErr != nil {
			w.onErr(err)
		}
		return
	}
	w.mu.Lock()
	w.cur = next
	w.mu.Unlock()
	if next.Development {
		logging.SetLevel(zapcore.DebugLevel)
	} else {
		logging.SetLevel(zapcore.InfoLevel)
	}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}
