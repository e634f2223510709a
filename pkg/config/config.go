package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zoidberg-sync/zoidberg/pkg/gerrit"
	"github.com/zoidberg-sync/zoidberg/pkg/log"
)

// DefaultPort is the standard gerrit SSH port.
const DefaultPort = 29418

// ValidationError reports a malformed configuration: missing keys, bad
// regexes, or bindings that reference unknown actions or targets. It is
// fatal on first load and logged-but-ignored on reload.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Binding is one entry under a source's events or startup list: an
// action name, a target source, optional filters and whatever
// action-specific keys the entry carried.
type Binding struct {
	Action string
	Target string

	// BranchRe is compiled from branch-pattern; nil when the binding
	// has no branch filter.
	BranchRe *regexp.Regexp

	// Projects and Branches parameterize startup tasks.
	Projects []string
	Branches []string

	// Extra holds every other key of the YAML entry so plugin actions
	// can carry their own settings through the config untouched.
	Extra map[string]interface{}
}

// Source is one configured gerrit instance: connection details, content
// filters, event subscriptions and the runtime client slot.
type Source struct {
	Name        string
	Host        string
	Port        int
	Username    string
	KeyFilename string

	ProjectRe *regexp.Regexp

	// Events maps event kind to the ordered bindings subscribed to it.
	Events map[string][]*Binding

	// Startup bindings run once per successful (re)connection.
	Startup []*Binding

	// Client is the runtime slot. It is nil only transiently, on the
	// old side of a reload that moved the client to the new config.
	Client gerrit.Client
}

// ConnInfo returns the connection tuple for this source.
func (s *Source) ConnInfo() gerrit.ConnInfo {
	return gerrit.ConnInfo{
		Host:        s.Host,
		Port:        s.Port,
		Username:    s.Username,
		KeyFilename: s.KeyFilename,
	}
}

// Config is the parsed, validated in-memory configuration.
type Config struct {
	Gerrits map[string]*Source
	Plugins []string

	Path  string
	MTime time.Time
}

// SourceNames returns the configured source names sorted
// lexicographically, the deterministic polling order of the engine.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Gerrits))
	for name := range c.Gerrits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseClients shuts down every source whose client slot is non-nil.
// Nil slots are the clients handed over to a new config during reload.
func (c *Config) CloseClients() {
	logger := log.For("config")
	for _, name := range c.SourceNames() {
		source := c.Gerrits[name]
		if source.Client == nil {
			continue
		}
		logger.Info().Str("gerrit", name).Msg("Shutting down client")
		source.Client.Shutdown()
		logger.Info().Str("gerrit", name).Msg("Shut down client")
	}
}

// yamlRoot mirrors the top-level YAML document shape.
type yamlRoot struct {
	Plugins []string                `yaml:"plugins"`
	Gerrits []map[string]yamlSource `yaml:"gerrits"`
}

type yamlSource struct {
	Host           string                   `yaml:"host"`
	Port           int                      `yaml:"port"`
	Username       string                   `yaml:"username"`
	KeyFilename    string                   `yaml:"key_filename"`
	ProjectPattern string                   `yaml:"project-pattern"`
	Events         []map[string]interface{} `yaml:"events"`
	Startup        []map[string]interface{} `yaml:"startup"`
}

// Load reads and validates the YAML config at path, compiles its
// patterns and constructs an inactive client per source.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.Path = path
	cfg.MTime = st.ModTime()
	return cfg, nil
}

// Parse builds a Config from raw YAML. Clients are constructed inactive;
// nothing connects until the engine needs a source.
func Parse(data []byte) (*Config, error) {
	var root yamlRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, Validationf("malformed config: %v", err)
	}

	cfg := &Config{
		Gerrits: make(map[string]*Source),
		Plugins: root.Plugins,
	}

	for _, entry := range root.Gerrits {
		if len(entry) != 1 {
			return nil, Validationf("each gerrits entry must be a single-key mapping, got %d keys", len(entry))
		}
		for name, ys := range entry {
			source, err := buildSource(name, ys)
			if err != nil {
				return nil, err
			}
			cfg.Gerrits[name] = source
		}
	}

	return cfg, nil
}

func buildSource(name string, ys yamlSource) (*Source, error) {
	for key, val := range map[string]string{
		"host":            ys.Host,
		"username":        ys.Username,
		"key_filename":    ys.KeyFilename,
		"project-pattern": ys.ProjectPattern,
	} {
		if val == "" {
			return nil, Validationf("gerrit %s: missing required key %s", name, key)
		}
	}

	port := ys.Port
	if port == 0 {
		port = DefaultPort
	}

	projectRe, err := regexp.Compile(ys.ProjectPattern)
	if err != nil {
		return nil, Validationf("gerrit %s: invalid project-pattern: %v", name, err)
	}

	source := &Source{
		Name:        name,
		Host:        ys.Host,
		Port:        port,
		Username:    ys.Username,
		KeyFilename: ys.KeyFilename,
		ProjectRe:   projectRe,
		Events:      make(map[string][]*Binding),
	}

	for i, raw := range ys.Events {
		eventType := getString(raw, "type", "")
		if eventType == "" {
			return nil, Validationf("gerrit %s: events[%d]: missing type", name, i)
		}
		binding, err := buildBinding(name, raw)
		if err != nil {
			return nil, err
		}
		source.Events[eventType] = append(source.Events[eventType], binding)
	}

	for _, raw := range ys.Startup {
		binding, err := buildBinding(name, raw)
		if err != nil {
			return nil, err
		}
		source.Startup = append(source.Startup, binding)
	}

	source.Client = gerrit.NewClient(source.ConnInfo())
	return source, nil
}

func buildBinding(sourceName string, raw map[string]interface{}) (*Binding, error) {
	binding := &Binding{
		Action:   getString(raw, "action", ""),
		Target:   getString(raw, "target", ""),
		Projects: getStringList(raw, "projects"),
		Branches: getStringList(raw, "branches"),
		Extra:    make(map[string]interface{}),
	}

	if binding.Action == "" {
		return nil, Validationf("gerrit %s: binding missing action", sourceName)
	}

	if pattern := getString(raw, "branch-pattern", ""); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, Validationf(
				"gerrit %s: invalid branch-pattern for %s: %v", sourceName, binding.Action, err)
		}
		binding.BranchRe = re
	}

	for key, val := range raw {
		switch key {
		case "type", "action", "target", "branch-pattern", "projects", "branches":
		default:
			binding.Extra[key] = val
		}
	}

	return binding, nil
}

func getString(m map[string]interface{}, key, fallback string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return fallback
}

func getStringList(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}
