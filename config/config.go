package config

// Config represents the complete Vivarium configuration
type Config struct {
	BaseDir     string            `yaml:"-"` // Directory containing config file, for resolving relative paths
	Runtime     RuntimeConfig     `yaml:"runtime"`
	REPL        REPLConfig        `yaml:"repl"`
	Journal     JournalConfig     `yaml:"journal"`
	Conformance ConformanceConfig `yaml:"conformance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// RuntimeConfig controls the globals programs run against
type RuntimeConfig struct {
	Lockdown   bool          `yaml:"lockdown"`    // Make built-ins read-only before running (default: true)
	Strip      StringOrSlice `yaml:"strip"`       // Built-ins removed before running
	EchoOutput bool          `yaml:"echo_output"` // Echo captured print output to stdout (default: true)
}

// REPLConfig holds interactive session settings
type REPLConfig struct {
	HistoryFile string `yaml:"history_file"` // Default: .vivarium_history in the temp directory
	Prompt      string `yaml:"prompt"`       // Default: ">>> "
}

// JournalConfig holds run journal settings
type JournalConfig struct {
	DSN        string `yaml:"dsn"`         // SQLite path or postgres:// / mysql:// URL; empty disables the journal
	MaxEntries int    `yaml:"max_entries"` // Runs kept before the oldest are pruned (default: 1000)
}

// ConformanceConfig holds defaults for the test subcommand
type ConformanceConfig struct {
	Dir       string `yaml:"dir"`        // Suite directory containing tests.txt (default: "tests")
	Report    string `yaml:"report"`     // Write an HTML report to this path
	Locale    string `yaml:"locale"`     // Locale for the summary line (default: "en")
	KeepGoing bool   `yaml:"keep_going"` // Run every test instead of stopping at the first failure
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Contains checks if the slice contains the given string
func (s StringOrSlice) Contains(str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Output string `yaml:"output"` // stderr, stdout, or file path
	Quiet  bool   `yaml:"quiet"`  // suppress info messages
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Lockdown:   true,
			EchoOutput: true,
		},
		REPL: REPLConfig{
			Prompt: ">>> ",
		},
		Journal: JournalConfig{
			MaxEntries: 1000,
		},
		Conformance: ConformanceConfig{
			Dir:    "tests",
			Locale: "en",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
		},
	}
}
