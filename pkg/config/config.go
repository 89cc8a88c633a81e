// Package config loads the harness's process-level properties: the
// work-service endpoint, the status port, the service-stub class, and
// the startup computation-descriptor specs.
//
// Properties are layered flag > environment > file > default using
// viper, which also reads the optional properties file as YAML;
// descriptor specs are parsed as YAML via gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/streamharness/pkg/workservice"
)

// Config is the fully resolved set of process-level properties plus the
// tunable constants. The tunables registered in BindFlags (worker and
// queue capacity, commit byte budget, pushback ratio, memory ceiling)
// can be overridden in the properties file or via flags/env; the
// duration tunables are set to fixed values in Load and are not read
// from any of those sources.
type Config struct {
	// HostPort is the work service's network address. Required unless
	// StubClass is "local".
	HostPort string
	// StatusPort is the status HTTP port, default 8081.
	StatusPort int
	// StubClass is the Client implementation tag resolved through
	// workservice's constructor table.
	StubClass string
	// Insecure disables transport security on the gRPC stub.
	Insecure bool

	MaxWorkers           int
	MaxQueue             int
	MaxCommitBytes       int
	PushbackRatio        float64
	MemoryCeilingBytes   uint64
	LeaseBackoffInitial  time.Duration
	LeaseBackoffMax      time.Duration
	RetryDebounce        time.Duration
	PushbackLogThrottle  time.Duration
	PushbackPollInterval time.Duration
	ShutdownGrace        time.Duration
	CommitIdleSleep      time.Duration

	// ComputationSpecs are the raw startup descriptor specs (positional
	// args), one opaque string per computation to pre-register.
	ComputationSpecs []string
}

// BindFlags registers the flags config.Load reads: persistent flags on
// the root command, bound to viper for layering with env and file
// sources.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("windmill-hostport", "", "work service address")
	cmd.PersistentFlags().Int("status-port", 8081, "status HTTP port")
	cmd.PersistentFlags().String("stub-class", "grpc", "work service client stub: grpc|local")
	cmd.PersistentFlags().Bool("insecure", false, "disable transport security on the work service connection")
	cmd.PersistentFlags().String("properties-file", "", "optional YAML properties file overriding defaults")

	cmd.PersistentFlags().Int("max-workers", 100, "bounded pool worker capacity")
	cmd.PersistentFlags().Int("max-queue", 100, "bounded pool admission queue capacity")
	cmd.PersistentFlags().Int("max-commit-bytes", 32<<20, "commit aggregator byte budget per iteration")
	cmd.PersistentFlags().Float64("pushback-ratio", 0.9, "memory gate engagement ratio")
	cmd.PersistentFlags().Uint64("memory-ceiling-bytes", 0, "memory gate ceiling; 0 defaults to total system memory")
}

// Load resolves Config from cmd's flags, layered over environment
// variables (STREAMHARNESS_ prefix) and an optional properties file, in
// that priority order via viper.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("streamharness")
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		return nil, fmt.Errorf("config: binding flags: %w", err)
	}

	if path, _ := cmd.PersistentFlags().GetString("properties-file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading properties file %q: %w", path, err)
		}
	}

	cfg := &Config{
		HostPort:             v.GetString("windmill-hostport"),
		StatusPort:           v.GetInt("status-port"),
		StubClass:            v.GetString("stub-class"),
		Insecure:             v.GetBool("insecure"),
		MaxWorkers:           v.GetInt("max-workers"),
		MaxQueue:             v.GetInt("max-queue"),
		MaxCommitBytes:       v.GetInt("max-commit-bytes"),
		PushbackRatio:        v.GetFloat64("pushback-ratio"),
		MemoryCeilingBytes:   v.GetUint64("memory-ceiling-bytes"),
		LeaseBackoffInitial:  time.Millisecond,
		LeaseBackoffMax:      time.Second,
		RetryDebounce:        10 * time.Second,
		PushbackLogThrottle:  60 * time.Second,
		PushbackPollInterval: 10 * time.Millisecond,
		ShutdownGrace:        5 * time.Minute,
		CommitIdleSleep:      100 * time.Millisecond,
	}

	if cfg.StubClass == "" {
		cfg.StubClass = "grpc"
	}
	if cfg.StubClass == "grpc" && cfg.HostPort == "" {
		return nil, fmt.Errorf("config: windmill.hostport is required for stub class %q", cfg.StubClass)
	}

	return cfg, nil
}

// descriptorSpec is the YAML shape of one startup computation-descriptor
// spec: an id and an opaque spec payload consumed only by the executor
// factory. The wire/serialization format of real descriptors is out of
// scope; this is just a convenient carrier for startup args and tests.
type descriptorSpec struct {
	ID   string `yaml:"id"`
	Spec string `yaml:"spec"`
}

// ParseComputationDescriptors parses the startup descriptor specs (§3:
// "Descriptors are obtained at startup from command-line-supplied
// specs"). A parse failure here is fatal at startup (§7 kind 4).
func ParseComputationDescriptors(specs []string) ([]workservice.ComputationDescriptor, error) {
	out := make([]workservice.ComputationDescriptor, 0, len(specs))
	for i, raw := range specs {
		var d descriptorSpec
		if err := yaml.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("config: parsing computation spec %d: %w", i, err)
		}
		if d.ID == "" {
			return nil, fmt.Errorf("config: computation spec %d is missing an id", i)
		}
		out = append(out, workservice.ComputationDescriptor{ID: d.ID, Spec: []byte(d.Spec)})
	}
	return out, nil
}
