package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/citeverify/internal/cache"
	"github.com/ppiankov/citeverify/internal/logging"
	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/verify"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	noCache bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "citeverify",
	Short: "CiteVerify - legal citation verification",
	Long: `CiteVerify checks whether case-law citations refer to real, findable cases.

Each citation is looked up in the CourtListener citation API, then in legal
databases and finally general search engines, until a source confirms a case
whose name passes validation. Citations no source can confirm are reported
as "unconfirmed", which is not the same as proven fabricated.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "citeverify %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citeverify/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the result cache")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".citeverify"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	configureEnv(viper.GetViper())

	if err := registerDefaults(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading default config: %v\n", err)
		return
	}

	if err := viper.MergeInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureEnv reads environment variables that match CITEVERIFY_*,
// e.g. CITEVERIFY_CACHE_BACKEND for cache.backend
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("CITEVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// registerDefaults loads the default config into v so that every key is
// known to viper and can be overridden from the environment
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	v.SetConfigType("yaml")
	return v.ReadConfig(bytes.NewReader(data))
}

// loadConfig decodes the merged configuration
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Sources.CourtListenerToken == "" {
		cfg.Sources.CourtListenerToken = os.Getenv("COURTLISTENER_API_TOKEN")
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// runtimeDeps holds what every verification command needs
type runtimeDeps struct {
	cfg    *model.Config
	logger *zap.Logger
	cache  *cache.Manager
	orch   *verify.Orchestrator
	closer io.Closer
}

func (d *runtimeDeps) Close() {
	if err := d.closer.Close(); err != nil {
		d.logger.Warn("failed to close cache", zap.Error(err))
	}
	_ = d.logger.Sync()
}

// setup loads configuration and wires the pipeline
func setup() (*runtimeDeps, error) {
	logger, err := logging.New(verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	cm, closer, err := cache.Open(cfg.Cache, logger)
	if err != nil {
		// Cache is an optimization: run without it
		logger.Warn("cache unavailable, continuing without it", zap.Error(err))
		cm, closer = cache.NewManager(nil, cfg.Cache.TTL(), cfg.Cache.URLStatusTTL, logger), closerFunc(func() error { return nil })
	}

	return &runtimeDeps{
		cfg:    cfg,
		logger: logger,
		cache:  cm,
		orch:   verify.NewFromConfig(cfg, cm, logger),
		closer: closer,
	}, nil
}
