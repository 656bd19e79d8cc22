package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/internal/config"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	backendName  string
	prologixPort string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bench",
	Short: "Bench instrument control over GPIB, USBTMC and serial",
	Long: `bench drives SCPI bench instruments (multimeters, power supplies and
electronic loads) through named driver profiles. Instruments are reached by
VISA resource strings over USBTMC, a Prologix GPIB controller, RS-232, or an
in-memory simulator.

Examples:
  bench discover                                         # Identify the simulated bench
  bench discover --backend all --prologix-port /dev/ttyUSB0
  bench get voltage --address SIM0::dmm::INSTR --profile standard-multimeter
  bench set voltage 5 --gpib 5 --backend gpib --profile hp-mainframe --channel 2
  bench query "*IDN?" --usb MY12345678 --backend usb
  bench profiles                                         # List driver profiles`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"configuration file (default is the user config directory bench.yaml)")
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", "simulator",
		"transport backend (simulator, usb, gpib, serial, all)")
	rootCmd.PersistentFlags().StringVar(&prologixPort, "prologix-port", "",
		"serial device of the Prologix GPIB controller (overrides the config file)")
}

// loadRuntime reads the configuration, registers its driver profiles and
// builds the logger shared by every command.
func loadRuntime(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return fmt.Errorf("locate config: %w", err)
		}
	}

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded
	if prologixPort != "" {
		cfg.Transport.Prologix.Port = prologixPort
	}

	logger, err = newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	if verbose {
		logger.Debug("configuration loaded", "path", path, "instruments", len(cfg.Instruments), "profiles", len(cfg.Profiles))
	}
	return cfg.RegisterProfiles()
}

func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(lc.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q (supported: text, json)", lc.Format)
	}
}
