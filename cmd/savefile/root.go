package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wippyai/savefile"
)

const Version = "0.1.0"

// config is the merged view of flags, environment and .env files.
type config struct {
	LogLevel   string
	LogFile    string
	Compressed bool
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var logger *zap.Logger

	root := &cobra.Command{
		Use:   "savefile",
		Short: "inspect versioned savefile streams",
		Long: fmt.Sprintf(`savefile (v%s)

Reads files written by savefile.Save and prints their version header and
schema, compares the schemas of two files, or opens an interactive schema
browser.`, Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			l, err := newLogger(loadConfig(v))
			if err != nil {
				return err
			}
			logger = l
			savefile.SetLogger(logger)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-file", "", "also write JSON logs to this file, rotated by size")
	root.PersistentFlags().Bool("compressed", false, "input files are zstd compressed")

	initConfig(v)

	root.AddCommand(
		newInspectCmd(v),
		newSchemaCmd(v),
		newDiffCmd(v),
		newBrowseCmd(v),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of savefile",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "savefile v%s\n", Version)
			},
		},
	)
	return root
}

// initConfig loads .env files and binds SAVEFILE_ environment variables.
func initConfig(v *viper.Viper) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix("savefile")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func loadConfig(v *viper.Viper) config {
	return config{
		LogLevel:   v.GetString("log-level"),
		LogFile:    v.GetString("log-file"),
		Compressed: v.GetBool("compressed"),
	}
}

// newLogger writes console logs to stderr and, with LogFile set, JSON logs
// to a rotated file.
func newLogger(cfg config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		),
	}
	if cfg.LogFile != "" {
		if st, err := os.Stat(cfg.LogFile); err == nil && st.IsDir() {
			return nil, fmt.Errorf("log file %s is a directory", cfg.LogFile)
		}
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			level,
		))
	}
	return zap.New(zapcore.NewTee(cores...)).Named("savefile"), nil
}
