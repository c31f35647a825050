package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix namespaces the environment variables viper reads, e.g. DEVRELOAD_PORT
const envPrefix = "DEVRELOAD"

// initConfig binds the command's flags to v and reads the optional config
// file. Precedence is flag, then environment, then config file, then default.
func initConfig(v *viper.Viper, cmd *cobra.Command, cfgFile string) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".devreload")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".devreload"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// setupLogger returns a text logger on w at the named level
func setupLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// searchPath returns the module search path: DEVRELOAD_PATH entries followed
// by the working directory
func searchPath() []string {
	var dirs []string
	for _, dir := range filepath.SplitList(os.Getenv("DEVRELOAD_PATH")) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return dirs
}
