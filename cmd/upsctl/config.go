package main

import (
	"errors"
	"os"
	"strings"

	"github.com/cruppstahl/ups"
	"github.com/cruppstahl/ups/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initConfig loads .env files and maps UPSCTL_* variables onto flags.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("upsctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindFlags binds the command's flags, including inherited ones, to viper.
func bindFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.InheritedFlags())
}

func setupLogging() error {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(viper.GetString("log-format"))
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	ups.SetLogger(logging.GetLogger().With("component", "ups"))
	return nil
}

// openEnv opens the environment at path. With create set a missing file is
// created; with --in-memory the path is ignored and a fresh in-memory
// environment is returned.
func openEnv(path string, flags uint32, create bool) (*ups.Environment, error) {
	env := ups.NewEnvironment()
	if viper.GetBool("in-memory") {
		if err := env.Create("", ups.InMemory|flags&^ups.ReadOnly, 0); err != nil {
			return nil, err
		}
		return env, nil
	}
	if _, err := os.Stat(path); create && errors.Is(err, os.ErrNotExist) {
		if err := env.Create(path, flags, 0644); err != nil {
			return nil, err
		}
		return env, nil
	}
	if err := env.Open(path, flags); err != nil {
		return nil, err
	}
	return env, nil
}
