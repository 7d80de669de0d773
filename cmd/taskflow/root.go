package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"taskflow/api/internal/config"
)

// settings is shared by every command. Flags override environment variables,
// which override config.yaml.
var settings = config.New()

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "taskflow",
		Short:        "Workspace, board, list and card API with ordered drag-and-drop moves",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return readConfigFile(settings)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("datastore-engine", "", "the datastore engine: postgres or sqlite")
	flags.String("datastore-uri", "", "the connection uri of the datastore")
	flags.Duration("datastore-connect-timeout", 0, "how long to keep retrying the first connection to the datastore")
	flags.String("log-format", "", "log format: json or text")
	flags.String("log-level", "", "log level: none, debug, info, warn or error")

	mustBindPFlag(settings, "datastore.engine", flags.Lookup("datastore-engine"))
	mustBindPFlag(settings, "datastore.uri", flags.Lookup("datastore-uri"))
	mustBindPFlag(settings, "datastore.connect-timeout", flags.Lookup("datastore-connect-timeout"))
	mustBindPFlag(settings, "log.format", flags.Lookup("log-format"))
	mustBindPFlag(settings, "log.level", flags.Lookup("log-level"))
	return cmd
}

// readConfigFile loads config.yaml when one exists on the search path.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}

// mustBindPFlag binds a flag to a config key. Only flags that were set on the
// command line take precedence over the environment.
func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}
