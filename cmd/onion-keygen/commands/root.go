// Package commands implements the onion-keygen command tree.
package commands

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to upper-cased flag names, e.g. ONIONKEYGEN_LOG_LEVEL.
const EnvPrefix = "ONIONKEYGEN"

// app is the state shared by one command tree: the parsed config and the
// logger built from it.
type app struct {
	v       *viper.Viper
	config  Config
	logger  *slog.Logger
	logFile io.Closer
}

// NewRootCmd returns a fresh command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{v: viper.New(), config: DefaultConfig()})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "onion-keygen",
		Short:             "Generate, search for and verify Tor v3 onion service addresses",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.closeLog()
		},
	}

	defaults := DefaultConfig()
	root.PersistentFlags().String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", defaults.LogFormat, "console log format (text, json)")
	root.PersistentFlags().String("log-file", "", "also write debug-level JSON logs to this file")

	root.AddCommand(
		newGenerateCmd(a),
		newVerifyCmd(a),
		newVanityCmd(a),
		newInspectCmd(a),
		newShowCmd(a),
	)

	// Post-run hooks are skipped when RunE fails, so each command closes the
	// log file itself.
	for _, cmd := range root.Commands() {
		if run := cmd.RunE; run != nil {
			cmd.RunE = func(cmd *cobra.Command, args []string) error {
				defer a.closeLog()
				return run(cmd, args)
			}
		}
	}
	return root
}

// closeLog releases the --log-file handle. It is safe to call more than once.
func (a *app) closeLog() error {
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}

// setup binds the executing command's flags and the environment into viper,
// decodes the config and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	conf := DefaultConfig()
	if err := a.v.Unmarshal(&conf); err != nil {
		return err
	}
	if err := conf.ValidateBasic(); err != nil {
		return err
	}
	a.config = conf

	logger, closer, err := newLogger(conf, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger
	a.logFile = closer
	return nil
}
