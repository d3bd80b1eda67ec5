// Package cli implements the showcase command-line interface: an admin
// surface over the content store, the edit session and the order engine.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/showcase/internal/logging"
	"github.com/mesh-intelligence/showcase/internal/paths"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks malformed arguments.
var errUsage = errors.New("usage")

// userErrors classify an error as the caller's fault (exit code 1).
var userErrors = []error{
	errUsage,
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidPath,
	types.ErrInvalidCollection,
	types.ErrInvalidData,
	types.ErrOutOfRange,
	types.ErrDefaultsReadOnly,
	types.ErrReservedField,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	types.ErrSyncStrategyUnknown,
	types.ErrRetryInvalid,
}

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

// app carries the state shared by the subcommands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	settings  settings
	log       zerolog.Logger
}

// NewRootCmd creates the top-level "showcase" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}
	root := &cobra.Command{
		Use:   "showcase",
		Short: "Manage portfolio content and its manual ordering",
		Long: `Showcase edits the profile and the item collections of a portfolio site.
Reads render the stored content, or the bundled defaults while nothing is
stored. Writes go to the local document store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newProfileCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newUpdateCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newSwapCmd(a))
	root.AddCommand(newMoveCmd(a, "move-up"))
	root.AddCommand(newMoveCmd(a, "move-down"))
	root.AddCommand(newReindexCmd(a))
	root.AddCommand(newSeedCmd(a))
	root.AddCommand(newWatchCmd(a))

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "showcase:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// exitCode maps an error to the exit code of the process.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// load resolves the configuration directory, reads config.yaml and builds
// the logger. The version command needs none of it.
func (a *app) load(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	s, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		s.Log.Level = a.flags.logLevel
	}

	a.configDir = configDir
	a.settings = s
	a.log = logging.New(cmd.ErrOrStderr(), s.Log)
	a.log.Debug().Str("config_dir", configDir).Msg("configuration loaded")
	return nil
}

// exactArgs is cobra.ExactArgs with the error classified as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return wrapArgs(cobra.ExactArgs(n))
}

// minArgs is cobra.MinimumNArgs with the error classified as a usage error.
func minArgs(n int) cobra.PositionalArgs {
	return wrapArgs(cobra.MinimumNArgs(n))
}

func wrapArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		return nil
	}
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
