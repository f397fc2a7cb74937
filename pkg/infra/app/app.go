// Package app provides application bootstrapping with Cobra, Viper, and Pflag.
//
// An App is a root command with optional subcommands. Each command owns a
// CliOptions value whose flags are bound to the command and whose values
// may also come from a config file or the environment:
//
//	application := app.NewApp(
//	    app.WithName("contract-assistant"),
//	    app.WithDescription("Contract assistant"),
//	    app.WithCommands(
//	        app.NewCommand("serve", "Run the API server", serveOpts, runServe),
//	    ),
//	)
//	application.Run()
//
// Precedence is flag > environment > config file > default.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	options "github.com/kart-io/contract-assistant/pkg/app"
	"github.com/kart-io/contract-assistant/pkg/app/cliflag"
)

// App is the main application structure.
type App struct {
	name        string
	shortDesc   string
	description string
	options     options.CliOptions
	runFunc     RunFunc
	commands    []*Command
	cmd         *cobra.Command
	args        cobra.PositionalArgs
	silence     bool
	noVersion   bool
	noConfig    bool
}

// RunFunc is the application's run function.
type RunFunc func() error

// Command is a subcommand with its own options.
type Command struct {
	name      string
	shortDesc string
	longDesc  string
	options   options.CliOptions
	runFunc   RunFunc
	args      cobra.PositionalArgs
}

// NewCommand creates a subcommand.
func NewCommand(name, short string, opts options.CliOptions, run RunFunc) *Command {
	return &Command{name: name, shortDesc: short, options: opts, runFunc: run, args: cobra.NoArgs}
}

// WithLong sets the long description of the command.
func (c *Command) WithLong(desc string) *Command {
	c.longDesc = desc
	return c
}

// Option configures an App.
type Option func(*App)

// WithName sets the application name.
func WithName(name string) Option {
	return func(a *App) {
		a.name = name
	}
}

// WithShortDescription sets the short description.
func WithShortDescription(desc string) Option {
	return func(a *App) {
		a.shortDesc = desc
	}
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions sets the options of the root command.
func WithOptions(opts options.CliOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the run function of the root command.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithCommands adds subcommands.
func WithCommands(cmds ...*Command) Option {
	return func(a *App) {
		a.commands = append(a.commands, cmds...)
	}
}

// WithArgs sets the positional args validation.
func WithArgs(args cobra.PositionalArgs) Option {
	return func(a *App) {
		a.args = args
	}
}

// WithSilence disables usage and error printing.
func WithSilence() Option {
	return func(a *App) {
		a.silence = true
	}
}

// WithNoVersion disables version flag.
func WithNoVersion() Option {
	return func(a *App) {
		a.noVersion = true
	}
}

// WithNoConfig disables config file loading.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// NewApp creates a new application instance.
func NewApp(opts ...Option) *App {
	a := &App{
		name: filepath.Base(os.Args[0]),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.buildCommand()
	return a
}

// buildCommand creates the cobra command tree.
func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:   a.name,
		Short: a.shortDesc,
		Long:  a.description,
		Args:  a.args,
		// Always silence usage on errors - users can use --help to see usage
		SilenceUsage: true,
	}
	if a.silence {
		cmd.SilenceErrors = true
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	a.addGlobalFlags(cmd)

	if a.runFunc != nil || a.options != nil {
		a.bind(cmd, a.options, a.runFunc)
	}

	for _, c := range a.commands {
		sub := &cobra.Command{
			Use:          c.name,
			Short:        c.shortDesc,
			Long:         c.longDesc,
			Args:         c.args,
			SilenceUsage: true,
		}
		a.bind(sub, c.options, c.runFunc)
		cmd.AddCommand(sub)
	}

	a.cmd = cmd
}

// bind attaches options flags and the run function to cmd.
func (a *App) bind(cmd *cobra.Command, opts options.CliOptions, run RunFunc) {
	var fss cliflag.NamedFlagSets
	if opts != nil {
		fss = opts.Flags()
		fss.AddTo(cmd.Flags())
	}

	if len(fss.Order) > 0 {
		cmd.SetUsageFunc(func(c *cobra.Command) error {
			fmt.Fprintf(c.OutOrStderr(), "Usage:\n  %s\n", c.UseLine())
			cliflag.PrintSections(c.OutOrStderr(), fss, 0)
			fmt.Fprintf(c.OutOrStderr(), "\nGlobal flags:\n\n%s", c.InheritedFlags().FlagUsages())
			return nil
		})
	}

	cmd.RunE = func(c *cobra.Command, _ []string) error {
		return a.runCommand(c, opts, run)
	}
}

// addGlobalFlags adds global flags to the command.
func (a *App) addGlobalFlags(cmd *cobra.Command) {
	if !a.noConfig {
		cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	}

	if !a.noVersion {
		version.AddFlags(cmd.PersistentFlags())
	}

	cmd.PersistentFlags().BoolP("help", "h", false, "Help for "+a.name)
}

// runCommand loads configuration into opts, completes and validates it, then runs.
func (a *App) runCommand(cmd *cobra.Command, opts options.CliOptions, run RunFunc) error {
	if !a.noVersion {
		version.PrintAndExitIfRequested()
	}

	if !a.noConfig && opts != nil {
		if err := a.loadConfig(cmd, opts); err != nil {
			return err
		}
	}

	if opts != nil {
		if err := opts.Complete(); err != nil {
			return err
		}
		if err := opts.Validate(); err != nil {
			return err
		}
	}

	if run == nil {
		return cmd.Help()
	}
	return run()
}

// EnvPrefix returns the environment variable prefix derived from the app name.
func (a *App) EnvPrefix() string {
	return strings.ToUpper(strings.ReplaceAll(a.name, "-", "_"))
}

// loadConfig loads configuration from file, environment, and flags.
func (a *App) loadConfig(cmd *cobra.Command, opts options.CliOptions) error {
	v := viper.New()

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.name))
		v.AddConfigPath("/etc/" + a.name)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	expandEnvVars(v)

	v.SetEnvPrefix(a.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// 环境变量只有在键已知时才会被 Unmarshal 读取，这里把每个 flag 名注册为键。
	changedFlags := make(map[string]string)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changedFlags[f.Name] = f.Value.String()
		}
		_ = v.BindEnv(f.Name)
	})

	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Re-apply changed flags so they win over file and environment.
	for name, val := range changedFlags {
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}

	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands ${VAR} and $VAR style environment variables in config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(strVal, func(match string) string {
			var varName string
			if strings.HasPrefix(match, "${") {
				varName = match[2 : len(match)-1]
			} else {
				varName = match[1:]
			}
			if envVal := os.Getenv(varName); envVal != "" {
				return envVal
			}
			return match // 保留原样，如果环境变量不存在
		})
		if expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// Run executes the application and exits with status 1 on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}
