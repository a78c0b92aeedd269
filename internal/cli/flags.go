package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sdejongh/backup2ftp/pkg/config"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	Debug      bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/backup2ftp/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
	cmd.PersistentFlags().BoolVar(
		&globalFlags.Debug,
		"debug",
		false,
		"log every remote operation and the FTP protocol trace",
	)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}

// RemoteFlags holds the connection flags shared by remote commands
type RemoteFlags struct {
	Host        string
	Port        int
	User        string
	Root        string
	Timeout     time.Duration
	ForceList   bool
	DisableEPSV bool
}

func addRemoteFlags(cmd *cobra.Command, f *RemoteFlags) {
	cmd.Flags().StringVarP(&f.Host, "host", "H", "", "FTP server host")
	cmd.Flags().IntVarP(&f.Port, "port", "P", 21, "FTP server port")
	cmd.Flags().StringVarP(&f.User, "user", "u", "", "FTP user (empty for anonymous; password from $"+config.PasswordEnv+")")
	cmd.Flags().StringVar(&f.Root, "root", "", "remote root directory")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 30*time.Second, "connection timeout")
	cmd.Flags().BoolVar(&f.ForceList, "force-list", false, "use LIST instead of MLSD for listings")
	cmd.Flags().BoolVar(&f.DisableEPSV, "disable-epsv", false, "use PASV instead of EPSV")
}

// applyRemoteFlags overrides config values with flags set on cmd
func applyRemoteFlags(cmd *cobra.Command, f *RemoteFlags, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Remote.Host = f.Host
	}
	if flags.Changed("port") {
		cfg.Remote.Port = f.Port
	}
	if flags.Changed("user") {
		cfg.Remote.User = f.User
	}
	if flags.Changed("root") {
		cfg.Remote.Root = f.Root
	}
	if flags.Changed("timeout") {
		cfg.Remote.Timeout = f.Timeout
	}
	if flags.Changed("force-list") {
		cfg.Remote.ForceList = f.ForceList
	}
	if flags.Changed("disable-epsv") {
		cfg.Remote.DisableEPSV = f.DisableEPSV
	}
}

// applyGlobalFlags maps the global output flags onto cfg
func applyGlobalFlags(cfg *config.Config) {
	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	// Enable progress in verbose mode
	if globalFlags.Verbose {
		cfg.Output.Progress = true
	}

	if globalFlags.Debug {
		cfg.Logging.Enabled = true
		cfg.Logging.Level = "debug"
	}
}
