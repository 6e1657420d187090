package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aligator/fatcheck/mount"
	"github.com/aligator/fatcheck/runner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// Version of this application populated by `go build`
// e.g. $ go build -ldflags="-X main.Version=v0.1.0"
var Version string

const envPrefix = "FATCHECK"

// exitCode is set by commands which report a verdict.
var exitCode int

// flags
var (
	verbose     = false
	projectRoot = ""
	mountPoint  = runner.DefaultMountPoint
	backend     = "exec"
	useSudo     = true
	timeout     = mount.DefaultTimeout
	configFile  = ""
)

var mainCmd = &cobra.Command{
	Use:           "fatcheck",
	Short:         "Check the FAT disk images of the kernel build.",
	Long: `Checks every disk image for its boot signature and a valid boot sector,
then mounts it read only and looks for the expected files.
The exit status is 1 if any check failed.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	Args:          cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile = viper.GetString("config")
		if configFile == "" {
			return nil
		}
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", configFile, err)
		}
		klog.V(3).Infof("using config %s", viper.ConfigFileUsed())
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		exitCode, err = runSuite(cmd.Context(), cmd.OutOrStdout())
		return err
	},
}

func init() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	kflags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(kflags)

	kflags.VisitAll(func(f *flag.Flag) {
		pf := pflag.PFlagFromGoFlag(f)
		// -v is --verbose here.
		if f.Name == "v" {
			pf.Name = "log-level"
			pf.Shorthand = ""
		}
		pf.Hidden = f.Name != "v"
		mainCmd.PersistentFlags().AddFlag(pf)
	})

	mainCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", verbose, "Print diagnostic information")
	mainCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "Optional config file (yaml, json or toml) with test cases")

	mainCmd.Flags().StringVar(&projectRoot, "project-root", projectRoot, "Directory containing the disk images (default: current directory)")
	mainCmd.Flags().StringVar(&mountPoint, "mount-point", mountPoint, "Directory used to mount the images")
	mainCmd.Flags().StringVar(&backend, "backend", backend, "Mount backend, one of exec|loop")
	mainCmd.Flags().BoolVar(&useSudo, "sudo", useSudo, "Run mount and umount through sudo (exec backend only)")
	mainCmd.Flags().DurationVar(&timeout, "timeout", timeout, "Timeout for a single mount or unmount")

	viper.BindPFlags(mainCmd.PersistentFlags())
	viper.BindPFlags(mainCmd.Flags())

	mainCmd.AddCommand(dumpCmd)
	mainCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	// We must use a buffered channel or risk missing the signal
	// if we're not ready to receive when the signal is sent.
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-signalCh:
			fmt.Fprintf(os.Stderr, "\nStopping on signal %v\n", sig)
			// The runner unmounts before it returns.
			cancelFunc()
		case <-ctx.Done():
		}
	}()

	err := mainCmd.ExecuteContext(ctx)
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func mountTimeout() time.Duration {
	return viper.GetDuration("timeout")
}
