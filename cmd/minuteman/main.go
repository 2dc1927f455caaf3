package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"minuteman/internal/app"
	"minuteman/internal/clone"
	"minuteman/internal/config"
	"minuteman/internal/reporting"
	"minuteman/internal/security"
	"minuteman/internal/ui"
	"minuteman/internal/wipe"
)

const (
	Version = "0.9.0"
	AppName = "Minuteman"

	// Exit codes
	EXIT_SUCCESS   = 0
	EXIT_ERROR     = 1
	EXIT_CANCELLED = 2
)

var (
	verbose    bool
	configPath string
	profile    string
	armed      bool
)

var rootCmd = &cobra.Command{
	Use:           "minuteman",
	Short:         "Minuteman - removable drive sanitization",
	Long:          "Inventory, sanitize and clone removable storage devices",
	Version:       Version,
	RunE:          runWizard,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive drive sanitization wizard (default)",
	RunE:  runWizard,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List eligible removable drives",
	RunE:  runList,
}

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List sanitization methods",
	RunE:  runMethods,
}

var wipeCmd = &cobra.Command{
	Use:   "wipe DEVICE",
	Short: "Sanitize a drive without the wizard",
	Args:  cobra.ExactArgs(1),
	RunE:  runWipe,
}

var cloneCmd = &cobra.Command{
	Use:   "clone DEVICE IMAGE",
	Short: "Copy a drive into an image file",
	Args:  cobra.ExactArgs(2),
	RunE:  runClone,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init PATH",
	Short: "Write the default configuration (tuned by --profile) to PATH",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigInit,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Performance profile (safe/balanced/fast)")
	rootCmd.PersistentFlags().BoolVar(&armed, "armed", false, "Write to real devices (also needs security.allow_device_writes)")

	wipeCmd.Flags().StringP("method", "m", "", "Sanitization method key or name")
	wipeCmd.Flags().BoolP("force", "f", false, "Skip confirmation")
	wipeCmd.MarkFlagRequired("method")

	cloneCmd.Flags().Int64("limit", -1, "Bytes to copy (negative copies the whole device)")
	cloneCmd.Flags().String("compress", "", "Image compression (gzip/zlib/bzip2/snappy/s2/zstd)")
	cloneCmd.Flags().Bool("verify", false, "Compare the image with the device after copying")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(wizardCmd, listCmd, methodsCmd, wipeCmd, cloneCmd, configCmd)
}

func newApp() (*app.App, error) {
	reporting.Version = Version
	return app.New(app.Options{
		ConfigPath: configPath,
		Profile:    profile,
		Verbose:    verbose,
		Armed:      armed,
	})
}

func signalContext(a *app.App) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			a.Logger().Log("WARN", "Signal received, stopping", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func runWizard(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(a)
	defer cancel()

	a.Logger().Log("INFO", "Starting "+AppName+" wizard", "version", Version, "mode", a.Mode())
	return a.RunWizard(ctx)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ui.DisplayDisks(os.Stdout, a.Build())
	return nil
}

func runMethods(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ui.DisplayMethods(os.Stdout, a.Methods())
	return nil
}

func runWipe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	device := args[0]
	method, _ := cmd.Flags().GetString("method")
	force, _ := cmd.Flags().GetBool("force")

	d, err := a.FindDisk(device)
	if err != nil {
		return err
	}
	m, err := wipe.FindMethod(a.Methods(), method)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] %s on %s (%s)\n", a.Mode(), m.Name, d.DevicePath, d.Label())
	if a.Mode() == security.Armed && !force {
		fmt.Printf("WARNING: ALL data on %s will be destroyed.\n", d.DevicePath)
		fmt.Print("Continue? (y/N): ")
		var response string
		fmt.Scanln(&response)
		if strings.ToLower(response) != "y" {
			a.Logger().Log("INFO", "Operation declined by operator", "device", d.DevicePath)
			return nil
		}
	}

	ctx, cancel := signalContext(a)
	defer cancel()

	job, err := a.StartWipe(ctx, d.DevicePath, m.Key)
	if err != nil {
		return err
	}

	progress := ui.NewLiveProgress(os.Stdout)
	ticker := time.NewTicker(a.Config().TickInterval())
	defer ticker.Stop()
	for done := false; !done; {
		select {
		case <-job.Done():
			done = true
		case <-ticker.C:
		}
		progress.Wipe(job.Snapshot())
	}
	progress.Stop()

	s := job.Snapshot()
	if s.Status != wipe.StatusSucceeded {
		fmt.Println(wipe.Describe(s.Err))
		return s.Err
	}
	fmt.Printf("%s completed on %s (%s written)\n", s.Method, s.DevicePath, ui.FormatBytes(s.TotalWritten))
	return nil
}

func runClone(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	limit, _ := cmd.Flags().GetInt64("limit")
	compression, _ := cmd.Flags().GetString("compress")
	verify, _ := cmd.Flags().GetBool("verify")

	ctx, cancel := signalContext(a)
	defer cancel()

	progress := ui.NewLiveProgress(os.Stdout)
	res, err := a.Clone(ctx, args[0], limit, args[1], compression, progress.Copy)
	progress.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Image: %s\n", res.ImagePath)
	fmt.Printf("Copied %s in %s, image %s (ratio %.2f)\n",
		ui.FormatBytes(res.BytesCopied), res.Duration.Truncate(time.Millisecond),
		ui.FormatBytes(res.BytesWritten), res.Ratio())

	if verify {
		if compression == "" {
			compression = a.Config().Clone.Compression
		}
		n, err := clone.VerifyImage(ctx, args[0], res.ImagePath, compression)
		if err != nil {
			return fmt.Errorf("image verification failed: %w", err)
		}
		fmt.Printf("Verified %s against %s\n", ui.FormatBytes(n), args[0])
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.Init(args[0], profile); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", args[0])
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, wipe.ErrCancelled) || errors.Is(err, context.Canceled) {
			os.Exit(EXIT_CANCELLED)
		}
		os.Exit(EXIT_ERROR)
	}
	os.Exit(EXIT_SUCCESS)
}
