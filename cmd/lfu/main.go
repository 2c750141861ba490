package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lfu-go/internal/app"
	"lfu-go/internal/config"
	"lfu-go/internal/lfu"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an LFUApp. The caller must defer app.Close().
func newApp(ctx context.Context) (*app.LFUApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewLFUApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads a passphrase from the terminal
// without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "lfu",
	Short:        "Resumable uploader for large folders",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:       %s\n", cfg.HostID)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Remote:        %s\n", cfg.Remote.Type)
		fmt.Printf("Metadata:      %s\n", cfg.Metadata.Type)
		fmt.Printf("Encryption:    %s\n", cfg.Encryption.Type)
		fmt.Printf("LFS Threshold: %s\n", humanize.Bytes(uint64(cfg.LFSThreshold)))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := app.SetupEncryption(cfg, pass); err != nil {
			return err
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload DIR",
	Short: "Upload a folder, resuming earlier progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		every, _ := cmd.Flags().GetDuration("report-every")
		noReport, _ := cmd.Flags().GetBool("no-report")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		opts := app.UploadOptions{Workers: workers, ReportEvery: every, DryRun: dryRun}
		if !noReport {
			opts.ReportOut = os.Stdout
		}

		res, err := a.Upload(cmd.Context(), args[0], opts)
		if errors.Is(err, lfu.ErrInterrupted) {
			fmt.Println("Upload interrupted. Run the same command again to resume.")
			return err
		}
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		fmt.Printf("Committed %d file(s) in %s\n", res.Committed, res.Duration.Truncate(time.Millisecond))
		if dryRun {
			fmt.Println("Dry run: nothing was uploaded or recorded.")
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status DIR",
	Short: "View persisted upload progress of a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.Status(args[0])
		if err != nil {
			return err
		}
		fmt.Println(lfu.FormatReport(snap, 0, 0))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View upload run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No upload runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %s  %-11s  %d/%d  %-10s  %s\n",
				r.ID,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				r.FilesCommitted,
				r.FilesTotal,
				duration,
				r.Root,
			)
		}
		return nil
	},
}

// cat command
var catCmd = &cobra.Command{
	Use:   "cat PATH",
	Short: "Print committed remote content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Cat(cmd.Context(), args[0], os.Stdout, func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().IntP("workers", "w", 0, "Number of workers (default: config or CPU count)")
	uploadCmd.Flags().Duration("report-every", 0, "Progress report interval (default: config or 1m)")
	uploadCmd.Flags().Bool("no-report", false, "Disable progress reports")
	uploadCmd.Flags().Bool("dry-run", false, "Run against an in-memory remote without recording progress")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(catCmd)
}
