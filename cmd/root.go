package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/dlbar/internal/output"
	"github.com/tanq16/dlbar/internal/progress"
	"github.com/tanq16/dlbar/internal/scheduler"
	"github.com/tanq16/dlbar/internal/transfer"
	"github.com/tanq16/dlbar/internal/utils"
)

var (
	outputPath    string
	urlListFile   string
	numLinks      int
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	maxRetries    int
	barWidth      int
	smoothing     float64
	noProgress    bool
	showTotal     bool
	noPromote     bool
	configFile    string
	debug         bool
	logFile       string
	awsProfile    string
)

var DlbarVersion = "dev"

var rootCmd = &cobra.Command{
	Use:               "dlbar [URL...]",
	Short:             "dlbar downloads files with a live multi-bar progress display",
	Version:           DlbarVersion,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: setupLogging,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && urlListFile == "" {
			output.PrintError("No URL or URL list provided")
			os.Exit(1)
		}
		if urlListFile != "" && len(args) > 0 {
			output.PrintError("Cannot specify url argument and --urllist together, choose one")
			os.Exit(1)
		}
		entries, err := collectEntries(args)
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		cfg, err := displayConfig(cmd)
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		display, err := output.NewDisplay(cfg, os.Stdout, logFile == "")
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		sources, err := buildSources(ctx, entries)
		if err != nil {
			display.Stop()
			output.PrintError(err.Error())
			os.Exit(1)
		}
		display.Start()
		err = scheduler.Run(ctx, scheduler.BuildJobs(entries), numLinks, sources, display)
		display.Stop()
		display.ShowSummary()
		if err != nil {
			fmt.Println()
			output.PrintError("Encountered failed operation(s)")
			os.Exit(1)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	output.InitLogger(debug)
	if logFile == "" {
		return nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("error opening log file: %v", err)
	}
	output.SetLogOutput(f)
	return nil
}

// collectEntries turns URL arguments or the --urllist file into download
// entries, renaming outputs that would overwrite an existing file.
func collectEntries(args []string) ([]utils.DownloadEntry, error) {
	var entries []utils.DownloadEntry
	if urlListFile != "" {
		list, err := utils.ReadDownloadList(urlListFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read URL list file: %v", err)
		}
		entries = list
	} else {
		if outputPath != "" && len(args) > 1 {
			return nil, fmt.Errorf("--output only applies to a single URL")
		}
		for _, link := range args {
			op := outputPath
			if op == "" {
				op = utils.InferOutputPath(link)
			}
			entries = append(entries, utils.DownloadEntry{URL: link, OutputPath: op})
		}
	}
	for i := range entries {
		if _, err := os.Stat(entries[i].OutputPath); err == nil {
			entries[i].OutputPath = utils.RenewOutputPath(entries[i].OutputPath)
		}
	}
	return entries, nil
}

func buildSources(ctx context.Context, entries []utils.DownloadEntry) (map[string]transfer.Source, error) {
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	proxy, user, pass := utils.SplitProxyAuth(proxyURL, proxyUsername, proxyPassword)
	client := utils.NewHTTPClient(utils.HTTPClientConfig{
		Timeout:       timeout,
		KATimeout:     kaTimeout,
		ProxyURL:      proxy,
		ProxyUsername: user,
		ProxyPassword: pass,
		UserAgent:     userAgent,
		Headers:       utils.ParseHeaderArgs(headers),
	})
	httpSource := transfer.NewHTTPSource(client, maxRetries)
	sources := map[string]transfer.Source{"http": httpSource, "https": httpSource}
	for _, e := range entries {
		if strings.HasPrefix(e.URL, "s3://") {
			s3Client, err := transfer.NewS3Client(ctx, awsProfile)
			if err != nil {
				return nil, err
			}
			sources["s3"] = transfer.NewS3Source(s3Client)
			break
		}
	}
	return sources, nil
}

// displayConfig layers defaults, the --config file and explicit flags.
func displayConfig(cmd *cobra.Command) (progress.Config, error) {
	cfg := progress.DefaultConfig()
	if configFile != "" {
		loaded, err := loadDisplayConfig(configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.TotalWidth = barWidth
	} else if configFile == "" && output.IsTerminal() {
		cfg.TotalWidth = max(output.TerminalWidth()-1, progress.MinTotalWidth)
	}
	if flags.Changed("smoothing") {
		cfg.SmoothingWeight = smoothing
	}
	if flags.Changed("total") {
		cfg.ShowTotal = showTotal
	}
	if flags.Changed("no-promote") {
		cfg.PromoteCompleted = !noPromote
	}
	if noProgress || !output.IsTerminal() {
		cfg.DisplayEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid display settings: %v", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the URL if not provided)")
	rootCmd.Flags().StringVarP(&urlListFile, "urllist", "l", "", "Path to YAML file containing URLs and output paths")
	rootCmd.Flags().IntVarP(&numLinks, "workers", "w", 1, "Number of links to download in parallel")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Connection timeout (eg. 5s, 10m)")
	rootCmd.Flags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent (use 'randomize' for a browser agent)")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.Flags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.Flags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.Flags().IntVar(&maxRetries, "retries", transfer.DefaultMaxRetries, "Retries per download after the first attempt")
	rootCmd.Flags().StringVar(&awsProfile, "profile", "", "AWS profile for s3:// URLs")

	// display flags, shared with the demo command
	rootCmd.PersistentFlags().IntVar(&barWidth, "width", progress.DefaultTotalWidth, "Progress line width (terminal width when not set)")
	rootCmd.PersistentFlags().Float64Var(&smoothing, "smoothing", progress.DefaultSmoothingWeight, "Weight of the newest sample in the rate average, in (0,1)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable progress bars and print one line per download")
	rootCmd.PersistentFlags().BoolVar(&showTotal, "total", false, "Show an aggregate bar below the downloads")
	rootCmd.PersistentFlags().BoolVar(&noPromote, "no-promote", false, "Keep finished downloads in place instead of moving them to the top")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML file with display settings")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newCleanCmd())
}
