// Package main is the entry point for the typeconfusion CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/su1ph3r/typeconfusion/internal/fuzzer"
	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/internal/logging"
	"github.com/su1ph3r/typeconfusion/internal/metrics"
	"github.com/su1ph3r/typeconfusion/internal/parser"
	"github.com/su1ph3r/typeconfusion/internal/reporter"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

var (
	version   = "1.0.0"
	cfgFile   string
	config    *types.Config
	configErr error
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "typeconfusion",
	Short: "typeconfusion - differential type confusion probe for HTTP parameters",
	Long: `typeconfusion replays recorded HTTP requests with each parameter rewritten
as an array, a nested array or a string, and reports the parameters whose
responses stay indistinguishable from the recorded one. Such parameters are
coerced rather than validated by the server.

Requests can come from raw request files, Burp Suite exports, HAR archives,
OpenAPI documents or plain URL lists.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan [files...]",
	Short: "Probe recorded requests for type confusion",
	Long: `Probe recorded requests for type confusion.

Positional files are loaded with their format detected from the extension
and contents; the explicit flags force a format.`,
	RunE: runScan,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("typeconfusion %s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify typeconfusion configuration settings`,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set(args[0], args[1])
		if viper.ConfigFileUsed() == "" {
			return viper.SafeWriteConfigAs(defaultConfigPath())
		}
		return viper.WriteConfig()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(viper.Get(args[0]))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := viper.AllKeys()
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s: %v\n", k, viper.Get(k))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.typeconfusion.yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	addScanFlags(scanCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configShowCmd)
}

func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Inputs
	f.StringSliceP("request", "r", []string{}, "Raw HTTP request file (repeatable)")
	f.String("burp", "", "Burp Suite XML export file")
	f.String("har", "", "HAR file")
	f.StringP("spec", "s", "", "OpenAPI/Swagger specification file")
	f.StringSlice("endpoints", []string{}, "Endpoints to scan as 'METHOD url' or paths relative to --url")
	f.StringP("url", "u", "", "Base URL; overrides the service of every loaded request")
	f.String("scheme", "https", "Scheme for raw requests that only carry a Host header")

	// Output
	f.StringP("output", "o", "", "Output file path (stdout if not specified)")
	f.StringP("format", "f", "", "Output format (json, yaml, text, markdown, burp)")
	f.Bool("verbose", false, "Print findings as they are reported")
	f.Bool("no-evidence", false, "Leave mutated requests out of the report")

	// Logging and metrics
	f.String("log-level", "", "Diagnostic log level (debug, info, warn, error)")
	f.String("log-file", "", "Mirror diagnostics to a rotated log file")
	f.String("request-log", "", "Write every request/response pair as JSON lines")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")

	// HTTP
	f.String("auth-header", "", "Authorization header (e.g., 'Bearer xxx')")
	f.StringToString("headers", map[string]string{}, "Additional headers")
	f.StringToString("cookies", map[string]string{}, "Additional cookies")
	f.String("user-agent", "", "User-Agent for requests that carry none")
	f.String("proxy", "", "HTTP proxy URL")

	// Scan
	f.Int("concurrency", 0, "Number of insertion points probed in parallel")
	f.Float64("rate-limit", 0, "Requests per second")
	f.Duration("timeout", 0, "Request timeout")
	f.Bool("no-ssl-verify", false, "Skip SSL certificate verification")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".typeconfusion")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TYPECONFUSION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = fmt.Errorf("failed to read config: %w", err)
		}
	}

	config = types.DefaultConfig()
	if err := viper.Unmarshal(config); err != nil && configErr == nil {
		configErr = fmt.Errorf("failed to decode config: %w", err)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".typeconfusion.yaml"
	}
	return filepath.Join(home, ".typeconfusion.yaml")
}

func runScan(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			printWarning("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	updateConfigFromFlags(cmd, config)
	if err := types.ValidateConfig(config); err != nil {
		return err
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	noColor = noColor || !config.Output.Color
	setColor(noColor)

	logger, logCloser, err := logging.NewFromSettings(config.Log, noColor)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	printBanner()

	targets, inputs, err := loadTargets(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}
	printInfo("Loaded %d base requests from %s", len(targets), strings.Join(inputs, ", "))

	rec := metrics.New()
	if config.Metrics.Listen != "" {
		addr, errc, err := rec.Serve(ctx, config.Metrics.Listen)
		if err != nil {
			return err
		}
		printInfo("Metrics available at http://%s/metrics", addr)
		go func() {
			for err := range errc {
				logger.Errorf("metrics server: %v", err)
			}
		}()
	}

	reqLog := fuzzer.NewRequestLogger(config.Log.RequestLog, config.Log)
	defer reqLog.Close()

	sender, err := fuzzer.NewHTTPSender(*config, reqLog, logger, rec)
	if err != nil {
		return err
	}

	engine := fuzzer.NewEngine(*config, sender, logger, rec)

	printInfo("Starting scan...")
	result, scanErr := engine.Scan(ctx, targets)
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		return fmt.Errorf("scan failed: %w", scanErr)
	}

	result.Config = &types.ScanConfig{
		InputFile:   strings.Join(inputs, ","),
		InputType:   string(inputType(inputs)),
		Concurrency: config.Scan.Concurrency,
		RateLimit:   config.Scan.RateLimit,
		Timeout:     int(config.Scan.Timeout.Seconds()),
		ProxyURL:    config.HTTP.ProxyURL,
	}

	if config.Output.Verbose {
		for _, f := range result.Findings {
			printFinding(f)
		}
	}
	printSummary(result)

	if err := writeReport(cmd, result, noColor); err != nil {
		return err
	}
	if scanErr != nil {
		return fmt.Errorf("scan interrupted: %w", scanErr)
	}
	return nil
}

// loadTargets collects base requests from every input flag and positional
// file. Identical requests loaded from different inputs are probed once.
func loadTargets(cmd *cobra.Command, args []string) ([]httpmsg.RequestResponse, []string, error) {
	baseURL, _ := cmd.Flags().GetString("url")
	scheme, _ := cmd.Flags().GetString("scheme")

	var parsers []parser.Parser
	var inputs []string

	requests, _ := cmd.Flags().GetStringSlice("request")
	for _, path := range requests {
		if err := types.ValidateInputFile(path); err != nil {
			return nil, nil, err
		}
		parsers = append(parsers, parser.NewRequestParser(path, baseURL, scheme))
		inputs = append(inputs, path)
	}

	if path, _ := cmd.Flags().GetString("burp"); path != "" {
		parsers = append(parsers, parser.NewBurpParser(path, baseURL))
		inputs = append(inputs, path)
	}
	if path, _ := cmd.Flags().GetString("har"); path != "" {
		parsers = append(parsers, parser.NewHARParser(path, baseURL))
		inputs = append(inputs, path)
	}
	if path, _ := cmd.Flags().GetString("spec"); path != "" {
		parsers = append(parsers, parser.NewOpenAPIParser(path, baseURL))
		inputs = append(inputs, path)
	}
	if endpoints, _ := cmd.Flags().GetStringSlice("endpoints"); len(endpoints) > 0 {
		parsers = append(parsers, parser.NewRawParser(baseURL, endpoints))
		inputs = append(inputs, "endpoints")
	}

	for _, path := range args {
		p, err := parser.NewParser(path, baseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		parsers = append(parsers, p)
		inputs = append(inputs, path)
	}

	if len(parsers) == 0 {
		return nil, nil, fmt.Errorf("no input specified. Use --request, --burp, --har, --spec, --endpoints or pass files")
	}

	var all []httpmsg.RequestResponse
	for i, p := range parsers {
		targets, err := p.Parse()
		if err != nil {
			return nil, nil, fmt.Errorf("%s (%s): %w", inputs[i], p.Type(), err)
		}
		all = append(all, targets...)
	}

	all = parser.Deduplicate(all)
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%w: no requests found in %s", parser.ErrInvalidInput, strings.Join(inputs, ", "))
	}
	return all, inputs, nil
}

// inputType names the kind of a single-input scan
func inputType(inputs []string) types.InputType {
	if len(inputs) != 1 {
		return types.InputTypeUnknown
	}
	if inputs[0] == "endpoints" {
		return types.InputTypeRaw
	}
	return parser.DetectInputType(inputs[0])
}

func updateConfigFromFlags(cmd *cobra.Command, config *types.Config) {
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		config.Scan.Concurrency = v
	}
	if v, _ := cmd.Flags().GetFloat64("rate-limit"); v > 0 {
		config.Scan.RateLimit = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
		config.Scan.Timeout = v
	}
	if v, _ := cmd.Flags().GetBool("no-ssl-verify"); v {
		config.Scan.VerifySSL = false
	}
	if v, _ := cmd.Flags().GetString("proxy"); v != "" {
		config.HTTP.ProxyURL = v
	}
	if v, _ := cmd.Flags().GetString("auth-header"); v != "" {
		config.HTTP.AuthHeader = v
	}
	if v, _ := cmd.Flags().GetString("user-agent"); v != "" {
		config.HTTP.UserAgent = v
	}
	if v, _ := cmd.Flags().GetStringToString("headers"); len(v) > 0 {
		if config.HTTP.Headers == nil {
			config.HTTP.Headers = make(map[string]string)
		}
		for k, val := range v {
			config.HTTP.Headers[k] = val
		}
	}
	if v, _ := cmd.Flags().GetStringToString("cookies"); len(v) > 0 {
		if config.HTTP.Cookies == nil {
			config.HTTP.Cookies = make(map[string]string)
		}
		for k, val := range v {
			config.HTTP.Cookies[k] = val
		}
	}
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		config.Output.Format = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		config.Output.File = v
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		config.Output.Verbose = true
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		config.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-file"); v != "" {
		config.Log.File = v
	}
	if v, _ := cmd.Flags().GetString("request-log"); v != "" {
		config.Log.RequestLog = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		config.Metrics.Listen = v
	}
}

func writeReport(cmd *cobra.Command, result *types.ScanResult, noColor bool) error {
	opts := reporter.DefaultOptions()
	opts.Version = version
	if v, _ := cmd.Flags().GetBool("no-evidence"); v {
		opts.IncludeEvidence = false
	}

	// Reports written to a file never carry escape codes
	opts.NoColor = noColor || config.Output.File != ""

	rep, err := reporter.NewReporter(config.Output.Format, opts)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}

	if config.Output.File == "" {
		if err := rep.Write(result, os.Stdout); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}

	outputPath := config.Output.File
	if filepath.Ext(outputPath) == "" {
		outputPath += "." + rep.Extension()
	}
	if err := reporter.WriteToFile(rep, result, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	printSuccess("Report saved to: %s", outputPath)
	return nil
}

func scanDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
