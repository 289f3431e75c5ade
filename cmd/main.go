package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sourcemind/internal/analysis"
	"sourcemind/internal/classifier"
	"sourcemind/internal/config"
	"sourcemind/internal/credentials"
	"sourcemind/internal/domain"
	"sourcemind/internal/generator"
	"sourcemind/internal/github"
	"sourcemind/internal/gitlab"
	"sourcemind/internal/logger"
	"sourcemind/internal/output"
	"sourcemind/internal/parser"
	"sourcemind/internal/scanner"
	"sourcemind/internal/usecases"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configFile string
	format     string
	outputFile string
	title      string
	debug      bool
	timeout    int
	aiProvider string
	noPersist  bool
)

// reportedError marks a failure the console has already shown to the user
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sourcemind",
	Short: "SourceMind - AI repository analyst",
	Long: `A command-line tool that fetches public repository metadata and README text,
asks a generative AI model for a structured analysis (architecture summary, security
findings, complexity, suggested improvements and illustrative example files) and
renders the result in the terminal or as a JSON, Markdown, HTML or CSV report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze owner/name",
	Short: "Analyze a repository with AI",
	Long: `Fetch the repository record, language breakdown and README of owner/name,
send them to the configured AI model and render the validated analysis.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

// credentialsCmd groups the credential subcommands
var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the AI key and the metadata API token",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set gemini-key|github-token [VALUE]",
	Short: "Store a credential (an empty or missing VALUE clears it)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCredentialsSet,
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored credentials (masked)",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsShow,
}

var credentialsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsClear,
}

func setupCommands() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsShowCmd, credentialsClearCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging with verbose output")

	// Analyze command flags
	analyzeCmd.Flags().StringVarP(&format, "format", "f", "",
		"Report format: console, json, markdown, html or csv (overrides config)")
	analyzeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Report file path (overrides config)")
	analyzeCmd.Flags().StringVarP(&title, "title", "t", "", "Report title (overrides config)")
	analyzeCmd.Flags().IntVarP(&timeout, "timeout", "", 0,
		"Analysis timeout in minutes (overrides config, 0 = use config default)")
	analyzeCmd.Flags().StringVarP(&aiProvider, "provider", "p", "", "AI provider: gemini or openai (overrides config)")
	analyzeCmd.Flags().BoolVar(&noPersist, "no-persist", false, "Keep credentials in memory only for this run")

	// Bind flags to viper
	bindings := map[string]string{
		"output.format":                    "format",
		"output.file":                      "output",
		"output.title":                     "title",
		"timeout.analysis_timeout_minutes": "timeout",
		"ai.provider":                      "provider",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, analyzeCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}
}

func main() {
	setupCommands()
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig loads configuration and applies the logging level
func loadConfig() (*config.Config, *zap.Logger, error) {
	// Handle debug flag manually since it's a boolean
	if debug {
		viper.Set("logging.level", "debug")
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	logger.SetLevel(level)

	return cfg, logger.GetLogger(), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}

	store := newCredentialStore(cfg, !noPersist, l)
	metadataClient := newMetadataClient(cfg, l)
	analyzer := newAnalyzer(cfg, l)

	// Initialize blueprint processing
	manifestScanner := scanner.NewScanner(l)
	manifestParser := parser.NewParser(l)
	dependencyClassifier := classifier.NewClassifier(cfg.Classifier.InternalPatterns)

	// Create analyze use case with dependency injection
	analyzeUseCase := usecases.NewAnalyzeUseCase(
		metadataClient,
		analyzer,
		store,
		manifestScanner,
		manifestParser,
		dependencyClassifier,
		l,
	)

	progress := output.NewConsole(cmd.ErrOrStderr())
	analyzeUseCase.OnTransition(progress.Progress)

	// Determine timeout duration (CLI flag overrides config)
	timeoutDuration := time.Duration(cfg.Timeout.AnalysisTimeoutMinutes) * time.Minute
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutDuration)
	defer cancel()

	l.Debug("Starting analysis",
		zap.String("metadata_provider", cfg.Metadata.Provider),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("model", cfg.AI.Model),
		zap.Duration("timeout", timeoutDuration))

	snapshot, err := analyzeUseCase.Execute(ctx, args[0])
	if err != nil {
		if snapshot == nil {
			// Rejected before the run started
			progress.Error(domain.UserMessage(err))
			printGuidance(progress, err)
		}
		return reportedError{err}
	}

	report := &generator.Report{
		Title:       cfg.Output.Title,
		GeneratedAt: time.Now().UTC(),
		Run:         *snapshot,
	}
	reportGenerator := generator.NewGenerator(cfg.Output.File)
	summary := reportGenerator.GenerateSummary(report)

	if cfg.Output.Format == config.FormatConsole {
		output.NewConsole(cmd.OutOrStdout()).PrintReport(report, summary)
		return nil
	}

	if err := reportGenerator.Generate(ctx, cfg.Output.Format, report); err != nil {
		return fmt.Errorf("failed to generate %s report: %w", cfg.Output.Format, err)
	}
	progress.Success(fmt.Sprintf("Report written to %s", cfg.Output.File))

	return nil
}

func printGuidance(console *output.Console, err error) {
	switch domain.KindOf(err) {
	case domain.KindMissingCredential:
		console.Step("sourcemind credentials set gemini-key YOUR_KEY")
		console.Step("or export GEMINI_API_KEY=YOUR_KEY")
	case domain.KindInvalidInput:
		console.Step("Example: sourcemind analyze octocat/Hello-World")
	}
}

// newCredentialStore returns a store seeded with configured credentials. The
// file-backed store is used unless persistence is disabled.
func newCredentialStore(cfg *config.Config, persist bool, l *zap.Logger) domain.CredentialStore {
	fallback := credentialFallback(cfg)
	if !persist || !cfg.Credentials.Persist {
		l.Debug("Credential persistence disabled")
		return credentials.NewMemoryStore(fallback)
	}
	return credentials.NewFileStore(cfg.Credentials.File, fallback, l)
}

func credentialFallback(cfg *config.Config) map[domain.Secret]string {
	token := cfg.GitHub.Token
	if cfg.Metadata.Provider == config.ProviderGitLab {
		token = cfg.GitLab.Token
	}
	return map[domain.Secret]string{
		domain.SecretAIKey:         cfg.AI.APIKey,
		domain.SecretMetadataToken: token,
	}
}

func newMetadataClient(cfg *config.Config, l *zap.Logger) domain.MetadataClient {
	if cfg.Metadata.Provider == config.ProviderGitLab {
		return gitlab.NewClient(cfg.GitLab.BaseURL, l)
	}
	return github.NewClient(cfg.GitHub.BaseURL, &http.Client{}, l)
}

func newAnalyzer(cfg *config.Config, l *zap.Logger) *analysis.Client {
	var model analysis.Model
	if cfg.AI.Provider == config.AIProviderOpenAI {
		model = analysis.NewOpenAIModel(cfg.AI.BaseURL, cfg.AI.Model)
	} else {
		model = analysis.NewGeminiModel(cfg.AI.Model, "")
	}
	return analysis.NewClient(model, cfg.AI.MaxReadmeChars, l)
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	secret, ok := credentials.ParseSecret(args[0])
	if !ok {
		return fmt.Errorf("unknown credential %q (expected %s or %s)",
			args[0], domain.SecretAIKey, domain.SecretMetadataToken)
	}

	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}

	value := ""
	if len(args) == 2 {
		value = args[1]
	}

	store := credentials.NewFileStore(cfg.Credentials.File, nil, l)
	store.Set(secret, value)

	console := output.NewConsole(cmd.OutOrStdout())
	if value == "" {
		console.Success(fmt.Sprintf("Cleared %s", secret))
	} else {
		console.Success(fmt.Sprintf("Stored %s (%s)", secret, credentials.Mask(value)))
	}
	if store.Degraded() {
		console.Step("The credentials file is not writable; the value lasts for this process only")
	}
	return nil
}

func runCredentialsShow(cmd *cobra.Command, args []string) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}

	store := credentials.NewFileStore(cfg.Credentials.File, credentialFallback(cfg), l)
	console := output.NewConsole(cmd.OutOrStdout())
	for _, secret := range credentials.Secrets() {
		console.Info(fmt.Sprintf("%-13s %s", secret, credentials.Mask(store.Get(secret))))
	}
	console.Step("File: " + store.Path())
	return nil
}

func runCredentialsClear(cmd *cobra.Command, args []string) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}

	store := credentials.NewFileStore(cfg.Credentials.File, nil, l)
	for _, secret := range credentials.Secrets() {
		store.Set(secret, "")
	}
	output.NewConsole(cmd.OutOrStdout()).Success("Cleared all stored credentials")
	return nil
}
