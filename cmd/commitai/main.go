package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/api"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/calendar"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/genai"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/store"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for commitAI state data
	DefaultStateDir = "/var/lib/commitai"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "commitai.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	calOpts := buildCalendarOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping commitAI with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "calendar", len(calOpts), "api", len(apiOpts))
	if err := api.Run(storeOpts, genaiOpts, calOpts, apiOpts); err != nil {
		slog.Error("commitAI failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("commitAI exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL        string
	StateDir           string
	OpenAIKey          string
	Model              string
	APIAddr            string
	Timezone           string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	Debug              bool
}

// Flags holds command line flag values
type Flags struct {
	dbDSN        *string
	openaiKey    *string
	model        *string
	apiAddr      *string
	timezone     *string
	googleID     *string
	googleSecret *string
	googleURI    *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StateDir:           os.Getenv("COMMITAI_STATE_DIR"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		Model:              util.FirstNonEmptyEnv("", "LLM_MODEL", "OPENAI_MODEL"),
		APIAddr:            os.Getenv("API_ADDR"),
		Timezone:           os.Getenv("TIMEZONE"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COMMITAI_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.Timezone == "" {
		config.Timezone = calendar.DefaultTimezone
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"TIMEZONE", config.Timezone,
		"GOOGLE_OAUTH_CONFIGURED", config.GoogleClientID != "" && config.GoogleClientSecret != "")

	return config
}

// parseCommandLineFlags parses command line flags with environment fallbacks
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "Database DSN (SQLite path or postgres:// URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key"),
		model:        flag.String("model", config.Model, "Chat model for plan generation"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server listen address"),
		timezone:     flag.String("timezone", config.Timezone, "IANA timezone for scheduling"),
		googleID:     flag.String("google-client-id", config.GoogleClientID, "Google OAuth client ID"),
		googleSecret: flag.String("google-client-secret", config.GoogleClientSecret, "Google OAuth client secret"),
		googleURI:    flag.String("google-redirect-uri", config.GoogleRedirectURI, "Google OAuth redirect URI"),
	}
	flag.Parse()
	return flags
}

// buildStoreOptions creates store module options from flags
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	}
	return storeOpts
}

// buildGenAIOptions creates GenAI module options from flags
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	return genaiOpts
}

// buildCalendarOptions creates calendar module options from flags
func buildCalendarOptions(flags Flags) []calendar.Option {
	var calOpts []calendar.Option
	if *flags.googleID != "" && *flags.googleSecret != "" && *flags.googleURI != "" {
		calOpts = append(calOpts, calendar.WithCredentials(*flags.googleID, *flags.googleSecret, *flags.googleURI))
	}
	if *flags.timezone != "" {
		calOpts = append(calOpts, calendar.WithTimezone(*flags.timezone))
	}
	return calOpts
}

// buildAPIOptions creates API module options from flags
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.timezone != "" {
		apiOpts = append(apiOpts, api.WithTimezone(*flags.timezone))
	}
	return apiOpts
}
