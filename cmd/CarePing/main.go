package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/CarePing/internal/app"
	"github.com/BTreeMap/CarePing/internal/util"
	"github.com/BTreeMap/CarePing/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CarePing state data
	DefaultStateDir = "/var/lib/careping"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "careping.db"
	// DefaultConfigFileName is the default roster filename inside the state directory
	DefaultConfigFileName = "roster.json"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	waOpts := buildWhatsAppOptions(flags)
	appOpts := buildAppOptions(flags)

	slog.Info("Bootstrapping CarePing with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "config_path", *flags.configPath, "dsn_set", *flags.dbDSN != "", "twilio", *flags.twilio)
	if err := app.Run(waOpts, appOpts...); err != nil {
		slog.Error("CarePing failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CarePing exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir    string
	ConfigPath  string
	DatabaseURL string
	WhatsAppDSN string
	Twilio      bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput   *string
	numeric    *bool
	stateDir   *string
	configPath *string
	dbDSN      *string
	waDSN      *string
	twilio     *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		StateDir:    os.Getenv("CAREPING_STATE_DIR"),
		ConfigPath:  os.Getenv("CAREPING_CONFIG"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		WhatsAppDSN: os.Getenv("WHATSAPP_DB_DSN"),
		Twilio:      util.ParseBoolEnv("CAREPING_TWILIO_ESCALATION", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CAREPING_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.ConfigPath == "" {
		config.ConfigPath = filepath.Join(config.StateDir, DefaultConfigFileName)
		slog.Debug("No CAREPING_CONFIG set, using default", "config_path", config.ConfigPath)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
	}

	slog.Debug("environment variables loaded",
		"CAREPING_STATE_DIR", config.StateDir,
		"CAREPING_CONFIG", config.ConfigPath,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"CAREPING_TWILIO_ESCALATION", config.Twilio)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:   flag.String("qr-output", "", "path to write login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for CarePing data (overrides $CAREPING_STATE_DIR)"),
		configPath: flag.String("config", config.ConfigPath, "path to the roster file (overrides $CAREPING_CONFIG)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "audit database DSN (overrides $DATABASE_URL)"),
		waDSN:      flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)"),
		twilio:     flag.Bool("twilio-escalation", config.Twilio, "deliver escalations over Twilio SMS (overrides $CAREPING_TWILIO_ESCALATION)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"configPath", *flags.configPath,
		"dbDSN_set", *flags.dbDSN != "",
		"waDSN_set", *flags.waDSN != "",
		"twilio", *flags.twilio)

	return flags
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.waDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDSN))
	}
	return waOpts
}

// buildAppOptions constructs application configuration options
func buildAppOptions(flags Flags) []app.Option {
	appOpts := []app.Option{
		app.WithConfigPath(*flags.configPath),
		app.WithStateDir(*flags.stateDir),
	}
	if *flags.dbDSN != "" {
		appOpts = append(appOpts, app.WithDBDSN(*flags.dbDSN))
	}
	if *flags.twilio {
		appOpts = append(appOpts, app.WithTwilioEscalation())
	}
	return appOpts
}
