// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`
	CORSOrigins string   `mapstructure:"corsorigins"`

	// File paths
	StoragePath           string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	BlobDirectory         string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	TemplatesCatalogPath  string `mapstructure:"templatescatalogpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Photo folders on the file store
	PendingFolderID  string `mapstructure:"pendingfolderid"`
	ApprovedFolderID string `mapstructure:"approvedfolderid"`
	ListPageSize     int    `mapstructure:"listpagesize"`

	// Uploads
	UploadMaxBytes  int  `mapstructure:"uploadmaxbytes"`
	UploadSerialize bool `mapstructure:"uploadserialize"`

	// Event log and settings sheets
	LogSheetID       string `mapstructure:"logsheetid"`
	LogSheetRange    string `mapstructure:"logsheetrange"`
	SettingsSheetID  string `mapstructure:"settingssheetid"`
	SettingsRange    string `mapstructure:"settingsrange"`
	TemplatesRange   string `mapstructure:"templatesrange"`
	EventWorkerCount int    `mapstructure:"eventworkercount"`
	EventQueueSize   int    `mapstructure:"eventqueuesize"`

	// Gateway circuit breaker
	BreakerMaxFailures    int `mapstructure:"breakermaxfailures"`
	BreakerTimeoutSeconds int `mapstructure:"breakertimeoutseconds"`

	// Mail
	SMTPHost         string `mapstructure:"smtphost"`
	SMTPPort         int    `mapstructure:"smtpport"`
	SMTPUser         string `mapstructure:"smtpuser"`
	SMTPPassword     string `mapstructure:"smtppassword"`
	SMTPFrom         string `mapstructure:"smtpfrom"`
	SMTPFromName     string `mapstructure:"smtpfromname"`
	SMTPUseTLS       bool   `mapstructure:"smtpusetls"`
	ReportRecipients string `mapstructure:"reportrecipients"`
	ReportCron       string `mapstructure:"reportcron"`

	// Admin access
	AdminPasswordHash string `mapstructure:"adminpasswordhash"`
	TokenTTLSeconds   int    `mapstructure:"tokenttlseconds"`

	// Rate limiting for booth endpoints (requests per minute)
	PublicRateLimit int `mapstructure:"publicratelimit"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "photokiosk")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("corsorigins", "*")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("templatescatalogpath", "")
		v.SetDefault("publicdir", "web/dist")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("pendingfolderid", "pending")
		v.SetDefault("approvedfolderid", "approved")
		v.SetDefault("listpagesize", 100)
		v.SetDefault("uploadmaxbytes", 5*1024*1024)
		v.SetDefault("uploadserialize", true)
		v.SetDefault("logsheetid", "event-log")
		v.SetDefault("logsheetrange", "Log!A:J")
		v.SetDefault("settingssheetid", "settings")
		v.SetDefault("settingsrange", "Settings!A:B")
		v.SetDefault("templatesrange", "Templates!A:D")
		v.SetDefault("eventworkercount", 2)
		v.SetDefault("eventqueuesize", 256)
		v.SetDefault("breakermaxfailures", 5)
		v.SetDefault("breakertimeoutseconds", 30)
		v.SetDefault("smtpport", 587)
		v.SetDefault("smtpfromname", "Photo Kiosk")
		v.SetDefault("smtpusetls", true)
		v.SetDefault("reportcron", "0 23 * * *")
		v.SetDefault("tokenttlseconds", 43200)
		v.SetDefault("publicratelimit", 120)

		v.BindEnv("appname", "KIOSK_APP_NAME")
		v.BindEnv("appport", "KIOSK_APP_PORT")
		v.BindEnv("environment", "KIOSK_ENV")
		v.BindEnv("loglevel", "KIOSK_LOG_LEVEL")
		v.BindEnv("privatekey", "KIOSK_PRIVATE_KEY")
		v.BindEnv("corsorigins", "KIOSK_CORS_ORIGINS")
		v.BindEnv("storagepath", "KIOSK_STORAGE_PATH")
		v.BindEnv("geodbpath", "KIOSK_GEO_DB_PATH")
		v.BindEnv("templatescatalogpath", "KIOSK_TEMPLATES_CATALOG")
		v.BindEnv("publicdir", "KIOSK_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "KIOSK_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "KIOSK_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "KIOSK_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "KIOSK_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "KIOSK_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "KIOSK_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "KIOSK_DB_MAX_IDLE_CONNS")
		v.BindEnv("pendingfolderid", "KIOSK_PENDING_FOLDER_ID")
		v.BindEnv("approvedfolderid", "KIOSK_APPROVED_FOLDER_ID")
		v.BindEnv("listpagesize", "KIOSK_LIST_PAGE_SIZE")
		v.BindEnv("uploadmaxbytes", "KIOSK_UPLOAD_MAX_BYTES")
		v.BindEnv("uploadserialize", "KIOSK_UPLOAD_SERIALIZE")
		v.BindEnv("logsheetid", "KIOSK_LOG_SHEET_ID")
		v.BindEnv("logsheetrange", "KIOSK_LOG_SHEET_RANGE")
		v.BindEnv("settingssheetid", "KIOSK_SETTINGS_SHEET_ID")
		v.BindEnv("settingsrange", "KIOSK_SETTINGS_RANGE")
		v.BindEnv("templatesrange", "KIOSK_TEMPLATES_RANGE")
		v.BindEnv("eventworkercount", "KIOSK_EVENT_WORKERS")
		v.BindEnv("eventqueuesize", "KIOSK_EVENT_QUEUE_SIZE")
		v.BindEnv("breakermaxfailures", "KIOSK_BREAKER_MAX_FAILURES")
		v.BindEnv("breakertimeoutseconds", "KIOSK_BREAKER_TIMEOUT_SECONDS")
		v.BindEnv("smtphost", "KIOSK_SMTP_HOST")
		v.BindEnv("smtpport", "KIOSK_SMTP_PORT")
		v.BindEnv("smtpuser", "KIOSK_SMTP_USER")
		v.BindEnv("smtppassword", "KIOSK_SMTP_PASSWORD")
		v.BindEnv("smtpfrom", "KIOSK_SMTP_FROM")
		v.BindEnv("smtpfromname", "KIOSK_SMTP_FROM_NAME")
		v.BindEnv("smtpusetls", "KIOSK_SMTP_USE_TLS")
		v.BindEnv("reportrecipients", "KIOSK_REPORT_RECIPIENTS")
		v.BindEnv("reportcron", "KIOSK_REPORT_CRON")
		v.BindEnv("adminpasswordhash", "KIOSK_ADMIN_PASSWORD_HASH")
		v.BindEnv("tokenttlseconds", "KIOSK_TOKEN_TTL_SECONDS")
		v.BindEnv("publicratelimit", "KIOSK_PUBLIC_RATE_LIMIT")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
		cfg.BlobDirectory = cfg.GetBlobDirectory()

		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique KIOSK_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	if c.PendingFolderID == "" || c.ApprovedFolderID == "" {
		return fmt.Errorf("pending and approved folder ids are required")
	}
	if c.PendingFolderID == c.ApprovedFolderID {
		return fmt.Errorf("pending and approved folders must differ: %s", c.PendingFolderID)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("invalid upload max bytes: %d", c.UploadMaxBytes)
	}
	if c.ListPageSize <= 0 || c.ListPageSize > 1000 {
		return fmt.Errorf("invalid list page size: %d", c.ListPageSize)
	}
	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.StoragePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// GetBlobDirectory returns the directory where photo blobs are written.
func (c *Config) GetBlobDirectory() string {
	if c.BlobDirectory == "" {
		c.BlobDirectory = filepath.Join(c.StoragePath, "blobs")
	}
	return c.BlobDirectory
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the signing key (implements cartridge.FactoryConfig interface).
// Admin tokens are signed with the same key.
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetTokenTTL returns how long an admin token stays valid.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

// GetBreakerTimeout returns how long an open gateway breaker waits before probing again.
func (c *Config) GetBreakerTimeout() time.Duration {
	return time.Duration(c.BreakerTimeoutSeconds) * time.Second
}

// GetReportRecipients splits the comma separated recipient list.
func (c *Config) GetReportRecipients() []string {
	var out []string
	for _, r := range strings.Split(c.ReportRecipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// MailConfigured reports whether enough SMTP settings are present to send mail.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
