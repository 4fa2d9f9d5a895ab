package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"photokiosk/internal"
	"photokiosk/internal/config"
	"photokiosk/internal/database"
	"photokiosk/internal/kiosk"
	"photokiosk/internal/localtime"
)

// AdminPassword is the password test kiosks accept at /admin/login.
const AdminPassword = "kiosk-admin"

// testDBCache caches test databases by root test name so every call within
// one test shares a database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a named in-memory database with every model migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	for _, name := range tableNames {
		db.Exec(fmt.Sprintf("DELETE FROM %q", name))
	}
}

// GetLogger returns a logger that only prints errors.
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// TestConfig returns a copy of the configuration tuned for tests: test
// environment, inline event writes, report recipients and an admin password.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := *config.GetConfig()
	cfg.Environment = config.Test
	cfg.EventWorkerCount = 0
	cfg.ReportRecipients = "ops@example.com"
	cfg.ReportCron = ""
	cfg.GeoDBPath = ""
	cfg.BlobDirectory = t.TempDir()
	cfg.PublicDirectory = t.TempDir()

	hash, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.AdminPasswordHash = string(hash)
	return &cfg
}

// Kiosk is a fully wired kiosk over in-memory gateways.
type Kiosk struct {
	Config   *config.Config
	Services *kiosk.Services
	Files    *MemoryFiles
	Sheets   *MemorySheets
	Mailer   *RecordingMailer
	App      *fiber.App
}

// FixedClock pins the kiosk to 2025-12-03T02:05:31Z, i.e. 22:05 on 2 December local time.
var FixedClock = &localtime.FixedTimeProvider{At: time.Date(2025, 12, 3, 2, 5, 31, 0, time.UTC)}

// NewKiosk builds services on fakes and mounts every route on a cartridge
// test server. mutate may adjust the config before anything is built.
func NewKiosk(t *testing.T, mutate func(*config.Config)) *Kiosk {
	t.Helper()

	cfg := TestConfig(t)
	if mutate != nil {
		mutate(cfg)
	}

	k := &Kiosk{
		Config: cfg,
		Files:  NewMemoryFiles(),
		Sheets: NewMemorySheets(),
		Mailer: NewRecordingMailer(),
	}

	db := SetupTestDB(t)
	svc, err := kiosk.New(cfg, db, GetLogger(),
		kiosk.WithFiles(k.Files),
		kiosk.WithSheets(k.Sheets),
		kiosk.WithMailer(k.Mailer),
		kiosk.WithClock(FixedClock),
	)
	require.NoError(t, err)
	k.Services = svc

	srvCfg := internal.NewServerConfig()
	srvCfg.Config = cfg
	srvCfg.Logger = GetLogger()
	srvCfg.DBManager = NewTestDBManager(db)
	srvCfg.StaticDirectory = cfg.PublicDirectory
	srvCfg.StaticPrefix = cfg.PublicAssetsUrlPrefix
	srvCfg.TemplatesDirectory = cfg.PublicDirectory

	srv, err := cartridge.NewServer(srvCfg)
	require.NoError(t, err)
	internal.MountAppRoutes(svc)(srv)
	k.App = srv.App()
	return k
}

// AdminToken issues a valid admin bearer token.
func (k *Kiosk) AdminToken(t *testing.T) string {
	t.Helper()
	token, _, err := k.Services.Auth.Issue()
	require.NoError(t, err)
	return token
}
