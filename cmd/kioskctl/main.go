// main.go - Admin control tool for the photo kiosk
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/term"

	"photokiosk/internal"
	"photokiosk/internal/auth"
	"photokiosk/internal/localtime"
	"photokiosk/internal/tickets"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command is one kioskctl subcommand
type Command interface {
	Name() string
	Description() string
	// NeedsApp reports whether Execute requires an initialised application
	NeedsApp() bool
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var commands = []Command{
	&MigrateCommand{},
	&NextTicketCommand{},
	&ReportPreviewCommand{},
	&HashPasswordCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if cmd.NeedsApp() {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Fatalf("Failed to initialize app: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
			_ = app.Services.Close()
		}()
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }
func (c *MigrateCommand) NeedsApp() bool      { return true }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// NextTicketCommand prints the ticket the next upload would receive
type NextTicketCommand struct{}

func (c *NextTicketCommand) Name() string { return "next-ticket" }
func (c *NextTicketCommand) Description() string {
	return "Shows the ticket number the next upload will get"
}
func (c *NextTicketCommand) NeedsApp() bool { return true }

func (c *NextTicketCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	svc := app.Services
	for _, p := range svc.Tickets.Partitions() {
		n, err := svc.Tickets.PartitionMax(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", p, err)
		}
		fmt.Printf("  %-18s highest %d\n", p, n)
	}

	n, err := svc.Tickets.NextIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to allocate ticket: %w", err)
	}
	ticket := tickets.Format(n, localtime.LocalNow(svc.Clock))
	fmt.Printf("Next ticket: %s (%s)\n", ticket.Display, ticket.Filename)
	return nil
}

// ReportPreviewCommand renders today's report, optionally mailing it
type ReportPreviewCommand struct{}

func (c *ReportPreviewCommand) Name() string { return "report-preview" }
func (c *ReportPreviewCommand) Description() string {
	return "Prints today's session report (--send mails it)"
}
func (c *ReportPreviewCommand) NeedsApp() bool { return true }

func (c *ReportPreviewCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("report-preview", flag.ContinueOnError)
	send := fs.Bool("send", false, "mail the report to the configured recipients")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *send {
		report, sent, err := app.Services.Reports.Send(ctx, "cli")
		if err != nil {
			return err
		}
		fmt.Print(report.Body)
		if !sent {
			log.Println("Report not mailed: mail or recipients not configured")
		}
		return nil
	}

	report, err := app.Services.Reports.Preview(ctx)
	if err != nil {
		return err
	}
	fmt.Println(report.Subject)
	fmt.Println()
	fmt.Print(report.Body)
	return nil
}

// HashPasswordCommand prints a bcrypt hash for KIOSK_ADMIN_PASSWORD_HASH
type HashPasswordCommand struct{}

func (c *HashPasswordCommand) Name() string { return "hash-password" }
func (c *HashPasswordCommand) Description() string {
	return "Hashes an admin password for KIOSK_ADMIN_PASSWORD_HASH"
}
func (c *HashPasswordCommand) NeedsApp() bool { return false }

func (c *HashPasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var password string
	if len(args) >= 1 {
		password = args[0]
	} else {
		var err error
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func promptPassword() (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(input), nil
	}

	fmt.Fprint(os.Stderr, "Enter admin password: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm admin password: ")
	confirm, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(pass) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pass), nil
}

// StatusCommand shows which integrations are wired
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }
func (c *StatusCommand) NeedsApp() bool      { return true }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	svc := app.Services
	current := svc.Settings.Get(ctx)

	sqlDB, err := app.DBManager.GetConnection().DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- App enabled: %t (settings v%d)", current.AppEnabled, current.Version)
	log.Printf("- Mail configured: %t", svc.Mailer.Configured())
	log.Printf("- Report recipients: %d", len(svc.Config.GetReportRecipients()))
	log.Printf("- GeoLite loaded: %t", svc.Geo.Enabled())
	log.Printf("- Report schedule: %q", svc.Config.ReportCron)
	return nil
}

// HelpCommand shows usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }
func (c *HelpCommand) NeedsApp() bool      { return false }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: kioskctl [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
