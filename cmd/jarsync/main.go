package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/hytools/jarsync/internal/adapter/driven/authhttp"
	"github.com/hytools/jarsync/internal/adapter/driven/memstore"
	"github.com/hytools/jarsync/internal/adapter/driven/releasehttp"
	sqliteadapter "github.com/hytools/jarsync/internal/adapter/driven/sqlite"
	"github.com/hytools/jarsync/internal/adapter/driven/ziparchive"
	"github.com/hytools/jarsync/internal/application"
	"github.com/hytools/jarsync/internal/config"
	"github.com/hytools/jarsync/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"channel", cfg.Channel,
		"api_url", cfg.APIBaseURL,
		"db_path", cfg.DBPath,
		"credential_persistence", cfg.HasEncryptionKey(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	// 5. Wire adapters. Without an encryption key the credential lives in
	// memory only and every start needs a fresh login.
	var credentialStore driven.CredentialStore
	if cfg.HasEncryptionKey() {
		credentialStore = sqliteadapter.NewCredentialRepo(db, cfg.EncryptionKey)
	} else {
		slog.Warn("JARSYNC_SECRET_KEY not set, credential will not be persisted")
		credentialStore = memstore.NewCredentialStore()
	}

	archiveCache, err := sqliteadapter.NewArchiveRepo(ctx, db)
	if err != nil {
		return err
	}

	authClient := authhttp.NewClient(cfg.TokenURL, cfg.DeviceAuthURL, cfg.ClientID)
	releaseClient := releasehttp.NewClient(cfg.APIBaseURL)
	opener := ziparchive.NewOpener()

	// 6. Wire the application services around a shared state bus.
	bus := application.NewBus()
	clock := clockwork.NewRealClock()
	credSvc := application.NewCredentialService(credentialStore, authClient, bus, clock)
	authSvc := application.NewDeviceAuthService(authClient, credentialStore, bus, clock, cfg.Scope)
	downloadSvc := application.NewDownloadService(credSvc, releaseClient, archiveCache, opener, bus, cfg.PayloadEntry)

	// 7. Bridge the bus to the terminal: login prompts, progress, failures,
	// and automatic login starts when a credential is missing.
	go watchPrompt(ctx, bus)
	go watchProgress(ctx, bus)
	go watchAuthErrors(ctx, bus)
	go watchAuthNeeded(ctx, bus, authSvc, cfg.Channel)

	// 8. Consent gate: the pipeline does not start until the terms are
	// accepted, either ahead of time via env or interactively here.
	ready := make(chan struct{})
	go func() {
		if cfg.EULAAccepted || confirmEULA(ctx) {
			close(ready)
		}
	}()

	go downloadSvc.Run(ctx, cfg.Channel, ready)

	// 9. Wait for the first acquired archive, then exit. An interrupt wins.
	archives, unsubscribe := bus.Archive.Subscribe()
	defer unsubscribe()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		return nil
	case archive := <-archives:
		fmt.Printf("\narchive ready: version %s, %d entries\n", archive.Version, len(archive.Handle.Entries()))
		return nil
	}
}

// confirmEULA asks for interactive acceptance of the distribution terms.
// It returns false when the input stream closes or the context ends first.
func confirmEULA(ctx context.Context) bool {
	fmt.Println("Downloading the server archive requires accepting the distribution terms.")
	fmt.Print("Type 'yes' to accept: ")

	answer := make(chan bool, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			answer <- false
			return
		}
		answer <- strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
	}()

	select {
	case <-ctx.Done():
		return false
	case ok := <-answer:
		if !ok {
			fmt.Println("Terms not accepted; nothing will be downloaded.")
		}
		return ok
	}
}

// watchPrompt prints the device-login instructions whenever a new prompt is
// published.
func watchPrompt(ctx context.Context, bus *application.Bus) {
	prompts, unsubscribe := bus.Prompt.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case prompt := <-prompts:
			if prompt == nil {
				continue
			}
			fmt.Printf("\nTo sign in, visit %s and enter the code %s\n", prompt.VerificationURI, prompt.UserCode)
			if prompt.VerificationURIComplete != "" {
				fmt.Printf("or open %s directly\n", prompt.VerificationURIComplete)
			}
		}
	}
}

// watchProgress renders download progress on a single terminal line.
func watchProgress(ctx context.Context, bus *application.Bus) {
	updates, unsubscribe := bus.Progress.Subscribe()
	defer unsubscribe()

	running := false
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-updates:
			if p.Running {
				fmt.Printf("\rdownloading... %3d%%", p.Percent)
				running = true
			} else if running {
				fmt.Println()
				running = false
			}
		}
	}
}

// watchAuthErrors surfaces login failures to the terminal.
func watchAuthErrors(ctx context.Context, bus *application.Bus) {
	errs, unsubscribe := bus.AuthError.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-errs:
			if msg != "" {
				fmt.Printf("\n%s\n", msg)
			}
		}
	}
}

// watchAuthNeeded starts a device login whenever the pipeline reports that no
// usable credential exists and no login is already in flight.
func watchAuthNeeded(ctx context.Context, bus *application.Bus, authSvc *application.DeviceAuthService, channel string) {
	needed, unsubscribe := bus.AuthNeeded.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-needed:
			if !v || authSvc.State() == application.DeviceAuthPolling {
				continue
			}
			if err := authSvc.StartLogin(ctx, channel); err != nil {
				slog.Error("failed to start device login", "error", err)
			}
		}
	}
}
