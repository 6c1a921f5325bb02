package main

import (
	"context"
	"ephemeral/internal"
	"ephemeral/runtime"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitUsage   = 2
	exitConfig  = 3
	exitRuntime = 4
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the engine and background workers.
func run(args []string) (int, error) {
	// 1. CLI surface: exactly one required positional argument, the port.
	port, err := parsePort(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: ephemeral-server <port>")
		return exitUsage, err
	}

	// 2. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	config.Port = port

	logger := logs.GetLoggerFromString(config.LogLevel)
	internal.StartDebugServer(logger, config.DebugAddr)

	// 3. Engine owning the process-wide Registry and Bus
	engine, err := runtime.NewEngine(logger, config)
	if err != nil {
		return exitConfig, err
	}

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting engine...")
		if err := engine.Start(ctx); err != nil {
			errChan <- fmt.Errorf("engine error: %w", err)
		}
	}()

	// 5. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 6. Final Cleanup (Graceful Shutdown)
	// Connected clients get the shutdown notice before their sessions are cancelled.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := engine.Stop(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

// parsePort validates the single positional argument.
func parsePort(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one argument, got %d", len(args))
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", args[0])
	}
	return port, nil
}
