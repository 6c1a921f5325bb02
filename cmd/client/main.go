package main

import (
	"bufio"
	"context"
	"encoding/json"
	"ephemeral/client"
	"ephemeral/render"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitConfig  = 3
	exitRuntime = 4
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8080/ws"`
	Name      string `envconfig:"CHAT_NAME"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"warn"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the client lifecycle: configuration loading, the connection,
// the stdin loop and event printing.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to the relay.
	c, err := client.Dial(ctx, log, config.ServerURL)
	if err != nil {
		return exitRuntime, err
	}
	defer c.Close()

	for _, line := range render.WelcomeLines {
		color.Cyan.Println(line)
	}
	if config.Name != "" {
		if err := c.Send(config.Name); err != nil {
			return exitRuntime, err
		}
	}

	// 4. Stdin loop: the first line names you, /who lists participants,
	// /quit leaves. Everything else is a message.
	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
				continue
			case line == "/quit":
				return
			case line == "/who":
				printWho(config.ServerURL)
			default:
				if err := c.Send(line); err != nil {
					color.Red.Printf("send failed: %v\n", err)
					return
				}
			}
		}
	}()

	// 5. Event loop until the server hangs up, stdin ends or Ctrl+C.
	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case <-inputDone:
			return exitOK, nil
		case frame, open := <-c.Events():
			if !open {
				color.Yellow.Println("connection closed by server")
				return exitOK, nil
			}
			printFrame(frame)
		}
	}
}

// printFrame colors events by kind: chatter green, lifecycle yellow,
// problems red, acks blue.
func printFrame(frame render.Frame) {
	at := time.Unix(frame.At, 0).Format(time.TimeOnly)
	switch frame.Kind {
	case "message":
		color.Green.Printf("[%s] %s: %s\n", at, color.Bold.Render(frame.From), frame.Text)
	case "join", "leave", "alert":
		color.Yellow.Printf("[%s] %s\n", at, frame.Text)
	case "error":
		color.Red.Printf("[%s] %s\n", at, frame.Text)
	default:
		color.Blue.Printf("[%s] %s\n", at, frame.Text)
	}
}

// printWho fetches the names listing over plain HTTP and renders a table.
func printWho(serverURL string) {
	names, err := fetchNames(serverURL)
	if err != nil {
		color.Red.Printf("who failed: %v\n", err)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Name"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for i, name := range names {
		table.Append([]string{fmt.Sprintf("%d", i+1), name})
	}
	table.Render()
}

// fetchNames derives the HTTP names endpoint from the websocket URL.
func fetchNames(serverURL string) ([]string, error) {
	url := strings.Replace(serverURL, "ws://", "http://", 1)
	url = strings.Replace(url, "wss://", "https://", 1)
	url = strings.TrimSuffix(url, "/ws") + "/names"

	httpClient := http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, err
	}
	return names, nil
}
