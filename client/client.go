package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"stream-lab/domain"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string        `env:"OVERLAY_SERVER_ADDR,default=localhost:8080"`
	Channels      string        `env:"OVERLAY_CHANNELS"`
	RetryInterval time.Duration `env:"OVERLAY_RETRY_INTERVAL,default=3s"`
	MaxAttempts   int           `env:"OVERLAY_MAX_ATTEMPTS,default=10"`
	LogLevel      string        `env:"LOG_LEVEL,default=INFO"`
}

// frame keeps the payload raw, it is printed as is.
type frame struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Seq   uint64          `json:"seq"`
	At    time.Time       `json:"at"`
	Data  json.RawMessage `json:"data"`
}

var channelColours = map[domain.Channel]color.Color{
	domain.ChannelChat:       color.FgWhite,
	domain.ChannelAlert:      color.FgMagenta,
	domain.ChannelMusic:      color.FgCyan,
	domain.ChannelTTS:        color.FgBlue,
	domain.ChannelStats:      color.FgGray,
	domain.ChannelGoals:      color.FgGreen,
	domain.ChannelModeration: color.FgRed,
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run prints every overlay frame. A lost connection is retried after a fixed interval,
// at most MaxAttempts times in a row.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u := url.URL{Scheme: "ws", Host: config.ServerAddress, Path: "/ws"}
	if config.Channels != "" {
		u.RawQuery = url.Values{"channels": {config.Channels}}.Encode()
	}

	attempts := 0
	for {
		connected, err := watch(ctx, u.String(), log)
		if ctx.Err() != nil {
			log.Info("Stopping client...")
			return exitOK, nil
		}
		if connected {
			attempts = 0
		}
		attempts++
		if attempts > config.MaxAttempts {
			return exitRuntime, fmt.Errorf("giving up after %d attempts: %w", config.MaxAttempts, err)
		}
		log.Warn("Overlay connection lost, reconnecting", "error", err, "attempt", attempts, "in", config.RetryInterval)
		select {
		case <-ctx.Done():
			return exitOK, nil
		case <-time.After(config.RetryInterval):
		}
	}
}

// watch reports whether the dial succeeded, the returned error is why the session ended.
func watch(ctx context.Context, addr string, log *slog.Logger) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return false, err
	}
	done := make(chan struct{})
	defer func() {
		close(done)
		_ = conn.Close()
	}()
	log.Info("Connected", "addr", addr)

	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	// Ask for the backlog once, the hub answers with recent_events.
	if err := conn.WriteJSON(domain.ClientMessage{Type: "request_data", DataType: "recent_events"}); err != nil {
		return true, err
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Debug("Ignoring malformed frame", "error", err)
			continue
		}
		printFrame(f)
	}
}

func printFrame(f frame) {
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}
	label := f.Type
	if f.Topic != "" {
		label = f.Type + "/" + f.Topic
	}
	c, ok := channelColours[domain.Channel(f.Type)]
	if !ok {
		c = color.FgYellow
	}
	fmt.Printf("%s %s %s\n", at.Format(time.TimeOnly), c.Render(fmt.Sprintf("[%-24s]", label)), string(f.Data))
}
