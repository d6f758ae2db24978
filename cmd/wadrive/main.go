package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"wadrive/internal/client"
	"wadrive/internal/config"
	"wadrive/internal/events"
	"wadrive/internal/store"
	"wadrive/internal/types"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Login flags
	qrOut     string
	loginWait time.Duration

	// Watch flags
	archivePath string

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wadrive",
	Short: "wadrive - WhatsApp Web session driver",
	Long: `wadrive drives a WhatsApp Web session through a remote-controlled
browser: QR login, message sending, chat and contact listing, and a live
watch mode with a local SQLite archive.

Authentication state lives in the browser profile (user data dir), so a
session scanned once with 'wadrive login' is restored on later commands.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate by scanning a QR code",
	Long: `Opens the web client and waits for authentication. If the browser
profile already holds a session it completes immediately; otherwise each QR
challenge is rendered to a PNG for scanning with the phone.

Example:
  wadrive login --qr-out /tmp/wa-qr.png --wait 2m`,
	RunE: runLogin,
}

var sendCmd = &cobra.Command{
	Use:   "send [chat-id] [message]",
	Short: "Send a text message to a chat",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSend,
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List open chats",
	RunE:  runChats,
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List contacts",
	RunE:  runContacts,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream incoming messages until interrupted",
	Long: `Subscribes to incoming messages and prints them as they arrive.
With an archive path configured, every message is also written to the local
SQLite archive.`,
	RunE: runWatch,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	loginCmd.Flags().StringVar(&qrOut, "qr-out", "wadrive-qr.png", "Path for the rendered QR code PNG")
	loginCmd.Flags().DurationVar(&loginWait, "wait", 2*time.Minute, "How long to wait for the scan")

	watchCmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive path (overrides config)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext builds the root context: bounded by --timeout and cancelled
// on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return sigCtx, func() {
		stop()
		cancel()
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// readySession opens a session and expects it to restore without a QR scan.
// Used by the action commands; login is the only command that handles the
// challenge itself.
func readySession(ctx context.Context, cfg *config.Config) (*client.Client, error) {
	c := client.New(cfg, logger)
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx, cfg.AuthTimeout()); err != nil {
		c.Destroy(ctx)
		return nil, err
	}
	if c.Status() != client.StatusReady {
		c.Destroy(ctx)
		return nil, fmt.Errorf("session is not authenticated; run 'wadrive login' first")
	}
	return c, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c := client.New(cfg, logger)
	defer c.Destroy(context.Background())

	ready := make(chan struct{})
	gone := make(chan string, 1)
	c.Events().Subscribe(events.KindReady, func(events.Event) {
		close(ready)
	})
	c.Events().Subscribe(events.KindDisconnected, func(ev events.Event) {
		select {
		case gone <- ev.(events.Disconnected).Reason:
		default:
		}
	})
	c.Events().Subscribe(events.KindQR, func(ev events.Event) {
		code := ev.(events.QR).Code
		if err := qrcode.WriteFile(code, qrcode.Medium, 256, qrOut); err != nil {
			logger.Warn("failed to render qr code", zap.Error(err))
			return
		}
		fmt.Printf("Scan the QR code at %s with your phone\n", qrOut)
	})

	if err := c.Initialize(ctx); err != nil {
		return err
	}
	if err := c.Authenticate(ctx, loginWait); err != nil {
		return err
	}
	if c.Status() == client.StatusReady {
		fmt.Println("Authenticated.")
		return nil
	}

	// QR challenge on screen; wait for the scan.
	select {
	case <-ready:
		fmt.Println("Authenticated.")
		return nil
	case reason := <-gone:
		return fmt.Errorf("login failed: %s", reason)
	case <-ctx.Done():
		return fmt.Errorf("login timed out: %w", ctx.Err())
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := readySession(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Destroy(context.Background())

	chatID := args[0]
	body := joinArgs(args[1:])
	msg, err := c.SendMessage(ctx, chatID, body)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("send rejected for chat %s", chatID)
	}
	fmt.Printf("Sent %s\n", msg.ID)
	return nil
}

func runChats(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := readySession(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Destroy(context.Background())

	chats, err := c.Chats(ctx)
	if err != nil {
		return err
	}
	for _, ch := range chats {
		kind := "chat"
		if ch.IsGroup {
			kind = "group"
		}
		fmt.Printf("%-40s  %-5s  unread=%-3d  %s\n", ch.ID, kind, ch.Unread, ch.Name)
	}
	fmt.Printf("%d chats\n", len(chats))
	return nil
}

func runContacts(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := readySession(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Destroy(context.Background())

	contacts, err := c.Contacts(ctx)
	if err != nil {
		return err
	}
	for _, ct := range contacts {
		name := ct.Name
		if name == "" {
			name = ct.ShortName
		}
		fmt.Printf("%-40s  %-20s  %s\n", ct.ID, ct.Number, name)
	}
	fmt.Printf("%d contacts\n", len(contacts))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if archivePath != "" {
		cfg.Archive.Path = archivePath
	}

	c, err := readySession(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Destroy(context.Background())

	var archive *store.Archive
	if cfg.Archive.Path != "" {
		archive, err = store.OpenArchive(cfg.Archive.Path, logger)
		if err != nil {
			return err
		}
		defer archive.Close()
	}

	// Handlers stay non-blocking: they hand messages to the pump goroutine.
	msgCh := make(chan types.Message, 64)
	relay := func(ev events.Event) {
		var m types.Message
		switch e := ev.(type) {
		case events.Message:
			m = e.Message
		case events.MessageCreated:
			m = e.Message
		default:
			return
		}
		select {
		case msgCh <- m:
		case <-ctx.Done():
		}
	}
	c.Events().Subscribe(events.KindMessage, relay)
	c.Events().Subscribe(events.KindMessageCreated, relay)

	disconnected := make(chan string, 1)
	c.Events().Subscribe(events.KindDisconnected, func(ev events.Event) {
		select {
		case disconnected <- ev.(events.Disconnected).Reason:
		default:
		}
	})

	fmt.Println("Watching for messages (Ctrl-C to stop)...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case m := <-msgCh:
				printMessage(m)
				if archive != nil {
					if err := archive.SaveMessage(gctx, m); err != nil {
						logger.Warn("archive write failed", zap.String("id", m.ID), zap.Error(err))
					}
				}
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		select {
		case reason := <-disconnected:
			return fmt.Errorf("session disconnected: %s", reason)
		case <-gctx.Done():
			return nil
		}
	})
	return g.Wait()
}

func printMessage(m types.Message) {
	dir := "<-"
	if m.FromMe {
		dir = "->"
	}
	body := m.Body
	if body == "" && m.Caption != "" {
		body = m.Caption
	}
	if m.Kind != types.MessageText {
		body = fmt.Sprintf("[%s] %s", m.Kind, body)
	}
	fmt.Printf("%s %s %s (%s): %s\n",
		m.Timestamp.Format(time.RFC3339), dir, m.ChatID, m.Sender, body)
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
