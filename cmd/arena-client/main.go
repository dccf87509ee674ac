// Command arena-client is an interactive terminal client for the chess arena.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/park285/cheese-arena-client/internal/arena"
	"github.com/park285/cheese-arena-client/internal/authapi"
	"github.com/park285/cheese-arena-client/internal/config"
	"github.com/park285/cheese-arena-client/internal/msgcat"
	"github.com/park285/cheese-arena-client/internal/obslog"
	"github.com/park285/cheese-arena-client/internal/rules"
	"github.com/park285/cheese-arena-client/internal/session"
	"github.com/park285/cheese-arena-client/internal/terminal"
	"github.com/park285/cheese-arena-client/internal/tokenstore"
	"github.com/park285/cheese-arena-client/internal/wsconn"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer obslog.Sync()
	logger := obslog.L()

	if err := run(logger); err != nil {
		logger.Error("client_exit", zap.Error(err))
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	texts, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return fmt.Errorf("message catalog: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	store, err := tokenstore.Open(ctx, cfg.RedisURL, cfg.TokenKey)
	if err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	defer store.Close()

	dialer := session.WSDialer{Options: []wsconn.Option{
		wsconn.WithPingInterval(cfg.PingInterval),
		wsconn.WithLogger(logger.With(zap.String("component", "ws"))),
	}}
	client := arena.New(arena.Options{
		SocketURL:      cfg.SocketURL,
		AuthTimeout:    cfg.AuthTimeout,
		SendTimeout:    cfg.SendTimeout,
		TickInterval:   cfg.TickInterval,
		CountdownTicks: cfg.CountdownTicks,
		ExitDelay:      cfg.ExitDelay,
	}, dialer, rules.New(), logger)
	go func() { _ = client.Run(ctx) }()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "arena > ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	out := rl.Stdout()

	registry := terminal.NewRegistry(terminal.Deps{
		Arena:  client,
		Auth:   authapi.NewClient(cfg.APIURL, authapi.WithLogger(logger.With(zap.String("component", "authapi")))),
		Tokens: store,
		Texts:  texts,
		Out:    out,
		ReadPassword: func(prompt string) (string, error) {
			b, err := rl.ReadPassword(prompt)
			return string(b), err
		},
		Color: term.IsTerminal(int(os.Stdout.Fd())),
	})

	snaps, unsubscribe := client.Subscribe(16)
	defer unsubscribe()
	go registry.Watch(snaps)
	if err := client.OnNavigate(func(gameID int64) {
		fmt.Fprintf(out, "Game #%d finished. %s\n", gameID, texts.MustRender("lobby.idle", nil))
	}); err != nil {
		return err
	}

	fmt.Fprintf(out, "Chess Arena Client\nServer: %s\nType 'help' for commands\n\n", cfg.SocketURL)
	if tok, err := store.Load(ctx); err == nil {
		if err := client.SetToken(tok); err != nil {
			return err
		}
		fmt.Fprintln(out, "Resuming saved session")
	} else if !errors.Is(err, tokenstore.ErrNotFound) {
		logger.Warn("token_load_error", zap.Error(err))
	}

	for {
		rl.SetPrompt(registry.Prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "x" {
			break
		}
		registry.Execute(line)
		if ctx.Err() != nil {
			break
		}
	}

	stop()
	<-client.Done()
	return nil
}
