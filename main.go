package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"InkBoard/internal/config"
	"InkBoard/internal/export"
	"InkBoard/internal/message"
	inknet "InkBoard/internal/net"
	"InkBoard/internal/ui"
)

const usage = `usage: inkboard <command> [flags] [url]

commands:
  serve    run a relay hub
  draw     open the drawing canvas (finds a hub over mDNS when no url is given)
  record   subscribe headless and write what is drawn to -out (.pdf or .png)`

func main() {
	if err := mainInner(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func mainInner() error {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		return errors.New("missing command")
	}
	cmd := os.Args[1]
	cfg, args, err := config.Parse(cmd, os.Args[2:])
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		return serve(ctx, cfg)
	case "draw":
		return draw(ctx, cfg, args)
	case "record":
		return record(ctx, cfg, args)
	}
	fmt.Fprintln(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	hub := inknet.NewHub(cfg.ChunkSize)
	if cfg.Advertise {
		server, err := inknet.Advertise(inknet.ListenPort(cfg.Addr))
		if err != nil {
			return err
		}
		defer server.Shutdown()
		slog.Info("advertising hub over mDNS")
	}
	slog.Info("share this link", "url", inknet.ShareURL(cfg.Addr))
	return hub.ListenAndServe(ctx, cfg.Addr)
}

// hubURL picks the hub from the command line, the config, or mDNS.
func hubURL(ctx context.Context, cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	slog.Info("looking for a hub", "timeout", cfg.Discovery.Duration)
	return inknet.Discover(ctx, cfg.Discovery.Duration)
}

func draw(ctx context.Context, cfg *config.Config, args []string) error {
	url, err := hubURL(ctx, cfg, args)
	if err != nil {
		return err
	}
	conn, err := inknet.Dial(ctx, url)
	if err != nil {
		return err
	}

	board := ui.NewBoardWidget(cfg.Mode, message.Width(cfg.Width), cfg.StrokeColor(), cfg.ChunkSize)
	board.SetViewport(ui.CenteredOn(message.Chunk(cfg.CenterX, cfg.CenterY), cfg.ChunkSize))
	session := inknet.NewSession(conn, board, cfg.Interest())
	session.OnSendError = func(m message.Message, err error) {
		board.SetStatus("Send failed: " + err.Error())
	}
	board.OnMessages = session.Submit
	board.OnViewChanged = session.Follow

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	ui.RunApp(ctx, "InkBoard - "+url, board, func() {
		board.SetStatus("Connected to " + url)
		go func() {
			err := session.Run(ctx)
			if err != nil {
				board.SetStatus("Disconnected: " + err.Error())
			} else {
				board.SetStatus("Disconnected")
			}
			runErr <- err
		}()
	})
	cancel()
	_ = session.Close()
	select {
	case err := <-runErr:
		return err
	default:
		return nil
	}
}

func record(ctx context.Context, cfg *config.Config, args []string) error {
	if cfg.Out == "" {
		return errors.New("record needs -out")
	}
	url, err := hubURL(ctx, cfg, args)
	if err != nil {
		return err
	}
	conn, err := inknet.Dial(ctx, url)
	if err != nil {
		return err
	}

	var sheet export.Sheet
	session := inknet.NewSession(conn, &sheet, cfg.Interest())
	defer session.Close()

	if cfg.Duration.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration.Duration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.Go(func() error {
		defer cancel()
		return session.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("recording stopped", "out", cfg.Out)
		return nil
	})
	runErr := g.Wait()
	if err := sheet.Save(cfg.Out); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
