package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/server"
	"github.com/becomeliminal/sidekick/transcript"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the WebSocket chat front end",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newCorpusRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions, err := newSessions(cfg, rt.retriever, logger)
	if err != nil {
		return err
	}

	var rec *transcript.Store
	if cfg.Server.TranscriptPath != "" {
		rec, err = transcript.Open(cfg.Server.TranscriptPath)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	srv, err := server.New(server.Config{
		Sessions:    sessions,
		Transcript:  rec,
		TurnTimeout: cfg.Turn.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	logger.Info("starting sidekick", zap.String("addr", addr), zap.Stringer("partition", cfg.Partition()))
	return srv.Run(ctx, addr)
}
