package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"crossmesh/pkg/comm/wsnet"
)

func newHubCmd() *cobra.Command {
	var (
		addr  string
		ranks int
	)
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Relay all-to-all rounds between rank processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Transport.Address
			}
			if !cmd.Flags().Changed("ranks") {
				ranks = cfg.Transport.Ranks
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			log := logrus.WithField("addr", addr)
			hub := wsnet.NewHub(ranks, log)
			mux := http.NewServeMux()
			mux.Handle("/ranks", hub)
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			serveErr := make(chan error, 1)
			go func() { serveErr <- srv.ListenAndServe() }()
			log.Infof("waiting for %d ranks on ws://%s/ranks", ranks, addr)

			runErr := make(chan error, 1)
			go func() { runErr <- hub.Run(ctx) }()

			select {
			case err = <-runErr:
			case err = <-serveErr:
				stop()
			}
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := srv.Shutdown(shutdown); serr != nil && err == nil {
				err = serr
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("hub: %w", err)
			}
			log.Info("hub stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from configuration)")
	cmd.Flags().IntVar(&ranks, "ranks", 0, "number of ranks to wait for (default from configuration)")
	return cmd
}

func newRankCmd() *cobra.Command {
	var (
		hubURL string
		rank   int
		ranks  int
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Run one rank of the configured scene against a hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ranks") {
				ranks = cfg.Transport.Ranks
			}
			cfg.Transport.Ranks = ranks
			if hubURL == "" {
				host := cfg.Transport.Address
				if strings.HasPrefix(host, ":") {
					host = "localhost" + host
				}
				hubURL = "ws://" + host + "/ranks"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			conn, err := wsnet.Dial(ctx, hubURL, rank, ranks)
			if err != nil {
				return err
			}
			defer conn.Close()

			s, err := evaluateRank(ctx, conn, cfg)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			printSummaries([]summary{s}, s.Elapsed)
			return nil
		},
	}
	cmd.Flags().StringVar(&hubURL, "hub", "", "hub URL (default ws://<transport.address>/ranks)")
	cmd.Flags().IntVar(&rank, "rank", 0, "rank of this process")
	cmd.Flags().IntVar(&ranks, "ranks", 0, "number of ranks (default from configuration)")
	return cmd
}
