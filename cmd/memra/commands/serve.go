package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/marshallshelly/memra/cmd/memra/output"
	"github.com/marshallshelly/memra/internal/config"
	"github.com/marshallshelly/memra/internal/models"
	"github.com/marshallshelly/memra/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the application's generated handlers",
	Long: `Build the application's descriptors once, synthesize every handler set and
serve the route table under the configured API prefix.`,
	Example: `  memra serve
  MEMRA_DATABASE_URL=postgres://localhost/memra memra serve --listen :9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := newLogger()
		if err != nil {
			return err
		}
		authenticator, err := cfg.Auth.JWT()
		if err != nil {
			return config.ConfigError("loading auth keys", err)
		}

		reg, err := models.Registry()
		if err != nil {
			return config.SchemaError("building registry", err)
		}

		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		table, err := models.Routes(reg, db.SQL(), logger)
		if err != nil {
			return config.SchemaError("synthesizing handlers", err)
		}

		gin.SetMode(gin.ReleaseMode)
		engine, err := server.New(server.Options{
			Prefix: cfg.APIPrefix,
			Routes: table,
			Auth:   authenticator,
			Logger: logger,
		})
		if err != nil {
			return config.GeneralError("building server", err)
		}

		srv := &http.Server{
			Addr:              resolveString(serveListen, cfg.Listen),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			errc <- srv.ListenAndServe()
		}()
		output.Success("Serving %d routes on %s%s", table.Len(), srv.Addr, cfg.APIPrefix)
		logger.Info("server started", "addr", srv.Addr, "routes", table.Len())

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return config.GeneralError("serving", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return config.GeneralError("shutting down", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: config listen)")
}
