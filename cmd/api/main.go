package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"opd-desk/internal/daily"
	"opd-desk/internal/handlers"
	"opd-desk/internal/live"
	"opd-desk/internal/middleware"
	"opd-desk/internal/routes"
	"opd-desk/internal/slip"
)

var nowFunc = time.Now

func main() {
	rootCmd := &cobra.Command{
		Use:   "opd-desk",
		Short: "Outpatient registration desk service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(todayCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the front-desk API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func todayCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Print today's OPD list and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printToday(cmd.Context(), wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for the first snapshot")
	return cmd
}

func runServer() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect store")
		return err
	}
	defer a.close()

	hub := live.NewHub(log)
	a.follow(hub)

	// The desk still starts when a subscription fails; the bridge keeps retrying.
	if err := a.bridge.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Database connection failed")
	}

	d, err := a.newDesk(ctx.Done())
	if err != nil {
		return err
	}

	h := handlers.New(handlers.Deps{
		Desk:      d,
		Mirror:    a.mirror,
		Projector: a.projector,
		Slips:     slip.NewRenderer(slip.Letterhead{Name: cfg.HospitalName, Address: cfg.HospitalAddress}, a.mirror),
		Hub:       hub,
		Clock:     nowFunc,
		Logger:    log,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, routes.Options{
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
		RateLimiter: middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, ctx.Done()),
		Gatherer:    a.registry,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func printToday(parent context.Context, wait time.Duration) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.bridge.Start(ctx); err != nil {
		return err
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, wait)
	defer waitCancel()
	if err := a.bridge.WaitReady(waitCtx); err != nil {
		return fmt.Errorf("waiting for first snapshot: %w", err)
	}

	view := a.projector.Project(a.mirror.Visits(), a.mirror.PatientCount(), nowFunc())

	fmt.Printf("%s  today: %d  total patients: %d\n\n", view.DisplayDate, view.TodayCount, view.TotalPatients)
	if view.Empty {
		fmt.Println(view.Placeholder)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPD ID\tPID\tNAME\tAGE/SEX\tDOCTOR\tSTATUS")
	for _, row := range daily.Rows(view) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", row.OPDID, row.PID, row.PatientName, row.AgeSex, row.Doctor, row.Status)
	}
	return tw.Flush()
}
