package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-etl/internal/api/http"
	"github.com/i474232898/weather-etl/internal/logger"
	"github.com/i474232898/weather-etl/internal/warehouse"
)

func newReportCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the validation and reporting queries against the warehouse table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateWarehouse(); err != nil {
				return err
			}
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}
			wh, err := warehouse.Open(cfg.Warehouse.Driver, cfg.Warehouse.DSN, cfg.Warehouse.Table)
			if err != nil {
				return err
			}
			defer wh.Close()
			return printReport(cmd.Context(), wh, limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 3, "hottest hours to list per city")
	return cmd
}

func printReport(ctx context.Context, wh *warehouse.Warehouse, limit int, out io.Writer) error {
	summary, err := wh.Summarize(ctx)
	if err != nil {
		return err
	}
	stats, err := wh.CityStats(ctx)
	if err != nil {
		return err
	}
	hot, err := wh.HottestHours(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "rows\t%d\n", summary.Rows)
	fmt.Fprintf(tw, "duplicate ids\t%d\n", len(summary.DuplicateIDs))
	for _, d := range summary.DuplicateIDs {
		fmt.Fprintf(tw, "  %s\tx%d\n", d.ID, d.Count)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "city\trecords\tavg_temp_c\tmin_temp_c\tmax_temp_c\tprecip_mm\tlast_updated_at")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", s.City, s.Records,
			num(s.AvgTempC), num(s.MinTempC), num(s.MaxTempC), num(s.TotalPrecipMM), s.LastUpdatedAt)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "city\trank\tdt\ttemp_c")
	for _, h := range hot {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.1f\n", h.City, h.Rank, h.DT, h.TempC)
	}
	return tw.Flush()
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the warehouse queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			wh, err := warehouse.Open(cfg.Warehouse.Driver, cfg.Warehouse.DSN, cfg.Warehouse.Table)
			if err != nil {
				return err
			}
			defer wh.Close()

			app := httpapi.NewApp()
			httpapi.RegisterRoutes(app, wh)

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("listening on :%s", cfg.Server.Port)
				errCh <- app.Listen(":" + cfg.Server.Port)
			}()

			// Wait for termination signal
			select {
			case err := <-errCh:
				return fmt.Errorf("fiber server stopped: %w", err)
			case <-cmd.Context().Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Errorf("error during shutdown: %v", err)
			}
			return nil
		},
	}
}
