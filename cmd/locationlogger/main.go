package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"location-logger/internal/api"
	"location-logger/internal/config"
	"location-logger/internal/db"
	"location-logger/internal/geocode"
	"location-logger/internal/models"
	"location-logger/internal/notify"
	"location-logger/internal/observability"
	"location-logger/internal/parser"
	"location-logger/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	cfg      config.Config
	database *db.Database
	store    *db.LocationStore
	fuelLog  *db.FuelStore
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "locationlogger",
		Short: "Location Logger - location event storage and notification pipeline",
		Long: `Ingests location samples and trip events, persists them to SQLite with
bulk-write batching and minimum-distance filtering, and relays significant
events to Telegram with an SMS fallback. A fuel log keyed against the
location stream tracks consumption statistics.`,
	}

	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(fuelCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initDB loads configuration and opens the database and stores
func initDB() error {
	cfg = config.Load()

	var err error
	database, err = db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log := observability.NewLogger()
	store = db.NewLocationStore(database, log).Configure(cfg.MinDistance)
	fuelLog = db.NewFuelStore(database, log)
	return nil
}

// newRelay wires the notification relay from configuration. Returns nil when
// no bot credentials are configured.
func newRelay() *notify.Relay {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}

	log := observability.NewLogger()
	geo := geocode.NewCache(geocode.NewNominatimClient(cfg.GeocodeURL), log)

	var fallback notify.TextSender
	if cfg.SMSGatewayURL != "" {
		fallback = notify.NewSMSClient(cfg.SMSGatewayURL)
	}

	return notify.NewRelay(
		notify.NewHTTPProbe(),
		notify.NewTelegramClient(cfg.BotToken),
		fallback,
		geo,
		cfg.ChatID,
		cfg.NotifyNumber,
		log,
	)
}

// serverCmd starts the REST API server
func serverCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			log := observability.NewLogger()
			var notifier pipeline.Storer
			if relay := newRelay(); relay != nil {
				notifier = relay
			}

			server := api.NewServer(database, store, fuelLog, notifier, log)

			go observability.StartMetricsServer(cfg.MetricsPort)

			if port == "" {
				port = cfg.HTTPPort
			}
			log.Info("starting server", "port", port, "db", cfg.DBPath, "min_distance", cfg.MinDistance)
			return http.ListenAndServe(":"+port, server.Router())
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Server port (defaults to HTTP_PORT)")
	return cmd
}

// ingestCmd ingests location samples from files
func ingestCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest location samples from files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			log := observability.NewLogger()
			var notifier pipeline.Storer
			if relay := newRelay(); relay != nil {
				notifier = relay
			}

			p := parser.NewParser(format)
			totalStored := 0

			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				samples, err := p.ParseFile(file)
				if err != nil {
					fmt.Printf("  Error: %v\n", err)
					continue
				}

				session := pipeline.NewSession(store, notifier, log)
				if err := session.Open(); err != nil {
					fmt.Printf("  Session error: %v\n", err)
					continue
				}

				stored := 0
				for i := range samples {
					if session.Write(&samples[i]) {
						stored++
					}
				}
				if err := session.Close(); err != nil {
					fmt.Printf("  Commit error: %v\n", err)
					continue
				}

				elapsed := time.Since(start)
				fmt.Printf("  ✓ Stored %d/%d samples in %v\n", stored, len(samples), elapsed)
				totalStored += stored
			}

			fmt.Printf("\nTotal: %d samples stored\n", totalStored)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "File format (csv, json)")
	return cmd
}

// queryCmd queries stored locations
func queryCmd() *cobra.Command {
	var since string
	var limit int
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query stored locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			q := models.LocationQuery{Limit: limit}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid since format (use RFC3339): %w", err)
				}
				q.Since = t.UnixMilli()
			}

			results, err := store.Locations(q)
			if err != nil {
				return fmt.Errorf("query error: %w", err)
			}

			if outputFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			fmt.Printf("Found %d locations\n\n", len(results))
			for _, loc := range results {
				fmt.Printf("[%s] %.6f,%.6f ±%.0fm %s batt:%d%%",
					loc.Time().Format("2006-01-02 15:04:05"),
					loc.Latitude, loc.Longitude, loc.Accuracy,
					loc.Provider, loc.DisplayBattery())
				if loc.Event != "" {
					fmt.Printf(" event:%s", loc.Event)
				}
				if loc.ExtraInfo != "" {
					fmt.Printf(" info:%s", loc.ExtraInfo)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&since, "since", "s", "", "Start time (RFC3339)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum records to return")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// fuelCmd manages the fuel log
func fuelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuel",
		Short: "Fuel log commands",
	}

	logCmd := &cobra.Command{
		Use:   "log ODO AMOUNT PRICEPERLITRE",
		Short: "Log a fuel purchase and show consumption statistics",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			odo, amount, price, err := parser.ParseFuelArgs(args)
			if err != nil {
				// Malformed input is reported, not escalated
				fmt.Printf("Error: %v\n", err)
				return nil
			}

			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			loc, err := store.Last()
			if err != nil {
				return fmt.Errorf("error reading last location: %w", err)
			}

			count, err := fuelLog.LogFuel(loc, odo, amount, price)
			if err != nil {
				return fmt.Errorf("error logging fuel: %w", err)
			}

			statics, err := fuelLog.MostRecentStatics()
			if err != nil {
				return fmt.Errorf("error computing statistics: %w", err)
			}

			fmt.Printf("Logged purchase #%d\n", count)
			if statics != nil {
				fmt.Printf("%d km, %vL, %v km/L\n", statics.Km, statics.Litres, statics.Avg)
			}
			if avg, err := fuelLog.AvgConsumption(); err == nil {
				fmt.Printf("Overall avg: %v km/L\n", avg)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List fuel purchases",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			logs, err := fuelLog.GetLogs(limit)
			if err != nil {
				return fmt.Errorf("error listing fuel logs: %w", err)
			}

			if len(logs) == 0 {
				fmt.Println("No fuel purchases recorded.")
				return nil
			}
			for _, entry := range logs {
				fmt.Println(entry.String())
			}
			return nil
		},
	}
	listCmd.Flags().IntP("limit", "l", 0, "Maximum entries to list (0 = all)")

	rmCmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a fuel purchase by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Printf("Error: invalid id %q\n", args[0])
				return nil
			}

			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			if err := fuelLog.Delete(id); err != nil {
				return fmt.Errorf("error deleting fuel log: %w", err)
			}
			fmt.Printf("Deleted %d\n", id)
			return nil
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show consumption statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			statics, err := fuelLog.MostRecentStatics()
			if err != nil {
				return fmt.Errorf("error computing statistics: %w", err)
			}
			if statics == nil {
				fmt.Println("No fuel purchases recorded.")
				return nil
			}

			fmt.Printf("Most recent: %d km, %vL, %v km/L\n", statics.Km, statics.Litres, statics.Avg)
			avg, err := fuelLog.AvgConsumption()
			if err != nil {
				fmt.Printf("Overall avg: n/a (%v)\n", err)
				return nil
			}
			fmt.Printf("Overall avg: %v km/L\n", avg)
			return nil
		},
	}

	cmd.AddCommand(logCmd, listCmd, rmCmd, statsCmd)
	return cmd
}

// notifyCmd pushes a test notification through the relay
func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify [text]",
		Short: "Send an informational notification with the last known location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			relay := newRelay()
			if relay == nil {
				return fmt.Errorf("bot credentials not configured (BOT_TOKEN, CHAT_ID)")
			}

			loc, err := store.Last()
			if err != nil {
				return fmt.Errorf("error reading last location: %w", err)
			}
			if loc == nil {
				loc = &models.Location{Timestamp: time.Now().UnixMilli(), Provider: "manual"}
			}
			loc.ExtraInfo = args[0]

			if relay.Notify(loc) {
				fmt.Println("Notification delivered.")
			} else {
				fmt.Println("Notification could not be delivered.")
			}
			return nil
		},
	}
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			stats, err := database.Stats()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("Location Logger Statistics")
			fmt.Println("==========================")
			fmt.Printf("  Locations:       %v\n", stats["total_locations"])
			fmt.Printf("  Pending upload:  %v\n", stats["pending_upload"])
			fmt.Printf("  Fuel purchases:  %v\n", stats["total_fuel_logs"])
			fmt.Printf("  Database:        %s\n", cfg.DBPath)
			return nil
		},
	}
}
