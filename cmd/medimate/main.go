package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/api"
	"github.com/gmsas95/medimate/internal/appointment"
	"github.com/gmsas95/medimate/internal/config"
	"github.com/gmsas95/medimate/internal/export"
	"github.com/gmsas95/medimate/internal/history"
	"github.com/gmsas95/medimate/internal/medicine"
	"github.com/gmsas95/medimate/internal/metrics"
	"github.com/gmsas95/medimate/internal/notify"
	"github.com/gmsas95/medimate/internal/profile"
	"github.com/gmsas95/medimate/internal/storage"
	"github.com/gmsas95/medimate/internal/trigger"
)

var version = "dev"

// App holds the application components
type App struct {
	config       *config.Config
	store        storage.Gateway
	gateway      *notify.LocalGateway
	scheduler    *notify.Scheduler
	ledger       *history.Ledger
	medicines    *medicine.Registry
	appointments *appointment.Registry
	profiles     *profile.Store
	exporter     *export.Exporter
	logger       *zap.Logger
}

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "help", "--help", "-h":
		printHelp()
		return
	case "version", "--version", "-v":
		fmt.Printf("MediMate version %s\n", version)
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dataDir := fs.String("data", "", "Path to data directory")

	var run func(app *App, fs *flag.FlagSet) error
	switch cmd {
	case "serve":
		run = (*App).runServe
	case "add":
		name := fs.String("name", "", "Medicine name")
		dosage := fs.String("dosage", "", "Dosage, e.g. 100mg")
		freq := fs.String("freq", "daily", "Frequency: daily, weekly, monthly, custom")
		times := fs.String("times", "", "Comma-separated dose times, e.g. 08:00,20:00")
		notes := fs.String("notes", "", "Free-text notes")
		run = func(app *App, _ *flag.FlagSet) error {
			return app.runAdd(*name, *dosage, *freq, *times, *notes)
		}
	case "list":
		run = (*App).runList
	case "upcoming":
		run = (*App).runUpcoming
	case "take":
		run = (*App).runTake
	case "skip":
		run = (*App).runSkip
	case "history":
		backfill := fs.Bool("backfill", true, "Resolve stale pending doses and fill day gaps first")
		run = func(app *App, _ *flag.FlagSet) error {
			return app.runHistory(*backfill)
		}
	case "stats":
		days := fs.Int("days", 30, "Range in days ending today")
		run = func(app *App, _ *flag.FlagSet) error {
			return app.runStats(*days)
		}
	case "appointments":
		run = (*App).runAppointments
	case "export":
		out := fs.String("o", "medimate-backup.yaml", "Output file")
		run = func(app *App, _ *flag.FlagSet) error {
			return app.exporter.Export(*out)
		}
	case "import":
		in := fs.String("i", "", "Snapshot file to restore")
		run = func(app *App, _ *flag.FlagSet) error {
			if *in == "" {
				return fmt.Errorf("usage: medimate import -i <file>")
			}
			return app.exporter.Import(*in)
		}
	case "wipe":
		confirm := fs.Bool("confirm", false, "Required: acknowledge that all data will be deleted")
		run = func(app *App, _ *flag.FlagSet) error {
			if !*confirm {
				return fmt.Errorf("refusing to wipe without -confirm")
			}
			return app.profiles.Wipe(app.gateway)
		}
	default:
		fmt.Printf("Unknown command: %s\n\n", cmd)
		printHelp()
		os.Exit(1)
	}

	fs.Parse(args)

	app, err := newApp(*configPath, *dataDir)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer app.close()

	if err := run(app, fs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(configPath, dataDir string) (*App, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(configPath, dataDir)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.Default()
	gateway := notify.NewLocalGateway(logger, printNotification, cfg.Reminders.PermissionGranted).WithMetrics(m)
	scheduler := notify.NewScheduler(gateway, store, logger)
	ledger := history.NewLedger(store, logger)
	medicines := medicine.NewRegistry(store, scheduler, ledger, logger).WithMetrics(m)
	lead := time.Duration(cfg.Reminders.AppointmentLeadMinutes) * time.Minute
	appointments := appointment.NewRegistry(store, scheduler, logger, lead).WithMetrics(m)

	return &App{
		config:       cfg,
		store:        store,
		gateway:      gateway,
		scheduler:    scheduler,
		ledger:       ledger,
		medicines:    medicines,
		appointments: appointments,
		profiles:     profile.NewStore(store, logger),
		exporter:     export.New(store, logger),
		logger:       logger,
	}, nil
}

func openStore(cfg *config.Config) (storage.Gateway, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.OpenSQLite(cfg.Storage.SQLitePath)
	default:
		return storage.OpenBadger(cfg.Storage.BadgerPath)
	}
}

func (app *App) close() {
	if err := app.store.Close(); err != nil {
		app.logger.Warn("Store close failed", zap.Error(err))
	}
	app.logger.Sync()
}

// printNotification is the delivery handler for fired reminders when running
// in the foreground.
func printNotification(payload notify.Payload, firedAt time.Time) {
	fmt.Printf("\n🔔 [%s] %s\n   %s\n", firedAt.Format("15:04"), payload.Title, payload.Body)
}

func (app *App) runServe(_ *flag.FlagSet) error {
	app.logger.Info("Starting MediMate",
		zap.String("version", version),
		zap.String("backend", app.config.Storage.Backend),
	)

	// Bring the ledger up to date before serving reads.
	if _, err := app.ledger.FillMissing(time.Now()); err != nil {
		app.logger.Warn("History back-fill failed", zap.Error(err))
	}

	// Re-arm triggers for the stored medicine set; timers do not survive
	// restarts.
	if err := app.rearmAll(); err != nil {
		app.logger.Warn("Trigger re-arm failed", zap.Error(err))
	}

	server := api.New(app.config, app.medicines, app.appointments, app.ledger, app.profiles, app.gateway, app.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		app.logger.Info("Shutting down", zap.String("signal", sig.String()))
		app.gateway.CancelAll()
		return server.Shutdown()
	}
}

// rearmAll replaces every stored medicine's triggers and every future
// appointment reminder with fresh timers.
func (app *App) rearmAll() error {
	medicines, err := app.medicines.Medicines()
	if err != nil {
		return err
	}
	for _, med := range medicines {
		if !med.IsActive {
			continue
		}
		if _, err := app.scheduler.RescheduleMedicine(med.ID, med.Name, med.Dosage, med.Frequency, med.Times, med.RecurringPattern); err != nil {
			app.logger.Warn("Failed to re-arm medicine",
				zap.String("medicine_id", med.ID),
				zap.Error(err),
			)
		}
	}

	// Fresh reminder ids are written back onto the records, so a later
	// delete cancels the live timer instead of a stale id.
	return app.appointments.RearmReminders(time.Now())
}

func (app *App) runAdd(name, dosage, freq, times, notes string) error {
	if name == "" || dosage == "" || times == "" {
		return fmt.Errorf("usage: medimate add -name <name> -dosage <dosage> -times 08:00,20:00 [-freq daily]")
	}

	draft := medicine.Draft{
		Name:      name,
		Dosage:    dosage,
		Frequency: trimFrequency(freq),
		Times:     splitTimes(times),
		Notes:     notes,
	}
	added, err := app.medicines.Add(draft)
	if added == nil {
		return err
	}
	if err != nil {
		fmt.Printf("Saved %s (%s) — warning: %v\n", added.Name, added.ID, err)
		return nil
	}
	fmt.Printf("Added %s %s, %s at %s\n", added.Name, added.Dosage, added.Frequency, strings.Join(added.Times, ", "))
	return nil
}

func (app *App) runList(_ *flag.FlagSet) error {
	medicines, err := app.medicines.Medicines()
	if err != nil {
		return err
	}
	if len(medicines) == 0 {
		fmt.Println("No medicines registered.")
		return nil
	}
	for _, med := range medicines {
		state := "active"
		if !med.IsActive {
			state = "inactive"
		}
		fmt.Printf("%-36s  %-20s %-10s %s (%s, %s)\n",
			med.ID, med.Name, med.Dosage, strings.Join(med.Times, ","), med.Frequency, state)
	}
	return nil
}

func (app *App) runUpcoming(_ *flag.FlagSet) error {
	medicines, err := app.medicines.Medicines()
	if err != nil {
		return err
	}
	doses := medicine.UpcomingDoses(medicines, time.Now())
	if len(doses) == 0 {
		fmt.Println("No upcoming doses.")
		return nil
	}
	for _, dose := range doses {
		fmt.Printf("%s  %s (%s)\n", dose.ScheduledTime.Format("Mon 15:04"), dose.MedicineName, dose.Dosage)
	}
	return nil
}

func (app *App) runTake(fs *flag.FlagSet) error {
	id := fs.Arg(0)
	if id == "" {
		return fmt.Errorf("usage: medimate take <medicine-id>")
	}
	if err := app.medicines.MarkTaken(id, ""); err != nil {
		return err
	}
	fmt.Println("Marked taken.")
	return nil
}

func (app *App) runSkip(fs *flag.FlagSet) error {
	id := fs.Arg(0)
	if id == "" {
		return fmt.Errorf("usage: medimate skip <medicine-id>")
	}
	if err := app.medicines.MarkSkipped(id, ""); err != nil {
		return err
	}
	fmt.Println("Marked skipped.")
	return nil
}

func (app *App) runHistory(backfill bool) error {
	var (
		days history.History
		err  error
	)
	if backfill {
		days, err = app.ledger.FillMissing(time.Now())
	} else {
		days, err = app.ledger.History()
	}
	if err != nil {
		return err
	}
	if len(days) == 0 {
		fmt.Println("No history recorded.")
		return nil
	}

	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	for _, date := range dates {
		bucket := days[date]
		fmt.Printf("%s  taken=%d skipped=%d\n", date, bucket.Taken, bucket.Skipped)
		for _, detail := range bucket.Details {
			fmt.Printf("    %-8s %s (%s)\n", detail.Status, detail.MedicineName, detail.Dosage)
		}
	}
	return nil
}

func (app *App) runStats(days int) error {
	if days < 1 {
		return fmt.Errorf("days must be positive")
	}
	now := time.Now()
	stats, err := app.ledger.StatsBetween(now.AddDate(0, 0, -(days-1)), now)
	if err != nil {
		return err
	}
	fmt.Printf("Last %d days: %d taken, %d skipped, %.0f%% adherence\n",
		days, stats.Taken, stats.Skipped, stats.Rate*100)
	return nil
}

func (app *App) runAppointments(_ *flag.FlagSet) error {
	upcoming, err := app.appointments.Upcoming(time.Now())
	if err != nil {
		return err
	}
	if len(upcoming) == 0 {
		fmt.Println("No upcoming appointments.")
		return nil
	}
	for _, appt := range upcoming {
		location := appt.Location
		if location == "" {
			location = "-"
		}
		fmt.Printf("%s %s  %-12s %s @ %s\n", appt.Date, appt.Time, appt.Type, appt.Title, location)
	}
	return nil
}

func trimFrequency(freq string) trigger.Frequency {
	return trigger.Frequency(strings.ToLower(strings.TrimSpace(freq)))
}

func splitTimes(raw string) []string {
	parts := strings.Split(raw, ",")
	times := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			times = append(times, t)
		}
	}
	return times
}

func printHelp() {
	fmt.Println(`MediMate - medication reminder engine

Usage: medimate [command] [flags]

Commands:
  serve         Run the API server and reminder timers (default)
  add           Register a medicine (-name, -dosage, -times, -freq, -notes)
  list          List registered medicines
  upcoming      Show upcoming doses
  take <id>     Mark a dose taken
  skip <id>     Mark a dose skipped
  history       Show the adherence history (-backfill)
  stats         Adherence totals (-days)
  appointments  Show upcoming appointments
  export        Write a YAML backup (-o)
  import        Restore a YAML backup (-i)
  wipe          Delete all data (-confirm)
  version       Print version

Global flags:
  -config  Path to config file
  -data    Path to data directory`)
}
