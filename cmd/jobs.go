package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-club-dues/app/service"
	"github.com/vibast-solutions/ms-go-club-dues/app/telemetry"
)

var (
	workerMode bool
)

var duesCmd = &cobra.Command{
	Use:   "dues",
	Short: "Run recurring dues jobs",
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Mark pending dues past their due date as overdue",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(service.JobOverdueSweep)
	},
}

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Send payment reminders for overdue dues",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(service.JobReminderDispatch)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create the current period's dues for active members",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(service.JobMonthlyGeneration)
	},
}

func init() {
	rootCmd.AddCommand(duesCmd)
	duesCmd.AddCommand(overdueCmd)
	duesCmd.AddCommand(remindersCmd)
	duesCmd.AddCommand(generateCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously on the job's cron schedule")
}

func runCommand(name string) {
	cfg, duesService, cleanup := mustCreateDuesService()
	defer cleanup()

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.App.ServiceName, cfg.Telemetry)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	sched := newDuesScheduler(cfg, duesService, name)

	if !workerMode {
		// Failures are already logged as job_failed.
		if _, err := sched.RunNow(context.Background(), name); err != nil {
			cleanup()
			os.Exit(1)
		}
		return
	}

	sched.Start()
	for _, info := range sched.Tasks() {
		logrus.WithField("job", info.Name).WithField("next", info.Next).Info("Worker started")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.WithField("job", name).Info("Worker shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		logrus.WithError(err).WithField("job", name).Warn("Worker did not stop in time, running job was cancelled")
	}
}
