package cmd

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/factory"
	"github.com/vibast-solutions/ms-go-club-dues/app/notification"
	"github.com/vibast-solutions/ms-go-club-dues/app/provider"
	"github.com/vibast-solutions/ms-go-club-dues/app/repository"
	"github.com/vibast-solutions/ms-go-club-dues/app/scheduler"
	"github.com/vibast-solutions/ms-go-club-dues/app/service"
	"github.com/vibast-solutions/ms-go-club-dues/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := repository.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to migrate database")
		}
	}
	return db
}

func mustCreateDuesService() (*config.Config, *service.DuesService, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)

	fees := dues.DefaultFeeTable()
	if cfg.Club.FeeTablePath != "" {
		loaded, err := dues.LoadFeeTable(cfg.Club.FeeTablePath)
		if err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to load fee table")
		}
		fees = loaded
	}

	mercadoPago := provider.NewMercadoPagoProvider(provider.MercadoPagoConfig{
		AccessToken:               cfg.MercadoPago.AccessToken,
		WebhookSecret:             cfg.MercadoPago.WebhookSecret,
		BaseURL:                   cfg.MercadoPago.BaseURL,
		Sandbox:                   cfg.MercadoPago.Sandbox,
		SignatureToleranceSeconds: cfg.MercadoPago.SignatureToleranceSeconds,
		HTTPTimeout:               cfg.MercadoPago.HTTPTimeout,
	})

	duesService := service.NewDuesService(
		service.Repositories{
			Members:       repository.NewMemberRepository(db),
			Dues:          repository.NewDuesRepository(db),
			Events:        repository.NewDuesEventRepository(db),
			Notifications: repository.NewGatewayNotificationRepository(db),
		},
		dues.NewMachine(cfg.Club.Code, cfg.Dues.MaxReminders),
		fees,
		provider.NewRegistry(mercadoPago),
		mustCreateDispatcher(cfg),
		cfg.Club,
		cfg.Dues,
		cfg.MercadoPago,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, duesService, cleanup
}

func mustCreateDispatcher(cfg *config.Config) *notification.Dispatcher {
	logger := factory.NewModuleLogger("notification")

	var email notification.EmailSender
	if cfg.SMTP.Host == "" {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		email = notification.NewLogSender(logger)
	} else {
		sender, err := notification.NewSMTPSender(notification.SMTPConfig{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			From:      cfg.SMTP.From,
			TLSPolicy: cfg.SMTP.TLSPolicy,
			Timeout:   cfg.Dues.NotificationTimeout,
		})
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize SMTP sender")
		}
		email = sender
	}

	var sms notification.SMSSender
	if cfg.SMS.Enabled() {
		sms = notification.NewTwilioSender(notification.TwilioConfig{
			BaseURL:     cfg.SMS.BaseURL,
			AccountSID:  cfg.SMS.AccountSID,
			AuthToken:   cfg.SMS.AuthToken,
			From:        cfg.SMS.From,
			HTTPTimeout: cfg.SMS.HTTPTimeout,
		})
	}

	return notification.NewDispatcher(notification.Config{
		ClubName:  cfg.Club.Name,
		Currency:  cfg.Club.Currency,
		Timeout:   cfg.Dues.NotificationTimeout,
		RateLimit: cfg.Dues.NotificationRateLimit,
		Burst:     cfg.Dues.NotificationBurst,
	}, email, sms, logger)
}

type duesTask struct {
	name string
	spec func(cfg config.JobsConfig) string
	run  func(ctx context.Context, s *service.DuesService) (logrus.Fields, error)
}

var duesTasks = []duesTask{
	{
		name: service.JobOverdueSweep,
		spec: func(cfg config.JobsConfig) string { return cfg.OverdueSweepCron },
		run: func(ctx context.Context, s *service.DuesService) (logrus.Fields, error) {
			summary, err := s.RunOverdueSweep(ctx, time.Now())
			if summary == nil {
				return nil, err
			}
			return summary.Fields(), err
		},
	},
	{
		name: service.JobReminderDispatch,
		spec: func(cfg config.JobsConfig) string { return cfg.ReminderDispatchCron },
		run: func(ctx context.Context, s *service.DuesService) (logrus.Fields, error) {
			summary, err := s.RunReminderDispatch(ctx, time.Now())
			if summary == nil {
				return nil, err
			}
			return summary.Fields(), err
		},
	},
	{
		name: service.JobMonthlyGeneration,
		spec: func(cfg config.JobsConfig) string { return cfg.MonthlyGenerationCron },
		run: func(ctx context.Context, s *service.DuesService) (logrus.Fields, error) {
			summary, err := s.RunMonthlyGeneration(ctx, time.Now())
			if summary == nil {
				return nil, err
			}
			return summary.Fields(), err
		},
	},
}

// newDuesScheduler registers the given jobs, or all of them when names is
// empty, on the club's timezone.
func newDuesScheduler(cfg *config.Config, s *service.DuesService, names ...string) *scheduler.Scheduler {
	sched := scheduler.New(cfg.Club.Location)
	for _, task := range duesTasks {
		if len(names) > 0 && !slices.Contains(names, task.name) {
			continue
		}
		run := task.run
		if err := sched.Register(task.name, task.spec(cfg.Jobs), func(ctx context.Context) (logrus.Fields, error) {
			return run(ctx, s)
		}); err != nil {
			logrus.WithError(err).WithField("job", task.name).Fatal("Failed to register job")
		}
	}
	return sched
}
