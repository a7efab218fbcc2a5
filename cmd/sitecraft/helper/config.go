package helper

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/sitecraft/sitecraft/dao/query"
	"github.com/sitecraft/sitecraft/internal/handler"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/collab"
	"github.com/sitecraft/sitecraft/pkg/config"
	"github.com/sitecraft/sitecraft/pkg/cronjob"
	"github.com/sitecraft/sitecraft/pkg/gateway/email"
	"github.com/sitecraft/sitecraft/pkg/gateway/paystack"
	"github.com/sitecraft/sitecraft/pkg/gateway/sms"
	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/meeting"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/payment"
	"github.com/sitecraft/sitecraft/pkg/relay"
	"github.com/sitecraft/sitecraft/pkg/store"
)

// LoadDebugEnvironment reads .debug.env in debug mode. A missing file is not
// an error; the variables may already be exported.
func LoadDebugEnvironment() error {
	if gin.Mode() != gin.DebugMode {
		return nil
	}
	err := godotenv.Load(".debug.env")
	if errors.Is(err, fs.ErrNotExist) {
		klog.Info(".debug.env not found, using the process environment")
		return nil
	}
	return err
}

// ConfigInitializer 封装配置初始化逻辑
type ConfigInitializer struct {
	backendConfig *config.Config
}

// NewConfigInitializer loads the config. SITECRAFT_BE_PORT overrides the
// listen port in debug mode.
func NewConfigInitializer() *ConfigInitializer {
	cfg := config.GetConfig()
	if be := os.Getenv("SITECRAFT_BE_PORT"); be != "" && gin.Mode() == gin.DebugMode {
		cfg.ServerAddr = ":" + be
	}
	return &ConfigInitializer{
		backendConfig: cfg,
	}
}

func (ci *ConfigInitializer) GetBackendConfig() *config.Config {
	return ci.backendConfig
}

// InitializeRegisterConfig connects the database, builds the gateway clients
// and the domain services, and wires them into a handler.RegisterConfig.
func (ci *ConfigInitializer) InitializeRegisterConfig() (*handler.RegisterConfig, error) {
	cfg := ci.backendConfig

	db := query.GetDB()
	if cfg.AutoMigrate {
		if err := query.Migrate(db); err != nil {
			return nil, err
		}
		klog.Info("database migrated")
	}
	st := store.NewDBStore(db)

	conf := &handler.RegisterConfig{
		Store:      st,
		TokenMgr:   util.NewTokenManager(cfg.Auth.JWTSecret),
		CookieName: cfg.Auth.CookieName,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Currency:   cfg.Paystack.Currency,
	}

	// Leave the interfaces nil when a channel is disabled, a typed nil
	// pointer would look like a configured sender.
	if cfg.SMS.Enable {
		conf.SMS = sms.NewClient(cfg.SMS.BaseURL, cfg.SMS.APIKey, cfg.SMS.SenderID, cfg.SMS.CountryCode)
	} else {
		klog.Info("sms delivery disabled")
	}
	if cfg.Email.Enable {
		switch cfg.Email.Provider {
		case "smtp":
			s := cfg.Email.SMTP
			conf.Email = email.NewSMTPSender(s.Host, s.Port, s.User, s.Password, cfg.Email.From)
		default:
			conf.Email = email.NewResendClient(cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.From)
		}
	} else {
		klog.Info("email delivery disabled")
	}

	conf.Notifier = notify.NewDispatcher(st, conf.SMS, conf.Email, conf.BaseURL, cfg.Notify.DeliveryTimeout.Duration)
	conf.Payments = payment.NewOrchestrator(st, paystack.NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey), conf.Notifier,
		payment.Options{
			Currency:      cfg.Paystack.Currency,
			CallbackURL:   cfg.Paystack.CallbackURL,
			WebhookSecret: cfg.Paystack.SecretKey,
			PendingExpiry: cfg.Cron.PendingExpiry.Duration,
		})
	conf.Projects = lifecycle.NewService(st, conf.Notifier, conf.Payments)
	conf.Meetings = meeting.NewService(st, conf.Notifier, cfg.Meeting.BaseURL)
	conf.Hub = relay.NewHub(relay.DefaultQueueSize)
	conf.Collab = collab.NewService(st, conf.Notifier, conf.Hub)

	conf.CronJobs = cronjob.NewCronJobManager(cfg.Cron.JobTimeout.Duration)
	jobs := []cronjob.Job{
		cronjob.NewReconcileJob(cfg.Cron.ReconcileSpec, conf.Payments, cfg.Cron.ReconcileAfter.Duration),
		cronjob.NewProjectStatsJob(cfg.Cron.StatsSpec, conf.Projects),
	}
	for _, job := range jobs {
		if err := conf.CronJobs.AddCronJob(job); err != nil {
			return nil, err
		}
	}

	return conf, nil
}
