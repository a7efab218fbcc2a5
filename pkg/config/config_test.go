package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const sampleConfig = `
serverAddr: ":9000"
baseURL: https://sitecraft.example.com
auth:
  jwtSecret: from-file
postgres:
  host: db
  port: "5432"
  dbname: sitecraft
  user: sitecraft
  replicas:
    - host=replica-1 dbname=sitecraft
paystack:
  secretKey: sk_file
sms:
  enable: true
  senderID: SiteCraft
notify:
  deliveryTimeout: 30s
cron:
  reconcileSpec: "@every 5m"
  reconcileAfter: 20m
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		path := writeConfig(t, sampleConfig)

		Convey("values come from the file and defaults fill the rest", func() {
			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.ServerAddr, ShouldEqual, ":9000")
			So(cfg.Auth.JWTSecret, ShouldEqual, "from-file")
			So(cfg.Auth.CookieName, ShouldEqual, "sitecraft-access-token")
			So(cfg.Postgres.SSLMode, ShouldEqual, "disable")
			So(cfg.Postgres.Replicas, ShouldHaveLength, 1)
			So(cfg.Paystack.BaseURL, ShouldEqual, "https://api.paystack.co")
			So(cfg.Paystack.Currency, ShouldEqual, "NGN")
			So(cfg.Paystack.CallbackURL, ShouldEqual, "https://sitecraft.example.com/api/payments/verify")
			So(cfg.SMS.Enable, ShouldBeTrue)
			So(cfg.SMS.CountryCode, ShouldEqual, "234")
			So(cfg.Email.Enable, ShouldBeFalse)
			So(cfg.Email.Provider, ShouldEqual, "resend")
			So(cfg.Notify.DeliveryTimeout.Duration, ShouldEqual, 30*time.Second)
			So(cfg.Cron.ReconcileSpec, ShouldEqual, "@every 5m")
			So(cfg.Cron.ReconcileAfter.Duration, ShouldEqual, 20*time.Minute)
			So(cfg.Cron.PendingExpiry.Duration, ShouldEqual, 24*time.Hour)
			So(cfg.Cron.StatsSpec, ShouldEqual, "@every 1m")
			So(cfg.Cron.JobTimeout.Duration, ShouldEqual, 5*time.Minute)
		})

		Convey("secrets in the environment override the file", func() {
			t.Setenv("JWT_SECRET", "from-env")
			t.Setenv("PAYSTACK_SECRET_KEY", "sk_env")
			t.Setenv("POSTGRES_PASSWORD", "hunter2")

			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.Auth.JWTSecret, ShouldEqual, "from-env")
			So(cfg.Paystack.SecretKey, ShouldEqual, "sk_env")
			So(cfg.Postgres.Password, ShouldEqual, "hunter2")
			So(cfg.Postgres.Host, ShouldEqual, "db")
		})
	})

	Convey("A missing file is an error", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("A malformed duration is an error", t, func() {
		_, err := Load(writeConfig(t, "notify:\n  deliveryTimeout: soon\n"))
		So(err, ShouldNotBeNil)
	})
}
