package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	rdb "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/nshost/internal/bootstrap"
	"github.com/dropDatabas3/nshost/internal/captcha"
	"github.com/dropDatabas3/nshost/internal/config"
	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/email"
	"github.com/dropDatabas3/nshost/internal/hosting/shell"
	"github.com/dropDatabas3/nshost/internal/hosting/supervisor"
	"github.com/dropDatabas3/nshost/internal/hosting/tenantdb"
	"github.com/dropDatabas3/nshost/internal/hosting/versions"
	"github.com/dropDatabas3/nshost/internal/hosting/vhost"
	"github.com/dropDatabas3/nshost/internal/hosting/zone"
	domainsctrl "github.com/dropDatabas3/nshost/internal/http/controllers/domains"
	registerctrl "github.com/dropDatabas3/nshost/internal/http/controllers/register"
	systemctrl "github.com/dropDatabas3/nshost/internal/http/controllers/system"
	mw "github.com/dropDatabas3/nshost/internal/http/middlewares"
	"github.com/dropDatabas3/nshost/internal/http/router"
	"github.com/dropDatabas3/nshost/internal/http/server"
	jwtx "github.com/dropDatabas3/nshost/internal/jwt"
	"github.com/dropDatabas3/nshost/internal/lifecycle"
	"github.com/dropDatabas3/nshost/internal/metrics"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
	"github.com/dropDatabas3/nshost/internal/rate"
	"github.com/dropDatabas3/nshost/internal/registration"
	"github.com/dropDatabas3/nshost/internal/store/memory"
	"github.com/dropDatabas3/nshost/internal/store/pg"
)

// version se pisa en build con -ldflags "-X main.version=..."
var version = "dev"

// stores es lo que exponen tanto memory.Store como pg.Store.
type stores interface {
	Domains() repository.DomainRepository
	Users() repository.UserRepository
	Requests() repository.RegistrationRepository
	EmailValidations() repository.EmailValidationRepository
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	var (
		configPath  = flag.String("config", "configs/config.yaml", "path to YAML config (optional)")
		envFile     = flag.String("env-file", ".env", "path to .env file (optional)")
		printConfig = flag.Bool("print-config", false, "print the effective config and exit")
	)
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "env file %s: %v\n", *envFile, err)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *printConfig {
		printEffective(cfg)
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L().Error("service stopped with error", logger.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func printEffective(cfg *config.Config) {
	c := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "******"
	}
	c.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	c.SMTP.Password = mask(c.SMTP.Password)
	c.Captcha.Secret = mask(c.Captcha.Secret)
	c.Storage.DSN = mask(c.Storage.DSN)
	c.TenantDB.URL = mask(c.TenantDB.URL)
	out, err := yaml.Marshal(&c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "print config: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("main")
	dev := cfg.IsDev()
	checks := map[string]systemctrl.Pinger{}

	// ─── Store ───
	var st stores
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Storage.MigrateOnBoot {
			if err := pg.Migrate(ctx, cfg.Storage.DSN); err != nil {
				return fmt.Errorf("migrate on boot: %w", err)
			}
			log.Info("migrations applied")
		}
		pgs, err := pg.New(ctx, pg.Config{DSN: cfg.Storage.DSN, MaxConns: cfg.Storage.MaxConns, MinConns: cfg.Storage.MinConns})
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer pgs.Close()
		checks["store"] = pgs
		st = pgs
	default:
		log.Warn("using in-memory store, data is lost on restart")
		st = memory.New()
	}

	if n, err := bootstrap.EnsureAdmins(ctx, st.Users(), cfg.Auth.AdminEmails); err != nil {
		return err
	} else if n > 0 {
		log.Info("admin users bootstrapped", logger.Count(n))
	}

	// ─── Auth ───
	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		if !dev {
			return errors.New("auth.jwt_secret is required")
		}
		secret = randomSecret()
		log.Warn("auth.jwt_secret empty, using an ephemeral secret; tokens will not survive a restart")
	}
	issuer, err := jwtx.NewIssuer(cfg.Auth.Issuer, secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	// ─── Hosting components ───
	runner := shell.Exec{Timeout: 2 * time.Minute}
	zones := zone.New(zone.Config{
		ZoneFile:      cfg.DNS.ZoneFile,
		Target:        cfg.DNS.Target,
		ReloadCommand: cfg.DNS.ReloadCommand,
	}, runner)
	vhosts := vhost.New(vhost.Config{
		SitesAvailable: cfg.Nginx.SitesAvailable,
		SitesEnabled:   cfg.Nginx.SitesEnabled,
		Template:       cfg.Nginx.Template,
		Excluded:       cfg.Nginx.Excluded,
		TestCommand:    cfg.Nginx.TestCommand,
		ReloadCommand:  cfg.Nginx.ReloadCommand,
		PortMin:        cfg.Nginx.PortMin,
		PortMax:        cfg.Nginx.PortMax,
	}, runner)
	tdb := tenantdb.New(tenantdb.Config{URL: cfg.TenantDB.URL, ConnectTimeout: cfg.TenantDB.ConnectTimeout})
	sup := supervisor.New(supervisor.Config{
		Binary:      cfg.Runtime.PM2Binary,
		NSHome:      cfg.Runtime.NSHome,
		Interpreter: cfg.Runtime.Interpreter,
		EntryScript: cfg.Runtime.EntryScript,
		DefaultDir:  cfg.Runtime.DefaultDir,
		StateDir:    cfg.Runtime.StateDir,
		DevMode:     cfg.Runtime.DevMode,
		DBHost:      cfg.TenantDB.InstanceHost,
		BaseEnv:     cfg.Runtime.BaseEnv,
	}, runner)

	catalog := versions.New(cfg.Runtime.NSHome, cfg.Versions.CacheTTL)
	if cfg.Versions.Watch {
		go func() {
			if err := catalog.Watch(ctx); err != nil {
				log.Warn("versions watch stopped", logger.Err(err))
			}
		}()
	}

	// ─── Email + captcha ───
	sender := &email.SMTPSender{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		ReplyTo:  cfg.SMTP.ReplyTo,
		User:     cfg.SMTP.Username,
		Pass:     cfg.SMTP.Password,
		TLSMode:  cfg.SMTP.TLSMode,
		Insecure: cfg.SMTP.InsecureSkipVerify,
	}
	notifier := email.NewNotifier(sender, email.NotifierConfig{
		Dev:             dev,
		PublicDomain:    cfg.Email.PublicDomain,
		BaseURL:         cfg.Server.BaseURL,
		AdminRecipients: cfg.Email.AdminRecipients,
		ValidFor:        registration.CodeTTL,
	})
	verifier := captcha.New(captcha.Config{
		Secret:    cfg.Captcha.Secret,
		MinScore:  cfg.Captcha.MinScore,
		VerifyURL: cfg.Captcha.VerifyURL,
		Timeout:   cfg.Captcha.Timeout,
		Skip:      dev && cfg.Captcha.Secret == "",
	})

	// ─── Rate limit ───
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		switch cfg.Cache.Kind {
		case "redis":
			client := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
			defer func() { _ = client.Close() }()
			checks["redis"] = pingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
			limiter = rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Register, cfg.Rate.Window)
		default:
			limiter = rate.NewMemoryLimiter(cfg.Rate.Register, cfg.Rate.Window)
		}
		log.Info("register rate limit enabled",
			logger.String("backend", cfg.Cache.Kind),
			logger.Int("limit", cfg.Rate.Register),
			logger.String("window", cfg.Rate.Window.String()))
	}

	// ─── Metrics ───
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.RegisterLifecycle(reg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := mw.RegisterHTTPMetrics(reg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// ─── Services ───
	orch := lifecycle.New(lifecycle.Deps{
		Domains:             st.Domains(),
		Users:               st.Users(),
		Requests:            st.Requests(),
		Zone:                zones,
		Vhost:               vhosts,
		DB:                  tdb,
		Supervisor:          sup,
		Notifier:            notifier,
		Versions:            catalog,
		StartAllConcurrency: cfg.Runtime.StartAllConcurrency,
	})
	regSvc := registration.New(registration.Deps{
		Requests:      st.Requests(),
		Validations:   st.EmailValidations(),
		DomainRecords: st.Domains(),
		Users:         st.Users(),
		Domains:       orch,
		Captcha:       verifier,
		Notifier:      notifier,
	})

	handler := router.New(router.Deps{
		Domains:  domainsctrl.NewController(orch),
		Register: registerctrl.NewController(regSvc),
		System: systemctrl.NewController(systemctrl.Deps{
			Checks:   checks,
			Versions: catalog,
			Mailer:   notifier,
			Version:  version,
		}),
		Auth:        issuer,
		RateLimiter: mw.RateLimitConfig{Limiter: limiter},
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Dev:         dev,
	})

	log.Info("nshost ready",
		logger.String("env", cfg.App.Env),
		logger.String("store", cfg.Storage.Driver),
		logger.String("addr", cfg.Server.Addr))
	return server.Run(ctx, server.Config{Addr: cfg.Server.Addr}, handler)
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	out := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(out, b)
	return out
}
