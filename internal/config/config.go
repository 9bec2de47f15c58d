package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
		Name     string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// BaseURL público del panel (links en emails).
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver        string `yaml:"driver"`
		DSN           string `yaml:"dsn"`
		MaxConns      int32  `yaml:"max_conns"`
		MinConns      int32  `yaml:"min_conns"`
		MigrateOnBoot bool   `yaml:"migrate_on_boot"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Auth struct {
		JWTSecret   string        `yaml:"jwt_secret"`
		Issuer      string        `yaml:"issuer"`
		TokenTTL    time.Duration `yaml:"token_ttl"`
		AdminEmails []string      `yaml:"admin_emails"`
	} `yaml:"auth"`

	DNS struct {
		ZoneFile string `yaml:"zone_file"`
		// Target es el CNAME destino (con punto final).
		Target        string   `yaml:"target"`
		ReloadCommand []string `yaml:"reload_command"`
	} `yaml:"dns"`

	Nginx struct {
		SitesAvailable string   `yaml:"sites_available"`
		SitesEnabled   string   `yaml:"sites_enabled"`
		Template       string   `yaml:"template"`
		Excluded       []string `yaml:"excluded"`
		TestCommand    []string `yaml:"test_command"`
		ReloadCommand  []string `yaml:"reload_command"`
		PortMin        int      `yaml:"port_min"`
		PortMax        int      `yaml:"port_max"`
	} `yaml:"nginx"`

	TenantDB struct {
		// URL de admin del cluster Mongo (createUser/dropDatabase).
		URL string `yaml:"url"`
		// Host que reciben los tenants en MONGODB_URI.
		InstanceHost   string        `yaml:"instance_host"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
	} `yaml:"tenant_db"`

	Runtime struct {
		PM2Binary   string `yaml:"pm2_binary"`
		NSHome      string `yaml:"ns_home"`
		Interpreter string `yaml:"interpreter"`
		EntryScript string `yaml:"entry_script"`
		// DefaultDir se usa en dev o cuando el Domain no fija versión.
		DefaultDir string `yaml:"default_dir"`
		StateDir   string `yaml:"state_dir"`
		DevMode    bool   `yaml:"dev_mode"`
		// 0 = sin límite
		StartAllConcurrency int               `yaml:"startall_concurrency"`
		BaseEnv             map[string]string `yaml:"base_env"`
	} `yaml:"runtime"`

	Versions struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
		Watch    bool          `yaml:"watch"`
	} `yaml:"versions"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		ReplyTo  string `yaml:"reply_to"`
		// auto | starttls | ssl | none
		TLSMode            string `yaml:"tls_mode"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	Email struct {
		AdminRecipients []string `yaml:"admin_recipients"`
		// Dominio público de los tenants: <sub>.<PublicDomain>
		PublicDomain string `yaml:"public_domain"`
	} `yaml:"email"`

	Captcha struct {
		Secret    string        `yaml:"secret"`
		MinScore  float64       `yaml:"min_score"`
		VerifyURL string        `yaml:"verify_url"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"captcha"`

	Rate struct {
		Enabled  bool          `yaml:"enabled"`
		Register int           `yaml:"register_limit"`
		Window   time.Duration `yaml:"window"`
	} `yaml:"rate"`
}

// IsDev indica modo desarrollo (emails suprimidos, captcha omitido).
func (c *Config) IsDev() bool {
	return c.App.Env != "prod"
}

// Load lee path (si existe), aplica defaults y luego pisa con variables de entorno.
// Un path vacío o inexistente es válido: deploys sólo con env.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.Name == "" {
		c.App.Name = "nshost"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "nshost:"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "nshost"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}

	if c.DNS.ZoneFile == "" {
		c.DNS.ZoneFile = "/etc/bind/zones/nsromania.info"
	}
	if c.DNS.Target == "" {
		c.DNS.Target = "nsromania.info."
	}
	if len(c.DNS.ReloadCommand) == 0 {
		c.DNS.ReloadCommand = []string{"rndc", "reload"}
	}

	if c.Nginx.SitesAvailable == "" {
		c.Nginx.SitesAvailable = "/etc/nginx/sites-available"
	}
	if c.Nginx.SitesEnabled == "" {
		c.Nginx.SitesEnabled = "/etc/nginx/sites-enabled"
	}
	if c.Nginx.Template == "" {
		c.Nginx.Template = "_template"
	}
	if len(c.Nginx.Excluded) == 0 {
		c.Nginx.Excluded = []string{"_template", "00-default", "setup"}
	}
	if len(c.Nginx.TestCommand) == 0 {
		c.Nginx.TestCommand = []string{"nginx", "-t"}
	}
	if len(c.Nginx.ReloadCommand) == 0 {
		c.Nginx.ReloadCommand = []string{"systemctl", "reload", "nginx"}
	}
	if c.Nginx.PortMin == 0 {
		c.Nginx.PortMin = 11000
	}
	if c.Nginx.PortMax == 0 {
		c.Nginx.PortMax = 12000
	}

	if c.TenantDB.URL == "" {
		c.TenantDB.URL = "mongodb://127.0.0.1:27017"
	}
	if c.TenantDB.InstanceHost == "" {
		c.TenantDB.InstanceHost = "127.0.0.1:27017"
	}
	if c.TenantDB.ConnectTimeout == 0 {
		c.TenantDB.ConnectTimeout = 10 * time.Second
	}

	if c.Runtime.PM2Binary == "" {
		c.Runtime.PM2Binary = "pm2"
	}
	if c.Runtime.Interpreter == "" {
		c.Runtime.Interpreter = "node"
	}
	if c.Runtime.EntryScript == "" {
		c.Runtime.EntryScript = "lib/server/server.js"
	}
	if c.Runtime.DefaultDir == "" {
		c.Runtime.DefaultDir = "cgm-remote-monitor"
	}
	if c.Runtime.StateDir == "" {
		c.Runtime.StateDir = "/var/lib/nshost/ecosystem"
	}

	if c.Versions.CacheTTL == 0 {
		c.Versions.CacheTTL = 5 * time.Minute
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLSMode == "" {
		c.SMTP.TLSMode = "auto"
	}
	if c.Email.PublicDomain == "" {
		c.Email.PublicDomain = "nsromania.info"
	}

	if c.Captcha.MinScore == 0 {
		c.Captcha.MinScore = 0.5
	}
	if c.Captcha.VerifyURL == "" {
		c.Captcha.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if c.Captcha.Timeout == 0 {
		c.Captcha.Timeout = 5 * time.Second
	}

	if c.Rate.Register == 0 {
		c.Rate.Register = 10
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = 10 * time.Minute
	}
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvFloat(key string) (float64, bool) {
	if s, ok := getEnvStr(key); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, 4)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides: el entorno siempre gana sobre el YAML.
func (c *Config) applyEnvOverrides() {
	// APP: APP_ENV tiene prioridad; NODE_ENV=development se acepta por compatibilidad.
	if v, ok := getEnvStr("NODE_ENV"); ok {
		if strings.EqualFold(v, "development") {
			c.App.Env = "dev"
		} else if strings.EqualFold(v, "production") {
			c.App.Env = "prod"
		}
	}
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("SERVER_BASE_URL"); ok {
		c.Server.BaseURL = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("STORAGE_MAX_CONNS"); ok {
		c.Storage.MaxConns = int32(v)
	}
	if v, ok := getEnvBool("STORAGE_MIGRATE_ON_BOOT"); ok {
		c.Storage.MigrateOnBoot = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	// AUTH
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := getEnvDur("JWT_TTL"); ok {
		c.Auth.TokenTTL = v
	}
	if v, ok := getEnvCSV("ADMIN_EMAILS"); ok {
		c.Auth.AdminEmails = v
	}

	// DNS / NGINX
	if v, ok := getEnvStr("DNS_ZONE_FILE"); ok {
		c.DNS.ZoneFile = v
	}
	if v, ok := getEnvStr("DNS_TARGET"); ok {
		c.DNS.Target = v
	}
	if v, ok := getEnvStr("NGINX_SITES_AVAILABLE"); ok {
		c.Nginx.SitesAvailable = v
	}
	if v, ok := getEnvStr("NGINX_SITES_ENABLED"); ok {
		c.Nginx.SitesEnabled = v
	}

	// TENANT DB
	if v, ok := getEnvStr("MONGO_URL"); ok {
		c.TenantDB.URL = v
	}
	if v, ok := getEnvStr("MONGO_INSTANCE_HOST"); ok {
		c.TenantDB.InstanceHost = v
	}

	// RUNTIME
	if v, ok := getEnvStr("NS_HOME"); ok {
		c.Runtime.NSHome = v
	}
	if v, ok := getEnvStr("NS_INTERPRETER"); ok {
		c.Runtime.Interpreter = v
	}
	if v, ok := getEnvStr("PM2_BINARY"); ok {
		c.Runtime.PM2Binary = v
	}
	if v, ok := getEnvStr("NS_STATE_DIR"); ok {
		c.Runtime.StateDir = v
	}
	if v, ok := getEnvInt("STARTALL_CONCURRENCY"); ok {
		c.Runtime.StartAllConcurrency = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLSMode = strings.ToLower(v)
	}
	if v, ok := getEnvCSV("EMAIL_ADMIN_RECIPIENTS"); ok {
		c.Email.AdminRecipients = v
	}

	// CAPTCHA
	if v, ok := getEnvStr("RECAPTCHA_SECRET_KEY"); ok {
		c.Captcha.Secret = v
	}
	if v, ok := getEnvFloat("RECAPTCHA_MIN_SCORE"); ok {
		c.Captcha.MinScore = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_REGISTER_LIMIT"); ok {
		c.Rate.Register = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	// dev_mode se deriva del entorno salvo que se fije explícitamente
	if v, ok := getEnvBool("NS_DEV_MODE"); ok {
		c.Runtime.DevMode = v
	} else if c.App.Env == "dev" {
		c.Runtime.DevMode = true
	}
}

// Validate chequea valores críticos después de aplicar env.
func (c *Config) Validate() error {
	switch c.App.Env {
	case "dev", "prod":
	default:
		return fmt.Errorf("config: app.env must be dev or prod, got %q", c.App.Env)
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("config: storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("config: cache.redis.addr is required when cache.kind=redis")
	}
	if c.App.Env == "prod" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("config: auth.jwt_secret must be at least 32 bytes in prod")
	}
	if c.Nginx.PortMin >= c.Nginx.PortMax {
		return fmt.Errorf("config: nginx port range [%d, %d] is empty", c.Nginx.PortMin, c.Nginx.PortMax)
	}
	if !strings.HasSuffix(c.DNS.Target, ".") {
		return fmt.Errorf("config: dns.target %q must be fully qualified (trailing dot)", c.DNS.Target)
	}
	return nil
}
