package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"infomentor-notifier/internal/calendar"
	"infomentor-notifier/internal/components/db"
	"infomentor-notifier/internal/components/secret"
	"infomentor-notifier/internal/components/telemetry"
	"infomentor-notifier/internal/notify"
	"infomentor-notifier/internal/scrapers/infomentor"
	"infomentor-notifier/pkg/configutil"
)

const (
	EnvSmtpPassword  = "INFOMENTOR_SMTP_PASSWORD"
	EnvPushoverToken = "INFOMENTOR_PUSHOVER_TOKEN"
	EnvTelegramToken = "INFOMENTOR_TELEGRAM_TOKEN"
)

type Config struct {
	Database db.Config         `json:"database"`
	Portal   infomentor.Config `json:"portal"`
	// PublicBase is the url the files directory is served under.
	PublicBase string `json:"public_base"`
	CookiesDir string `json:"cookies_dir"`
	LockFile   string `json:"lock_file"`
	// Zone is the portal's time zone, calendar times and push timestamps are local to it.
	Zone string `json:"zone"`
	// Schedule is the cron spec the daemon polls on.
	Schedule      string `json:"schedule"`
	CalendarWeeks int    `json:"calendar_weeks"`
	CalDAVUrl     string `json:"caldav_url"`

	SecretKey     string            `json:"secret_key"`
	Smtp          notify.SmtpConfig `json:"smtp"`
	MailFrom      string            `json:"mail_from"`
	AdminEmail    string            `json:"admin_email"`
	PushoverToken string            `json:"pushover_token"`
	TelegramToken string            `json:"telegram_token"`

	Telemetry telemetry.Config `json:"telemetry"`
	// DumpHttp writes every http exchange below .dev/resty.
	DumpHttp bool `json:"dump_http"`
}

func (c Config) withDefaults() Config {
	if c.Database.File == "" && c.Database.Url == "" {
		c.Database.File = "infomentor.db"
	}
	if c.Portal.FilesDir == "" {
		c.Portal.FilesDir = "files"
	}
	if c.Portal.ImagesDir == "" {
		c.Portal.ImagesDir = "images"
	}
	if c.CookiesDir == "" {
		c.CookiesDir = ".cookies"
	}
	if c.Zone == "" {
		c.Zone = "Europe/Berlin"
	}
	if c.Schedule == "" {
		c.Schedule = "*/10 * * * *"
	}
	if c.CalDAVUrl == "" {
		c.CalDAVUrl = calendar.DefaultCalDAVUrl
	}
	if c.MailFrom == "" {
		c.MailFrom = c.Smtp.EmailAddress
	}
	return c
}

// Files is where downloads live and where they are served.
func (c Config) Files() notify.Files {
	return notify.Files{
		FilesDir:   c.Portal.FilesDir,
		ImagesDir:  c.Portal.ImagesDir,
		PublicBase: c.PublicBase,
	}
}

// LoadConfig reads `path` merged with its local override, a relative path is also looked up
// in the parent directories. Secrets left empty are taken from the environment or a .env
// file. A missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	err := configutil.LoadEnv(".env")
	if err != nil {
		return Config{}, err
	}

	read := configutil.ReadConfig[Config]
	if !filepath.IsAbs(path) {
		read = configutil.ReadRecursively[Config]
	}
	config, err := read(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	configutil.EnvDefault(&config.SecretKey, secret.EnvKey)
	configutil.EnvDefault(&config.Smtp.Password, EnvSmtpPassword)
	configutil.EnvDefault(&config.PushoverToken, EnvPushoverToken)
	configutil.EnvDefault(&config.TelegramToken, EnvTelegramToken)

	return config.withDefaults(), nil
}
