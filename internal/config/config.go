package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health endpoint

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/rollcall.db"

	Location *time.Location

	Reader    ReaderConfig
	Display   DisplayConfig
	Discord   DiscordConfig
	Scheduler SchedulerConfig
	Export    ExportConfig

	// SeedUsers are created in dev when the directory is empty.
	SeedUsers []SeedUser
}

type ReaderConfig struct {
	Enabled      bool
	Name         string // substring match; empty picks the first reader
	IdleInterval time.Duration
	Cooldown     time.Duration
	PollTimeout  time.Duration
}

type DisplayConfig struct {
	Port string // empty disables the serial display
	Baud int
}

type DiscordConfig struct {
	WebhookURL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cutoff   string // "HH:MM" local
}

type ExportConfig struct {
	Path       string // empty disables the periodic export
	S3Bucket   string
	S3Key      string
	S3Region   string
	S3Endpoint string
}

type SeedUser struct {
	CardID      string
	DisplayName string
}

// Load reads configuration from ROLLCALL_* environment variables, a .env
// file in the working directory and an optional rollcall.yaml, in that
// order of precedence.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ROLLCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigName("rollcall")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("env", "dev")
	v.SetDefault("db.path", "./data/rollcall.db")
	v.SetDefault("timezone", "Local")

	v.SetDefault("reader.enabled", false)
	v.SetDefault("reader.name", "")
	v.SetDefault("reader.idle_interval", 500*time.Millisecond)
	v.SetDefault("reader.cooldown", 5*time.Second)
	v.SetDefault("reader.poll_timeout", 2*time.Second)

	v.SetDefault("display.port", "")
	v.SetDefault("display.baud", 9600)

	v.SetDefault("discord.webhook_url", "")

	v.SetDefault("scheduler.interval", 60*time.Second)
	v.SetDefault("scheduler.cutoff", "23:59")

	v.SetDefault("export.path", "./data/access_log.xlsx")
	v.SetDefault("export.s3_bucket", "")
	v.SetDefault("export.s3_key", "access_log.xlsx")
	v.SetDefault("export.s3_region", "")
	v.SetDefault("export.s3_endpoint", "")

	v.SetDefault("seed.users", "")
}

func fromViper(v *viper.Viper) (Config, error) {
	env := strings.ToLower(strings.TrimSpace(v.GetString("env")))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return Config{}, fmt.Errorf("timezone: %w", err)
	}

	seeds, err := parseSeedUsers(v.GetString("seed.users"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr: v.GetString("http.addr"),
		GRPCAddr: v.GetString("grpc.addr"),
		Env:      env,
		DBPath:   v.GetString("db.path"),
		Location: loc,

		Reader: ReaderConfig{
			Enabled:      v.GetBool("reader.enabled"),
			Name:         v.GetString("reader.name"),
			IdleInterval: v.GetDuration("reader.idle_interval"),
			Cooldown:     v.GetDuration("reader.cooldown"),
			PollTimeout:  v.GetDuration("reader.poll_timeout"),
		},
		Display: DisplayConfig{
			Port: v.GetString("display.port"),
			Baud: v.GetInt("display.baud"),
		},
		Discord: DiscordConfig{
			WebhookURL: v.GetString("discord.webhook_url"),
		},
		Scheduler: SchedulerConfig{
			Interval: v.GetDuration("scheduler.interval"),
			Cutoff:   v.GetString("scheduler.cutoff"),
		},
		Export: ExportConfig{
			Path:       v.GetString("export.path"),
			S3Bucket:   v.GetString("export.s3_bucket"),
			S3Key:      v.GetString("export.s3_key"),
			S3Region:   v.GetString("export.s3_region"),
			S3Endpoint: v.GetString("export.s3_endpoint"),
		},
		SeedUsers: seeds,
	}, nil
}

// parseSeedUsers reads "CARD:Display Name,CARD2:Other Name".
func parseSeedUsers(v string) ([]SeedUser, error) {
	var out []SeedUser
	for _, item := range splitCSV(v) {
		card, name, ok := strings.Cut(item, ":")
		card, name = strings.TrimSpace(card), strings.TrimSpace(name)
		if !ok || card == "" || name == "" {
			return nil, fmt.Errorf("seed user %q: want CARD:Name", item)
		}
		out = append(out, SeedUser{CardID: card, DisplayName: name})
	}
	return out, nil
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

