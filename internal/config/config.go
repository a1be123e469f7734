package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

const (
	StorageAuto     = ""
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageFile     = "file"
	StorageMemory   = "memory"
)

type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	GRPCAddr            string        `env:"GRPC_ADDRESS" json:"grpc_address" validate:"omitempty,hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	StorageType         string        `env:"STORAGE_TYPE" json:"storage_type" validate:"omitempty,oneof=postgres sqlite file memory"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"omitempty,filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	SQLitePath          string        `env:"SQLITE_PATH" json:"sqlite_path" validate:"omitempty,filepath"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"-"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`

	OpenAIAPIKey  string  `env:"OPENAI_API_KEY" json:"openai_api_key"`
	OpenAIBaseURL string  `env:"OPENAI_BASE_URL" json:"openai_base_url" validate:"url"`
	OpenAIModel   string  `env:"OPENAI_MODEL" json:"openai_model"`
	LLMRPS        float64 `env:"LLM_RPS" json:"llm_rps" validate:"gte=0"`

	FirecrawlAPIKey  string `env:"FIRECRAWL_API_KEY" json:"firecrawl_api_key"`
	FirecrawlBaseURL string `env:"FIRECRAWL_BASE_URL" json:"firecrawl_base_url" validate:"url"`

	ResendAPIKey  string `env:"RESEND_API_KEY" json:"resend_api_key"`
	ResendBaseURL string `env:"RESEND_BASE_URL" json:"resend_base_url" validate:"url"`
	MailFrom      string `env:"MAIL_FROM" json:"mail_from"`
	SMTPAddr      string `env:"SMTP_ADDR" json:"smtp_addr" validate:"omitempty,hostname_port"`
	SMTPUsername  string `env:"SMTP_USERNAME" json:"smtp_username"`
	SMTPPassword  string `env:"SMTP_PASSWORD" json:"smtp_password"`

	DefaultTimezone string `env:"DEFAULT_TIMEZONE" json:"default_timezone" validate:"timezone"`
	DefaultSendTime string `env:"DEFAULT_SEND_TIME" json:"default_send_time" validate:"clock"`

	SchedulerDisabled   bool          `env:"SCHEDULER_DISABLED" json:"scheduler_disabled"`
	SchedulerCron       string        `env:"SCHEDULER_CRON" json:"scheduler_cron"`
	DigestConcurrency   int           `env:"DIGEST_CONCURRENCY" json:"digest_concurrency" validate:"gte=1,lte=64"`
	DigestItemLimit     int           `env:"DIGEST_ITEM_LIMIT" json:"digest_item_limit" validate:"gte=1"`
	DigestDedup         bool          `env:"DIGEST_DEDUP" json:"digest_dedup"`
	CollaboratorTimeout time.Duration `env:"COLLABORATOR_TIMEOUT" json:"-"`

	AdminSigningKey string `env:"ADMIN_SIGNING_KEY" json:"admin_signing_key"`
	TrustedSubnet   string `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`

	NATSURL     string `env:"NATS_URL" json:"nats_url"`
	NATSSubject string `env:"NATS_SUBJECT" json:"nats_subject"`
}

var defaultConfig = Config{
	RunAddr:             ":8080",
	LogLevel:            "info",
	DBFileName:          "users.json",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/newsdigest/migrations",
	OpenAIBaseURL:       "https://api.openai.com/v1",
	OpenAIModel:         "gpt-3.5-turbo",
	LLMRPS:              2,
	FirecrawlBaseURL:    "https://api.firecrawl.dev",
	ResendBaseURL:       "https://api.resend.com",
	MailFrom:            "News Digest <digest@resend.dev>",
	DefaultTimezone:     user.DefaultTimezone,
	DefaultSendTime:     user.DefaultSendTime,
	SchedulerCron:       "* * * * *",
	DigestConcurrency:   4,
	DigestItemLimit:     20,
	CollaboratorTimeout: 60 * time.Second,
	NATSSubject:         "newsdigest",
}

// UnmarshalJSON reads durations written as Go duration strings ("10s").
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		DBConnectionTimeout string `json:"db_connection_timeout"`
		CollaboratorTimeout string `json:"collaborator_timeout"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	durations := []struct {
		raw    string
		target *time.Duration
	}{
		{aux.DBConnectionTimeout, &c.DBConnectionTimeout},
		{aux.CollaboratorTimeout, &c.CollaboratorTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", d.raw, err)
		}
		*d.target = parsed
	}

	return nil
}

// applyDefaults copies every field of defaults into values where values
// holds the zero value.
func applyDefaults(values *Config, defaults Config) {
	v := reflect.ValueOf(values).Elem()
	d := reflect.ValueOf(defaults)
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsZero() {
			v.Field(i).Set(d.Field(i))
		}
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warn":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func validateClock(fieldLevel validator.FieldLevel) bool {
	_, err := user.ParseClock(fieldLevel.Field().String())
	return err == nil
}

func (c *Config) validate() error {
	validate := validator.New()

	for tag, fn := range map[string]validator.Func{
		"loglevel": validateLogLevel,
		"filepath": validateFilePath,
		"clock":    validateClock,
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}

	return validate.Struct(c)
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

type cliFlags struct {
	set        map[string]bool
	configPath string
	values     Config
}

func parseFlags(args []string) (*cliFlags, error) {
	parsed := &cliFlags{set: map[string]bool{}}

	fs := flag.NewFlagSet("newsdigest", flag.ContinueOnError)
	fs.StringVar(&parsed.configPath, "c", "", "path to a JSON config file")
	fs.StringVar(&parsed.values.RunAddr, "a", "", "address and port to run the HTTP server")
	fs.StringVar(&parsed.values.GRPCAddr, "g", "", "address and port to run the gRPC health server")
	fs.StringVar(&parsed.values.LogLevel, "l", "", "logger level")
	fs.StringVar(&parsed.values.DBFileName, "f", "", "JSON file name with subscribers")
	fs.StringVar(&parsed.values.DatabaseDSN, "d", "", "a string with the database connection details")
	fs.StringVar(&parsed.values.SQLitePath, "s", "", "SQLite database file")
	fs.StringVar(&parsed.values.TrustedSubnet, "t", "", "CIDR allowed to read /metrics")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		parsed.set[f.Name] = true
	})

	return parsed, nil
}

func (f *cliFlags) apply(values *Config) {
	overrides := map[string]func(){
		"a": func() { values.RunAddr = f.values.RunAddr },
		"g": func() { values.GRPCAddr = f.values.GRPCAddr },
		"l": func() { values.LogLevel = f.values.LogLevel },
		"f": func() { values.DBFileName = f.values.DBFileName },
		"d": func() { values.DatabaseDSN = f.values.DatabaseDSN },
		"s": func() { values.SQLitePath = f.values.SQLitePath },
		"t": func() { values.TrustedSubnet = f.values.TrustedSubnet },
	}
	for name, override := range overrides {
		if f.set[name] {
			override()
		}
	}
}

func loadJSON(path string, values *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `os.ReadFile()` calling: %w", err)
	}
	if err := json.Unmarshal(data, values); err != nil {
		return fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}
	return nil
}

// New builds the configuration. Later sources win:
// defaults, JSON file (-c or CONFIG), environment (.env included), flags.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Log.Warnf("Unable to load .env file: %v", err)
	}

	cli := &cliFlags{set: map[string]bool{}}
	if !options.disableFlagsParsing {
		var err error
		cli, err = parseFlags(os.Args[1:])
		if err != nil {
			return nil, err
		}
	}

	configPath := cli.configPath
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}

	values := Config{}
	if configPath != "" {
		if err := loadJSON(configPath, &values); err != nil {
			return nil, err
		}
	}
	applyDefaults(&values, defaultConfig)

	if err := env.Parse(&values); err != nil {
		return nil, err
	}
	cli.apply(&values)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return &values, nil
}
