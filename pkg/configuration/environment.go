package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files from the working directory, falling back
// to the module root (the directory holding go.mod) so tests running in
// nested packages pick up the same files. Returns how many files were loaded.
func LoadEnv(envFiles []string) (int, error) {
	dir, err := os.Getwd()
	if err != nil {
		return 0, err
	}
	root := moduleRoot(dir)

	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fileExists(file) {
			existing = append(existing, file)
			continue
		}
		if root != "" {
			if candidate := filepath.Join(root, file); fileExists(candidate) {
				existing = append(existing, candidate)
			}
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func moduleRoot(dir string) string {
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"caseflow"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`

	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type RedisOptions struct {
	Enabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
	URL      string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD" envDefault:""`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	CaseTTL  time.Duration `env:"REDIS_CASE_TTL" envDefault:"10m"`
}

type DispatcherOptions struct {
	Enabled          bool          `env:"DISPATCHER_ENABLED" envDefault:"true"`
	PollInterval     time.Duration `env:"DISPATCHER_POLL_INTERVAL" envDefault:"1m"`
	RunBudget        time.Duration `env:"DISPATCHER_RUN_BUDGET" envDefault:"10m"`
	MaxTasks         int           `env:"DISPATCHER_MAX_TASKS" envDefault:"500"`
	RetryWindowHours int64         `env:"DISPATCHER_RETRY_WINDOW_HOURS" envDefault:"1"`
}

type NotifierOptions struct {
	MaxAttempts int           `env:"NOTIFIER_MAX_ATTEMPTS" envDefault:"5"`
	MaxBackoff  time.Duration `env:"NOTIFIER_MAX_BACKOFF" envDefault:"30s"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
	Port    int    `env:"PROMETHEUS_METRICS_PORT" envDefault:"9090"`
}

type CollaboratorOptions struct {
	ConfigurationURL  string `env:"TASK_CONFIGURATION_URL" envDefault:"http://localhost:8091"`
	CaseDataURL       string `env:"CASE_DATA_URL" envDefault:"http://localhost:8092"`
	RoleAssignmentURL string `env:"ROLE_ASSIGNMENT_URL" envDefault:"http://localhost:8093"`
	ProcessEngineURL  string `env:"PROCESS_ENGINE_URL" envDefault:"http://localhost:8094"`

	// ServiceToken is attached as a bearer token on outgoing calls. Empty
	// disables the Authorization header.
	ServiceToken string        `env:"COLLABORATOR_SERVICE_TOKEN" envDefault:""`
	Timeout      time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"15s"`
}

type Configuration struct {
	Database     DatabaseOptions
	Redis        RedisOptions
	Dispatcher   DispatcherOptions
	Notifier     NotifierOptions
	Prometheus   PrometheusOptions
	Collaborator CollaboratorOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`

	// Privileged assign-and-complete is passed into each operation call
	// explicitly; this is its deployment-wide switch.
	PrivilegedCompleteEnabled bool `env:"PRIVILEGED_COMPLETE_ENABLED" envDefault:"false"`

	logger *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.validate(); err != nil {
		return err
	}

	if c.GoAppEnvironment == Production {
		c.logger = logging.JSONLogger(c.LogrusLogLevel())
	} else {
		c.logger = logging.ConsoleLogger(c.LogrusLogLevel())
	}

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

func (c *Configuration) validate() error {
	if c.Dispatcher.MaxTasks < 0 {
		return fmt.Errorf("DISPATCHER_MAX_TASKS must be non-negative, got %d", c.Dispatcher.MaxTasks)
	}
	if c.Dispatcher.RetryWindowHours < 0 {
		return fmt.Errorf("DISPATCHER_RETRY_WINDOW_HOURS must be non-negative, got %d", c.Dispatcher.RetryWindowHours)
	}
	if c.Notifier.MaxAttempts < 1 {
		return fmt.Errorf("NOTIFIER_MAX_ATTEMPTS must be at least 1, got %d", c.Notifier.MaxAttempts)
	}
	mode := strings.ToLower(strings.TrimSpace(c.GoAppEnvironment))
	if mode == "" {
		mode = "development"
	}
	c.GoAppEnvironment = mode
	return nil
}
