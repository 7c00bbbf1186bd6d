package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/candlebot/internal/application/candles"
	"github.com/alejandrodnm/candlebot/internal/application/simulation"
	"github.com/alejandrodnm/candlebot/internal/application/strategy"
	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del backtester.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Bots       []BotConfig      `yaml:"bots"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig describe el batch: qué tickers, qué rango y con qué dinero.
type SimulationConfig struct {
	Tickers          []string       `yaml:"tickers"`
	From             string         `yaml:"from"` // RFC3339 o 2006-01-02, UTC
	To               string         `yaml:"to"`
	Granularity      string         `yaml:"granularity"`
	Threads          int            `yaml:"threads"`
	TaskTimeout      string         `yaml:"task_timeout"` // "30s", vacío = sin deadline
	CommissionRate   string         `yaml:"commission_rate"`
	InitialBalance   MoneyConfig    `yaml:"initial_balance"`
	Deposit          *DepositConfig `yaml:"deposit"`
	DecisionSchedule ScheduleConfig `yaml:"decision_schedule"`
	EmptyDaysLimit   int            `yaml:"empty_days_limit"`
	HistoryLimit     int            `yaml:"history_limit"` // operaciones visibles para los bots, 0 = todas
}

// MoneyConfig es un importe; amount es texto para no pasar por float.
type MoneyConfig struct {
	Amount   string `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// DepositConfig es un aporte periódico en la moneda del balance inicial.
type DepositConfig struct {
	Amount   string         `yaml:"amount"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ScheduleConfig se traduce a domain.Schedule. Vacío = cada minuto.
type ScheduleConfig struct {
	Every       string   `yaml:"every"`
	At          []string `yaml:"at"`
	Weekdays    []string `yaml:"weekdays"` // mon..sun
	DaysOfMonth []int    `yaml:"days_of_month"`
	Between     string   `yaml:"between"`
}

// BotConfig es una variante de estrategia de cruce de medias.
type BotConfig struct {
	Name        string `yaml:"name"` // opcional, se deriva de los parámetros
	Kind        string `yaml:"kind"` // simple | linear | exponential
	SmallWindow int    `yaml:"small_window"`
	BigWindow   int    `yaml:"big_window"`
	SmallDecay  string `yaml:"small_decay"`
	BigDecay    string `yaml:"big_decay"`
	Order       int    `yaml:"order"`
	MinProfit   string `yaml:"min_profit"`
	Greedy      bool   `yaml:"greedy"`
	LimitOffset string `yaml:"limit_offset"` // > 0 = órdenes límite a close×(1∓offset)
}

// APIConfig apunta al proveedor de velas.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"` // vacío = producción
	Token          string `yaml:"token"`
	RequestTimeout string `yaml:"request_timeout"`
}

// StorageConfig controla dónde se exportan los informes.
type StorageConfig struct {
	DSN    string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	Export bool   `yaml:"export"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("MARKETDATA_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SIMULATION_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ConfigurationError{Field: "SIMULATION_THREADS", Reason: fmt.Sprintf("%q is not an integer", v)}
		}
		cfg.Simulation.Threads = n
	}
	return nil
}

// setDefaults rellena lo opcional. Los threads sólo se rellenan si faltan:
// un valor explícito menor que 2 lo rechaza el orquestador.
func setDefaults(cfg *Config) {
	if cfg.Simulation.Granularity == "" {
		cfg.Simulation.Granularity = string(domain.Granularity1Min)
	}
	if cfg.Simulation.Threads == 0 {
		cfg.Simulation.Threads = 4
	}
	if cfg.Simulation.CommissionRate == "" {
		cfg.Simulation.CommissionRate = "0"
	}
	if cfg.Simulation.EmptyDaysLimit <= 0 {
		cfg.Simulation.EmptyDaysLimit = candles.DefaultEmptyDaysLimit
	}
	if cfg.API.RequestTimeout == "" {
		cfg.API.RequestTimeout = "15s"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "candlebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate construye todos los valores derivados y devuelve el primer error.
func (c *Config) Validate() error {
	if len(c.Simulation.Tickers) == 0 {
		return &domain.ConfigurationError{Field: "simulation.tickers", Reason: "at least one ticker is required"}
	}
	if c.Simulation.Threads < simulation.MinThreads {
		return &domain.ConfigurationError{
			Field:  "simulation.threads",
			Reason: fmt.Sprintf("must be at least %d, got %d", simulation.MinThreads, c.Simulation.Threads),
		}
	}
	if c.Simulation.HistoryLimit < 0 {
		return &domain.ConfigurationError{Field: "simulation.history_limit", Reason: "must not be negative"}
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	if _, err := c.Granularity(); err != nil {
		return err
	}
	if _, err := c.TaskTimeout(); err != nil {
		return err
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	if _, err := c.CommissionRate(); err != nil {
		return err
	}
	if _, err := c.InitialBalance(); err != nil {
		return err
	}
	if _, err := c.Deposit(); err != nil {
		return err
	}
	if _, err := c.DecisionSchedule(); err != nil {
		return err
	}
	specs, err := c.BotSpecs()
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return &domain.ConfigurationError{Field: "bots", Reason: "at least one bot is required"}
	}
	if _, err := strategy.Load(specs); err != nil {
		return err
	}
	return nil
}

// Tickers devuelve los tickers normalizados a mayúsculas.
func (c *Config) Tickers() []string {
	out := make([]string, 0, len(c.Simulation.Tickers))
	for _, t := range c.Simulation.Tickers {
		out = append(out, strings.ToUpper(strings.TrimSpace(t)))
	}
	return out
}

// Interval devuelve el rango simulado validado.
func (c *Config) Interval() (domain.Interval, error) {
	from, err := parseTime("simulation.from", c.Simulation.From)
	if err != nil {
		return domain.Interval{}, err
	}
	to, err := parseTime("simulation.to", c.Simulation.To)
	if err != nil {
		return domain.Interval{}, err
	}
	iv := domain.Interval{From: from, To: to}
	return iv, iv.Validate()
}

func (c *Config) Granularity() (domain.Granularity, error) {
	return domain.ParseGranularity(c.Simulation.Granularity)
}

// TaskTimeout es el deadline por simulación; 0 si no hay.
func (c *Config) TaskTimeout() (time.Duration, error) {
	return parseDuration("simulation.task_timeout", c.Simulation.TaskTimeout)
}

func (c *Config) RequestTimeout() (time.Duration, error) {
	return parseDuration("api.request_timeout", c.API.RequestTimeout)
}

func (c *Config) CommissionRate() (decimal.Decimal, error) {
	rate, err := parseDecimal("simulation.commission_rate", c.Simulation.CommissionRate)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, &domain.ConfigurationError{Field: "simulation.commission_rate", Reason: "must be in [0, 1)"}
	}
	return rate, nil
}

// InitialBalance devuelve el dinero con el que arranca cada simulación.
func (c *Config) InitialBalance() (domain.Money, error) {
	m := c.Simulation.InitialBalance
	currency := strings.ToUpper(strings.TrimSpace(m.Currency))
	if currency == "" {
		return domain.Money{}, &domain.ConfigurationError{Field: "simulation.initial_balance.currency", Reason: "is required"}
	}
	amount, err := parseDecimal("simulation.initial_balance.amount", m.Amount)
	if err != nil {
		return domain.Money{}, err
	}
	if amount.IsNegative() {
		return domain.Money{}, &domain.ConfigurationError{Field: "simulation.initial_balance.amount", Reason: "must not be negative"}
	}
	return domain.NewMoney(currency, amount), nil
}

// Deposit devuelve el aporte periódico o nil si no hay sección deposit.
func (c *Config) Deposit() (*simulation.Deposit, error) {
	dep := c.Simulation.Deposit
	if dep == nil {
		return nil, nil
	}
	amount, err := parseDecimal("simulation.deposit.amount", dep.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &domain.ConfigurationError{Field: "simulation.deposit.amount", Reason: "must be positive"}
	}
	when, err := dep.Schedule.predicate("simulation.deposit.schedule")
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(c.Simulation.InitialBalance.Currency))
	return &simulation.Deposit{Amount: domain.NewMoney(currency, amount), When: when}, nil
}

// DecisionSchedule dice en qué minutos se consulta a los bots.
func (c *Config) DecisionSchedule() (domain.Predicate, error) {
	return c.Simulation.DecisionSchedule.predicate("simulation.decision_schedule")
}

// BotSpecs traduce la sección bots a specs de estrategia.
func (c *Config) BotSpecs() ([]strategy.Spec, error) {
	specs := make([]strategy.Spec, 0, len(c.Bots))
	for i, b := range c.Bots {
		field := fmt.Sprintf("bots[%d]", i)
		spec := strategy.Spec{
			Name:        b.Name,
			Kind:        strings.ToLower(b.Kind),
			SmallWindow: b.SmallWindow,
			BigWindow:   b.BigWindow,
			Order:       b.Order,
			Greedy:      b.Greedy,
		}
		if spec.Order == 0 {
			spec.Order = 1
		}
		var err error
		if spec.SmallDecay, err = parseOptionalDecimal(field+".small_decay", b.SmallDecay); err != nil {
			return nil, err
		}
		if spec.BigDecay, err = parseOptionalDecimal(field+".big_decay", b.BigDecay); err != nil {
			return nil, err
		}
		if spec.MinProfit, err = parseOptionalDecimal(field+".min_profit", b.MinProfit); err != nil {
			return nil, err
		}
		if spec.LimitOffset, err = parseOptionalDecimal(field+".limit_offset", b.LimitOffset); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (s ScheduleConfig) predicate(field string) (domain.Predicate, error) {
	sched := domain.Schedule{At: s.At, DaysOfMonth: s.DaysOfMonth, Between: s.Between}
	if s.Every != "" {
		every, err := time.ParseDuration(s.Every)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: field + ".every", Reason: err.Error()}
		}
		sched.Every = every
	}
	for _, w := range s.Weekdays {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(w))]
		if !ok {
			return nil, &domain.ConfigurationError{Field: field + ".weekdays", Reason: fmt.Sprintf("unknown weekday %q", w)}
		}
		sched.Weekdays = append(sched.Weekdays, day)
	}
	pred, err := sched.Predicate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return pred, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseTime(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, &domain.ConfigurationError{Field: field, Reason: "is required"}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Time{}, &domain.ConfigurationError{Field: field, Reason: fmt.Sprintf("%q is neither RFC3339 nor YYYY-MM-DD", v)}
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &domain.ConfigurationError{Field: field, Reason: err.Error()}
	}
	if d < 0 {
		return 0, &domain.ConfigurationError{Field: field, Reason: "must not be negative"}
	}
	return d, nil
}

func parseDecimal(field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, &domain.ConfigurationError{Field: field, Reason: fmt.Sprintf("%q is not a decimal", v)}
	}
	return d, nil
}

func parseOptionalDecimal(field, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(field, v)
}
