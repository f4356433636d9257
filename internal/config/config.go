// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	CapacityFixed  = "fixed"
	CapacityTiered = "tiered"

	defaultDepositWindow    = 2 * time.Hour
	defaultDepositSweepCron = "*/15 * * * *"
	defaultNotifyWorkers    = 4
	defaultLockTTL          = 10 * time.Second
	defaultBookingCooldown  = 10 * time.Second
	defaultBookingIPPerHour = 30
	defaultPhoneRegion      = "CR"
	defaultAMQPExchange     = "courtbook.events"
)

// SupportedTiers are the player counts a tiered court can be priced for.
var SupportedTiers = []int{7, 8, 9}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type SiteConfig struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	OpensAt          int    `yaml:"opens_at"`
	ClosesAt         int    `yaml:"closes_at"`
	RefereeSupported bool   `yaml:"referee_supported"`
	DepositRequired  bool   `yaml:"deposit_required"`
	ChallengeCourt   int64  `yaml:"challenge_court"`
}

type CourtConfig struct {
	ID       int64         `yaml:"id"`
	Site     string        `yaml:"site"`
	Name     string        `yaml:"name"`
	Capacity string        `yaml:"capacity"`
	Players  int           `yaml:"players"`
	Price    int64         `yaml:"price"`
	Tiers    map[int]int64 `yaml:"tiers"`
}

type LinkedGroupConfig struct {
	ID     string  `yaml:"id"`
	Courts []int64 `yaml:"courts"`
}

type NotificationConfig struct {
	Drivers      []string `yaml:"drivers"`
	Workers      int      `yaml:"workers"`
	AMQPExchange string   `yaml:"amqp_exchange"`
	AMQPURL      string   `yaml:"-"` // Loaded from environment
	SESRegion    string   `yaml:"ses_region"`
	SESSender    string   `yaml:"ses_sender"`
	SESAccessKey string   `yaml:"-"` // Loaded from environment
	SESSecretKey string   `yaml:"-"` // Loaded from environment
}

type LockConfig struct {
	Driver        string        `yaml:"driver"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPassword string        `yaml:"-"` // Loaded from environment
	TTL           time.Duration `yaml:"ttl"`
}

type Config struct {
	App struct {
		Name               string `yaml:"name"`
		Environment        string `yaml:"environment"`
		Port               int    `yaml:"port"`
		BaseURL            string `yaml:"base_url"`
		Timezone           string `yaml:"timezone"`
		DefaultPhoneRegion string `yaml:"default_phone_region"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Sites        []SiteConfig        `yaml:"sites"`
	Courts       []CourtConfig       `yaml:"courts"`
	LinkedGroups []LinkedGroupConfig `yaml:"linked_groups"`

	Pricing struct {
		RefereeSurcharge int64 `yaml:"referee_surcharge"`
	} `yaml:"pricing"`

	Deposit struct {
		Window            time.Duration `yaml:"window"`
		AutoCancelExpired bool          `yaml:"auto_cancel_expired"`
	} `yaml:"deposit"`

	Notifications NotificationConfig `yaml:"notifications"`
	Locks         LockConfig         `yaml:"locks"`

	Scheduler struct {
		DepositSweepCron string `yaml:"deposit_sweep_cron"`
	} `yaml:"scheduler"`

	RateLimit struct {
		BookingCooldown     time.Duration `yaml:"booking_cooldown"`
		BookingMaxIPPerHour int           `yaml:"booking_max_ip_per_hour"`
		TrustProxy          bool          `yaml:"trust_proxy"`
	} `yaml:"ratelimit"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.Notifications.AMQPURL = os.Getenv("AMQP_URL")
	cfg.Notifications.SESAccessKey = os.Getenv("SES_ACCESS_KEY_ID")
	cfg.Notifications.SESSecretKey = os.Getenv("SES_SECRET_ACCESS_KEY")
	cfg.Locks.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if c.App.DefaultPhoneRegion == "" {
		c.App.DefaultPhoneRegion = defaultPhoneRegion
	}
	if c.Deposit.Window <= 0 {
		c.Deposit.Window = defaultDepositWindow
	}
	if c.Scheduler.DepositSweepCron == "" {
		c.Scheduler.DepositSweepCron = defaultDepositSweepCron
	}
	if len(c.Notifications.Drivers) == 0 {
		c.Notifications.Drivers = []string{"log"}
	}
	if c.Notifications.Workers <= 0 {
		c.Notifications.Workers = defaultNotifyWorkers
	}
	if c.Notifications.AMQPExchange == "" {
		c.Notifications.AMQPExchange = defaultAMQPExchange
	}
	if c.Locks.Driver == "" {
		c.Locks.Driver = "memory"
	}
	if c.Locks.TTL <= 0 {
		c.Locks.TTL = defaultLockTTL
	}
	if c.RateLimit.BookingCooldown <= 0 {
		c.RateLimit.BookingCooldown = defaultBookingCooldown
	}
	if c.RateLimit.BookingMaxIPPerHour <= 0 {
		c.RateLimit.BookingMaxIPPerHour = defaultBookingIPPerHour
	}
}

// Location resolves the fixed civil timezone all slots are expressed in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if err := c.validateFacilities(); err != nil {
		return err
	}

	if c.Pricing.RefereeSurcharge < 0 {
		return fmt.Errorf("pricing referee_surcharge must be 0 or greater")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Scheduler.DepositSweepCron); err != nil {
		return fmt.Errorf("scheduler deposit_sweep_cron: %w", err)
	}

	for _, driver := range c.Notifications.Drivers {
		switch driver {
		case "log":
		case "email":
			if c.Notifications.SESRegion == "" || c.Notifications.SESSender == "" {
				return fmt.Errorf("notifications email driver requires ses_region and ses_sender")
			}
		case "amqp":
			if c.Notifications.AMQPURL == "" {
				return fmt.Errorf("notifications amqp driver requires AMQP_URL")
			}
		default:
			return fmt.Errorf("unsupported notification driver: %s", driver)
		}
	}

	switch c.Locks.Driver {
	case "memory":
	case "redis":
		if c.Locks.RedisAddr == "" {
			return fmt.Errorf("locks redis_addr is required for redis driver")
		}
	default:
		return fmt.Errorf("unsupported lock driver: %s", c.Locks.Driver)
	}

	return nil
}

func (c *Config) validateFacilities() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("at least one site is required")
	}

	sites := make(map[string]SiteConfig, len(c.Sites))
	for _, site := range c.Sites {
		if site.ID == "" {
			return fmt.Errorf("site id is required")
		}
		if _, dup := sites[site.ID]; dup {
			return fmt.Errorf("duplicate site id: %s", site.ID)
		}
		if site.OpensAt < 0 || site.OpensAt > 23 || site.ClosesAt < 0 || site.ClosesAt > 23 {
			return fmt.Errorf("site %s hours must be between 0 and 23", site.ID)
		}
		sites[site.ID] = site
	}

	courts := make(map[int64]CourtConfig, len(c.Courts))
	for _, court := range c.Courts {
		if court.ID <= 0 {
			return fmt.Errorf("court id must be a positive integer")
		}
		if _, dup := courts[court.ID]; dup {
			return fmt.Errorf("duplicate court id: %d", court.ID)
		}
		if _, ok := sites[court.Site]; !ok {
			return fmt.Errorf("court %d references unknown site %q", court.ID, court.Site)
		}
		switch court.Capacity {
		case CapacityFixed:
			if court.Price <= 0 {
				return fmt.Errorf("fixed court %d requires a positive price", court.ID)
			}
		case CapacityTiered:
			if err := validateTiers(court); err != nil {
				return err
			}
		default:
			return fmt.Errorf("court %d has unsupported capacity %q", court.ID, court.Capacity)
		}
		courts[court.ID] = court
	}

	for _, site := range c.Sites {
		if site.ChallengeCourt == 0 {
			continue
		}
		court, ok := courts[site.ChallengeCourt]
		if !ok || court.Site != site.ID {
			return fmt.Errorf("site %s challenge_court %d is not a court at that site", site.ID, site.ChallengeCourt)
		}
	}

	grouped := make(map[int64]string)
	for _, group := range c.LinkedGroups {
		if group.ID == "" {
			return fmt.Errorf("linked group id is required")
		}
		if len(group.Courts) < 2 {
			return fmt.Errorf("linked group %s needs at least two courts", group.ID)
		}
		var site string
		for _, courtID := range group.Courts {
			court, ok := courts[courtID]
			if !ok {
				return fmt.Errorf("linked group %s references unknown court %d", group.ID, courtID)
			}
			if other, taken := grouped[courtID]; taken {
				return fmt.Errorf("court %d belongs to linked groups %s and %s", courtID, other, group.ID)
			}
			if site == "" {
				site = court.Site
			} else if site != court.Site {
				return fmt.Errorf("linked group %s spans more than one site", group.ID)
			}
			grouped[courtID] = group.ID
		}
	}

	return nil
}

func validateTiers(court CourtConfig) error {
	if len(court.Tiers) != len(SupportedTiers) {
		return fmt.Errorf("tiered court %d must price exactly players %v", court.ID, SupportedTiers)
	}
	seen := make(map[int64]struct{}, len(court.Tiers))
	for _, players := range SupportedTiers {
		price, ok := court.Tiers[players]
		if !ok || price <= 0 {
			return fmt.Errorf("tiered court %d needs a positive price for %d players", court.ID, players)
		}
		if _, dup := seen[price]; dup {
			return fmt.Errorf("tiered court %d tier prices must be distinct", court.ID)
		}
		seen[price] = struct{}{}
	}
	return nil
}
