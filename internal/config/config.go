package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"proposalRelay/internal/notify"
)

const (
	KeyRPCURL           = "web3.infura_url"
	KeyExplorerURL      = "etherscan.api_url"
	KeyEventContract    = "dao.event_monitoring_contract_address"
	KeyFrontendContract = "dao.frontend_display_contract_address"
	KeyLinkEnvironment  = "links.environment"
	KeyTelegramAPIURL   = "telegram.api_url"
	KeyTelegramToken    = "telegram.bot_token"
	KeyTelegramChatID   = "telegram.chat_id"
	KeyTelegramRate     = "telegram.rate"
	KeyTelegramBurst    = "telegram.burst"
	KeyTelegramTimeout  = "telegram.timeout"
	KeyPollInterval     = "relay.poll_interval"
	KeyBatchSize        = "relay.batch_size"
	KeyLookbackBlocks   = "relay.lookback_blocks"
	KeyJournalOut       = "journal.out"
	KeyJournalPGDSN     = "journal.pg_dsn"
	KeyMetricsAddr      = "metrics.addr"
	KeyLogLevel         = "log.level"
)

// DefaultPollInterval is the delay between two filter polls.
const DefaultPollInterval = 10 * time.Second

// DefaultLookbackBlocks is how many blocks each poll scans again.
const DefaultLookbackBlocks = 12

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"rpc":               KeyRPCURL,
	"explorer-url":      KeyExplorerURL,
	"event-contract":    KeyEventContract,
	"frontend-contract": KeyFrontendContract,
	"environment":       KeyLinkEnvironment,
	"telegram-api-url":  KeyTelegramAPIURL,
	"bot-token":         KeyTelegramToken,
	"chat-id":           KeyTelegramChatID,
	"telegram-rate":     KeyTelegramRate,
	"telegram-burst":    KeyTelegramBurst,
	"telegram-timeout":  KeyTelegramTimeout,
	"poll-interval":     KeyPollInterval,
	"batch-size":        KeyBatchSize,
	"lookback-blocks":   KeyLookbackBlocks,
	"journal-out":       KeyJournalOut,
	"journal-pg-dsn":    KeyJournalPGDSN,
	"metrics-addr":      KeyMetricsAddr,
	"log-level":         KeyLogLevel,
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	ExplorerURL      string
	EventContract    string
	FrontendContract string
	LinkEnvironment  string
	LinkBaseURL      string
	TelegramAPIURL   string
	TelegramToken    string
	TelegramChatID   string
	TelegramRate     float64
	TelegramBurst    int
	TelegramTimeout  time.Duration
	PollInterval     time.Duration
	BatchSize        uint64
	LookbackBlocks   uint64
	JournalOut       string
	JournalPGDSN     string
	MetricsAddr      string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
// Without an explicit file, config.ini (or any other supported config.*) in
// the working directory is used when present.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyTelegramAPIURL, notify.DefaultTelegramAPIURL)
	v.SetDefault(KeyTelegramRate, 1.0)
	v.SetDefault(KeyTelegramBurst, 20)
	v.SetDefault(KeyTelegramTimeout, 10*time.Second)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyBatchSize, uint64(2000))
	v.SetDefault(KeyLookbackBlocks, uint64(DefaultLookbackBlocks))
	v.SetDefault(KeyLogLevel, "info")

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	environment := strings.TrimSpace(v.GetString(KeyLinkEnvironment))
	cfg := Config{
		RPCURL:           strings.TrimSpace(v.GetString(KeyRPCURL)),
		ExplorerURL:      strings.TrimSpace(v.GetString(KeyExplorerURL)),
		EventContract:    strings.TrimSpace(v.GetString(KeyEventContract)),
		FrontendContract: strings.TrimSpace(v.GetString(KeyFrontendContract)),
		LinkEnvironment:  environment,
		LinkBaseURL:      linkBaseURL(v, environment),
		TelegramAPIURL:   strings.TrimRight(strings.TrimSpace(v.GetString(KeyTelegramAPIURL)), "/"),
		TelegramToken:    strings.TrimSpace(v.GetString(KeyTelegramToken)),
		TelegramChatID:   strings.TrimSpace(v.GetString(KeyTelegramChatID)),
		TelegramRate:     v.GetFloat64(KeyTelegramRate),
		TelegramBurst:    v.GetInt(KeyTelegramBurst),
		TelegramTimeout:  v.GetDuration(KeyTelegramTimeout),
		PollInterval:     v.GetDuration(KeyPollInterval),
		BatchSize:        v.GetUint64(KeyBatchSize),
		LookbackBlocks:   v.GetUint64(KeyLookbackBlocks),
		JournalOut:       v.GetString(KeyJournalOut),
		JournalPGDSN:     v.GetString(KeyJournalPGDSN),
		MetricsAddr:      v.GetString(KeyMetricsAddr),
		LogLevel:         v.GetString(KeyLogLevel),
	}

	return cfg, nil
}

// Validate reports the first missing or invalid setting required by the relay.
func (c Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeyRPCURL, c.RPCURL},
		{KeyExplorerURL, c.ExplorerURL},
		{KeyEventContract, c.EventContract},
		{KeyFrontendContract, c.FrontendContract},
		{KeyLinkEnvironment, c.LinkEnvironment},
		{KeyTelegramToken, c.TelegramToken},
		{KeyTelegramChatID, c.TelegramChatID},
	}
	for _, item := range required {
		if item.value == "" {
			return fmt.Errorf("%s is required", item.key)
		}
	}
	if c.LinkBaseURL == "" {
		return fmt.Errorf("links.%s_base_url is required for environment %q", c.LinkEnvironment, c.LinkEnvironment)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("%s must be greater than zero", KeyBatchSize)
	}
	if c.TelegramRate <= 0 {
		return fmt.Errorf("%s must be positive", KeyTelegramRate)
	}
	if c.TelegramBurst <= 0 {
		return fmt.Errorf("%s must be positive", KeyTelegramBurst)
	}
	return nil
}

// linkBaseURL resolves links.<environment>_base_url.
func linkBaseURL(v *viper.Viper, environment string) string {
	if environment == "" {
		return ""
	}
	return strings.TrimSpace(v.GetString(fmt.Sprintf("links.%s_base_url", environment)))
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
