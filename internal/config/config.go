package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL       string
	RPCTimeout   time.Duration
	Autopools    []string
	Discover     bool
	Start        uint64
	Step         uint64
	Tiers        []int
	KeepBlock    bool
	AllowPartial bool
	APRWindow    int
	Out          string
	ReturnsOut   string
	PGDSN        string
	DBBatchSize  int
	StateFile    string
	StateName    string
	MaxRetries   int
	RetryBackoff time.Duration
	MetricsAddr  string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
// Environment variables use the AUTOPOOL_ prefix, e.g. AUTOPOOL_RPC_TIMEOUT.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTOPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc-timeout", 30*time.Second)
	v.SetDefault("tiers", []int{300, 100, 30, 10, 1})
	v.SetDefault("apr-window", 30)
	v.SetDefault("out", "./data/snapshots.jsonl")
	v.SetDefault("returns-out", "./data/returns.jsonl")
	v.SetDefault("db-batch-size", 1000)
	v.SetDefault("state-name", "autopool-snapshot")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
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

	tiers, err := getIntSlice(v, "tiers")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:       v.GetString("rpc"),
		RPCTimeout:   v.GetDuration("rpc-timeout"),
		Autopools:    getStringSlice(v, "autopool"),
		Discover:     v.GetBool("discover"),
		Start:        v.GetUint64("start"),
		Step:         v.GetUint64("step"),
		Tiers:        tiers,
		KeepBlock:    v.GetBool("keep-block"),
		AllowPartial: v.GetBool("allow-partial"),
		APRWindow:    v.GetInt("apr-window"),
		Out:          v.GetString("out"),
		ReturnsOut:   v.GetString("returns-out"),
		PGDSN:        v.GetString("pg-dsn"),
		DBBatchSize:  v.GetInt("db-batch-size"),
		StateFile:    v.GetString("state-file"),
		StateName:    v.GetString("state-name"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		MetricsAddr:  v.GetString("metrics-addr"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

// getIntSlice accepts an int list from a flag, a config file list, or a
// comma-separated env value.
func getIntSlice(v *viper.Viper, key string) ([]int, error) {
	switch typed := v.Get(key).(type) {
	case nil:
		return nil, nil
	case []int:
		return typed, nil
	case []interface{}:
		out := make([]int, 0, len(typed))
		for _, item := range typed {
			n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprintf("%v", item)))
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", key, err)
			}
			out = append(out, n)
		}
		return out, nil
	default:
		var items []string
		if s, ok := typed.(string); ok {
			items = splitAndClean(strings.Trim(s, "[]"))
		} else {
			items = getStringSlice(v, key)
		}
		out := make([]int, 0, len(items))
		for _, item := range items {
			n, err := strconv.Atoi(item)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", key, err)
			}
			out = append(out, n)
		}
		return out, nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
