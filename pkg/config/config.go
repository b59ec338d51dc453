// Package config 加载 rowsync 运行配置
//
// 默认值通过 koanf structs provider 载入，再叠加 YAML 文件：
//
//	timeout_ms: 10000
//	save_join_timeout_ms: 2000
//	mailbox_size: 0
//	store:
//	  driver: file        # memory | file
//	  dir: ./snapshots
//	log:
//	  level: info         # debug | info | warn | error
//	  format: text        # text | json
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/rowsync"
	"github.com/lwmacct/251220-go-pkg-rowsync/pkg/store"
)

const (
	// DriverMemory 进程内存储
	DriverMemory = "memory"
	// DriverFile YAML 文件存储
	DriverFile = "file"

	// FormatText 文本日志
	FormatText = "text"
	// FormatJSON JSON 日志
	FormatJSON = "json"
)

// Config 运行配置
type Config struct {
	TimeoutMS         int         `koanf:"timeout_ms"`
	SaveJoinTimeoutMS int         `koanf:"save_join_timeout_ms"`
	MailboxSize       int         `koanf:"mailbox_size"`
	Store             StoreConfig `koanf:"store"`
	Log               LogConfig   `koanf:"log"`
}

// StoreConfig 快照存储配置
type StoreConfig struct {
	Driver string `koanf:"driver"`
	Dir    string `koanf:"dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		TimeoutMS:         int(rowsync.DefaultTimeout / time.Millisecond),
		SaveJoinTimeoutMS: int(rowsync.DefaultSaveJoinTimeout / time.Millisecond),
		Store:             StoreConfig{Driver: DriverMemory},
		Log:               LogConfig{Level: "info", Format: FormatText},
	}
}

// Load 读取配置文件并叠加在默认值之上
// path 为空时只使用默认值
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("%w: defaults: %w", ErrConfigLoad, err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfigParse, path, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("%w: timeout_ms=%d", ErrInvalidTimeout, c.TimeoutMS)
	}
	if c.SaveJoinTimeoutMS < 0 {
		return fmt.Errorf("%w: save_join_timeout_ms=%d", ErrInvalidTimeout, c.SaveJoinTimeoutMS)
	}
	if c.MailboxSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMailboxSize, c.MailboxSize)
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Store.Dir == "" {
			return ErrMissingStoreDir
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.Store.Driver)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	return nil
}

// Timeout 等待终态的超时
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// SaveJoinTimeout 拆除时等待保存的时长
func (c *Config) SaveJoinTimeout() time.Duration {
	return time.Duration(c.SaveJoinTimeoutMS) * time.Millisecond
}

// Options 转换为 rowsync 选项
func (c *Config) Options() []rowsync.Option {
	return []rowsync.Option{
		rowsync.WithTimeout(c.Timeout()),
		rowsync.WithSaveJoinTimeout(c.SaveJoinTimeout()),
		rowsync.WithMailboxSize(c.MailboxSize),
	}
}

// OpenStore 按配置打开快照存储
func (c *Config) OpenStore() (store.Store, error) {
	switch c.Store.Driver {
	case DriverMemory:
		return store.NewMemoryStore(), nil
	case DriverFile:
		return store.NewFileStore(c.Store.Dir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDriver, c.Store.Driver)
	}
}

// NewLogger 按配置创建日志器
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	switch c.Log.Format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
	return level, nil
}
