package config

import "errors"

// 配置校验错误
var (
	ErrInvalidTimeout     = errors.New("config: invalid timeout")
	ErrInvalidMailboxSize = errors.New("config: invalid mailbox size")
	ErrInvalidDriver      = errors.New("config: invalid store driver")
	ErrMissingStoreDir    = errors.New("config: store dir is required for the file driver")
	ErrInvalidLogLevel    = errors.New("config: invalid log level")
	ErrInvalidLogFormat   = errors.New("config: invalid log format")
)

// 配置加载错误
var (
	ErrConfigLoad  = errors.New("config: load failed")
	ErrConfigParse = errors.New("config: parse failed")
)
