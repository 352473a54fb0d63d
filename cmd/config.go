package main

import "time"

type Config struct {
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	GCInterval           time.Duration `env:"GC_INTERVAL,default=5m"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=1m"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	JWTSecret            string        `env:"JWT_SECRET"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	BannedWordsFile      string        `env:"BANNED_WORDS_FILE"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
}
