package config

import "time"

type Config struct {
	DBDsn       string
	LockTimeout time.Duration
}
