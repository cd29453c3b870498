package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Redis       *RedisConfig
	Postgres    *PostgresConfig
	Tracer      *TracerConfig
	Logger      *LoggerConfig
	WS          *WSConfig
	SecretToken string
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type TracerConfig struct {
	Address string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type WSConfig struct {
	WriteTimeout   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// CommandRate limits inbound commands per connection (tokens per second
	// with CommandBurst headroom).
	CommandRate  float64
	CommandBurst int
	PresenceTTL  time.Duration
	HeartbeatTTL time.Duration
}
