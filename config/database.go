package config

// DBConfig contains PostgreSQL database configuration. The scheduler demands
// SERIALIZABLE isolation; the bootstrap DSN sets it as the session default and
// the store refuses backends that do not honour it at startup.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"retz"`
	Password string `env:"PASSWORD" envDefault:"retz"`
	Name     string `env:"NAME"     envDefault:"retz"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // 'disable' for local dev, 'require' for production

	// MaxConns bounds the connection pool.
	MaxConns int `env:"MAX_CONNS" envDefault:"10"`
}

// RedisConfig contains the optional redis connection for the offer snapshot
// cache. When Addr is empty the in-process cache is used instead.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:""`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// Enabled reports whether a redis cache is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}
