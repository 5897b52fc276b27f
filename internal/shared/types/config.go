package types

// ServerConf 包含数据面监听器的配置
type ServerConf struct {
	Port           int `ini:"port"`
	Backlog        int `ini:"backlog"`
	BufferSize     int `ini:"buffer_size"`
	MaxConnections int `ini:"max_connections"` // 0 表示不限制
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// WebConf 包含状态服务器的配置，Port 为 0 时禁用
type WebConf struct {
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"password"`
}

// Config 是 hellod 的统一配置结构体
type Config struct {
	ServerConf `ini:"server"`
	LogConf    `ini:"log"`
	WebConf    `ini:"web"`
}

// Default 返回与原始行为一致的默认配置。
func Default() *Config {
	return &Config{
		ServerConf: ServerConf{
			Port:       8080,
			Backlog:    10,
			BufferSize: 1024,
		},
		LogConf: LogConf{Level: "info"},
	}
}
