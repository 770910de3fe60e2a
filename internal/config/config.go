package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// 存储驱动取值。
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config 保存进程级配置（仅使用配置文件或内置默认值）。
// 字段提供开发友好的默认值；生产环境请在 config.yaml 中覆盖。
type Config struct {
	Env          string
	HTTPAddr     string
	GRPCAddr     string
	Store        string
	MySQL        MySQLConfig
	Redis        RedisConfig
	Cache        CacheConfig
	Discovery    DiscoveryConfig
	Fetch        FetchConfig
	Lookup       LookupConfig
	Registration RegistrationConfig
	Limits       LimitConfig
	Security     SecurityConfig
	BcryptCost   int
}

type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Params   string
	// 启动时连接失败的最大尝试次数
	ConnectTries uint
}

func (m MySQLConfig) DSN() string {
	port := m.Port
	if port == 0 {
		port = 3306
	}
	host := m.Host
	if host == "" {
		host = "127.0.0.1"
	}
	db := m.DBName
	if db == "" {
		db = "client_service"
	}
	params := m.Params
	if params == "" {
		params = defaultMySQLParams
	}
	// 注意：Password 可能为空（本地无密码开发），生产强烈建议设置强密码
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", m.User, m.Password, host, port, db, params)
}

func (m MySQLConfig) DSNMasked() string {
	masked := m
	if masked.Password != "" {
		masked.Password = "******"
	}
	return masked.DSN()
}

// clientFoundRows 使 UPDATE 的影响行数按匹配行计算，更新内容未变化时也能识别记录存在。
const defaultMySQLParams = "parseTime=true&loc=Local&charset=utf8mb4,utf8&clientFoundRows=true"

type RedisConfig struct {
	// 为空时不连接 Redis（缓存与限流随之关闭）
	Addr     string
	DB       int
	Password string
}

// CacheConfig 控制客户端记录的 Redis 读穿缓存。
type CacheConfig struct {
	Enable bool
	TTL    time.Duration
}

// DiscoveryConfig 指定能力声明来源：内置示例或远程 .well-known 文档。
type DiscoveryConfig struct {
	UseSample       bool
	URL             string
	MaxTries        uint
	RefreshInterval time.Duration
}

// FetchConfig 控制 jwks_uri / request_uri 的拉取。
type FetchConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
}

// LookupConfig 控制 gRPC 查找的并发度。
type LookupConfig struct {
	Concurrency int
}

type RegistrationConfig struct {
	// 初始访问令牌：若非空，则创建/更新/删除必须携带此 Bearer 令牌
	InitialAccessToken string
}

type LimitConfig struct {
	RegisterPerMinute int
	// 时间窗口（默认 1m）
	Window time.Duration
}

type SecurityConfig struct {
	HSTS struct {
		Enabled           bool
		MaxAgeSeconds     int
		IncludeSubdomains bool
	}
}

// Defaults 返回内置默认配置。
// 默认：MySQL 127.0.0.1:3306 用户 root/123456；Redis 127.0.0.1:6379 无密码。
func Defaults() Config {
	cfg := Config{
		Env:          "dev",
		HTTPAddr:     ":8080",
		GRPCAddr:     ":9090",
		Store:        StoreMySQL,
		MySQL:        MySQLConfig{Host: "127.0.0.1", Port: 3306, User: "root", Password: "123456", DBName: "client_service", Params: defaultMySQLParams, ConnectTries: 5},
		Redis:        RedisConfig{Addr: "127.0.0.1:6379", DB: 0, Password: ""},
		Cache:        CacheConfig{Enable: true, TTL: 10 * time.Minute},
		Discovery:    DiscoveryConfig{UseSample: true, MaxTries: 10, RefreshInterval: time.Hour},
		Fetch:        FetchConfig{Timeout: 10 * time.Second, MaxBodyBytes: 1 << 20},
		Lookup:       LookupConfig{Concurrency: defaultConcurrency()},
		Registration: RegistrationConfig{},
		Limits:       LimitConfig{RegisterPerMinute: 30, Window: time.Minute},
		BcryptCost:   10,
	}
	cfg.Security.HSTS.Enabled = true
	cfg.Security.HSTS.MaxAgeSeconds = 31536000
	cfg.Security.HSTS.IncludeSubdomains = true
	return cfg
}

func defaultConcurrency() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// Load 生成配置：先使用内置默认值，再用工作目录下的配置文件（config.yaml/yml/json）覆盖。
// 配置文件解析失败时忽略并沿用默认值。
func Load() Config {
	cfg := Defaults()
	if path := FirstExisting("config.yaml", "config.yml", "config.json"); path != "" {
		_ = loadFromFile(path, &cfg)
	}
	return cfg
}

// LoadFrom 使用指定文件覆盖默认值；path 为空时等价于 Load。
func LoadFrom(path string) (Config, error) {
	if path == "" {
		return Load(), nil
	}
	cfg := Defaults()
	if err := loadFromFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// 配置文件格式：YAML 或 JSON。仅非零值会覆盖现有字段。
func loadFromFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var fm fileModel
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(b, &fm); err != nil {
			return err
		}
	} else if ext == ".json" || ext == "" {
		if err := json.Unmarshal(b, &fm); err != nil {
			return err
		}
	} else {
		return errors.New("unsupported config file format")
	}
	fm.apply(cfg)
	return nil
}

// --- 配置文件模型与合并逻辑 ---

type fileModel struct {
	Env          string            `yaml:"env" json:"env"`
	HTTPAddr     string            `yaml:"http_addr" json:"http_addr"`
	GRPCAddr     string            `yaml:"grpc_addr" json:"grpc_addr"`
	Store        string            `yaml:"store" json:"store"`
	MySQL        *fileMySQL        `yaml:"mysql" json:"mysql"`
	Redis        *fileRedis        `yaml:"redis" json:"redis"`
	Cache        *fileCache        `yaml:"cache" json:"cache"`
	Discovery    *fileDiscovery    `yaml:"discovery" json:"discovery"`
	Fetch        *fileFetch        `yaml:"fetch" json:"fetch"`
	Lookup       *fileLookup       `yaml:"lookup" json:"lookup"`
	Registration *fileRegistration `yaml:"registration" json:"registration"`
	Limits       *fileLimits       `yaml:"limits" json:"limits"`
	Security     *fileSecurity     `yaml:"security" json:"security"`
	BcryptCost   int               `yaml:"bcrypt_cost" json:"bcrypt_cost"`
}

type fileMySQL struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	User         string `yaml:"user" json:"user"`
	Password     string `yaml:"password" json:"password"`
	DBName       string `yaml:"db" json:"db"`
	Params       string `yaml:"params" json:"params"`
	ConnectTries uint   `yaml:"connect_tries" json:"connect_tries"`
}
type fileRedis struct {
	Addr     *string `yaml:"addr" json:"addr"`
	DB       int     `yaml:"db" json:"db"`
	Password string  `yaml:"password" json:"password"`
}
type fileCache struct {
	Enable *bool  `yaml:"enable" json:"enable"`
	TTL    string `yaml:"ttl" json:"ttl"`
}
type fileDiscovery struct {
	UseSample       *bool  `yaml:"use_sample" json:"use_sample"`
	URL             string `yaml:"url" json:"url"`
	MaxTries        uint   `yaml:"max_tries" json:"max_tries"`
	RefreshInterval string `yaml:"refresh_interval" json:"refresh_interval"`
}
type fileFetch struct {
	Timeout      string `yaml:"timeout" json:"timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" json:"max_body_bytes"`
}
type fileLookup struct {
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}
type fileRegistration struct {
	InitialAccessToken string `yaml:"initial_access_token" json:"initial_access_token"`
}
type fileLimits struct {
	RegisterPerMinute int    `yaml:"register_per_minute" json:"register_per_minute"`
	Window            string `yaml:"window" json:"window"`
}
type fileSecurity struct {
	HSTS struct {
		Enabled           *bool `yaml:"enabled" json:"enabled"`
		MaxAge            int   `yaml:"max_age" json:"max_age"`
		IncludeSubdomains *bool `yaml:"include_subdomains" json:"include_subdomains"`
	} `yaml:"hsts" json:"hsts"`
}

func setDuration(dst *time.Duration, s string) {
	if s == "" {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		*dst = d
	}
}

func (fm *fileModel) apply(cfg *Config) {
	if fm.Env != "" {
		cfg.Env = fm.Env
	}
	if fm.HTTPAddr != "" {
		cfg.HTTPAddr = fm.HTTPAddr
	}
	if fm.GRPCAddr != "" {
		cfg.GRPCAddr = fm.GRPCAddr
	}
	if fm.Store != "" {
		cfg.Store = strings.ToLower(fm.Store)
	}
	if fm.MySQL != nil {
		if fm.MySQL.Host != "" {
			cfg.MySQL.Host = fm.MySQL.Host
		}
		if fm.MySQL.Port != 0 {
			cfg.MySQL.Port = fm.MySQL.Port
		}
		if fm.MySQL.User != "" {
			cfg.MySQL.User = fm.MySQL.User
		}
		if fm.MySQL.Password != "" {
			cfg.MySQL.Password = fm.MySQL.Password
		}
		if fm.MySQL.DBName != "" {
			cfg.MySQL.DBName = fm.MySQL.DBName
		}
		if fm.MySQL.Params != "" {
			cfg.MySQL.Params = fm.MySQL.Params
		}
		if fm.MySQL.ConnectTries != 0 {
			cfg.MySQL.ConnectTries = fm.MySQL.ConnectTries
		}
	}
	if fm.Redis != nil {
		// addr 显式写空字符串表示禁用 Redis
		if fm.Redis.Addr != nil {
			cfg.Redis.Addr = *fm.Redis.Addr
		}
		if fm.Redis.DB != 0 {
			cfg.Redis.DB = fm.Redis.DB
		}
		if fm.Redis.Password != "" {
			cfg.Redis.Password = fm.Redis.Password
		}
	}
	if fm.Cache != nil {
		if fm.Cache.Enable != nil {
			cfg.Cache.Enable = *fm.Cache.Enable
		}
		setDuration(&cfg.Cache.TTL, fm.Cache.TTL)
	}
	if fm.Discovery != nil {
		if fm.Discovery.UseSample != nil {
			cfg.Discovery.UseSample = *fm.Discovery.UseSample
		}
		if fm.Discovery.URL != "" {
			cfg.Discovery.URL = fm.Discovery.URL
		}
		if fm.Discovery.MaxTries != 0 {
			cfg.Discovery.MaxTries = fm.Discovery.MaxTries
		}
		setDuration(&cfg.Discovery.RefreshInterval, fm.Discovery.RefreshInterval)
	}
	if fm.Fetch != nil {
		setDuration(&cfg.Fetch.Timeout, fm.Fetch.Timeout)
		if fm.Fetch.MaxBodyBytes > 0 {
			cfg.Fetch.MaxBodyBytes = fm.Fetch.MaxBodyBytes
		}
	}
	if fm.Lookup != nil && fm.Lookup.Concurrency > 0 {
		cfg.Lookup.Concurrency = fm.Lookup.Concurrency
	}
	if fm.Registration != nil && fm.Registration.InitialAccessToken != "" {
		cfg.Registration.InitialAccessToken = fm.Registration.InitialAccessToken
	}
	if fm.Limits != nil {
		if fm.Limits.RegisterPerMinute != 0 {
			cfg.Limits.RegisterPerMinute = fm.Limits.RegisterPerMinute
		}
		setDuration(&cfg.Limits.Window, fm.Limits.Window)
	}
	if fm.Security != nil {
		if fm.Security.HSTS.Enabled != nil {
			cfg.Security.HSTS.Enabled = *fm.Security.HSTS.Enabled
		}
		if fm.Security.HSTS.MaxAge != 0 {
			cfg.Security.HSTS.MaxAgeSeconds = fm.Security.HSTS.MaxAge
		}
		if fm.Security.HSTS.IncludeSubdomains != nil {
			cfg.Security.HSTS.IncludeSubdomains = *fm.Security.HSTS.IncludeSubdomains
		}
	}
	if fm.BcryptCost != 0 {
		cfg.BcryptCost = fm.BcryptCost
	}
}

// Validate 执行生产环境基线检查。
func (c Config) Validate() error {
	if c.Store != StoreMySQL && c.Store != StoreMemory {
		return fmt.Errorf("unsupported store %q", c.Store)
	}
	if !c.Discovery.UseSample && c.Discovery.URL == "" {
		return errors.New("discovery.url required when discovery.use_sample is false")
	}
	if c.Env != "prod" {
		return nil
	}
	if c.Store == StoreMemory {
		return errors.New("memory store is not allowed in prod")
	}
	if c.MySQL.Password == "" || c.MySQL.Password == "123456" {
		return errors.New("mysql.password must be set to a non-default value in prod")
	}
	if c.Discovery.UseSample {
		return errors.New("discovery.use_sample must be false in prod")
	}
	return nil
}

// FirstExisting 按顺序返回第一个存在的文件路径；若都不存在则返回空字符串。
func FirstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
