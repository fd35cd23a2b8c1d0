package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Configはカート同期ライブラリの設定
type Config struct {
	APIBaseURL string // REST APIのベースURL
	Lang       string // x-custom-lang

	Owner       string // 端末内でカートを分けるキー（ユーザー）
	DBPath      string // SQLiteファイル
	DatabaseURL string // あればPostgresを使う

	Debounce        time.Duration // 数量変更をまとめる時間
	MutationTimeout time.Duration // 更新系の通信タイムアウト

	EnrichMaxAttempts int           // 商品情報取得の試行回数
	EnrichRetryDelay  time.Duration // 再試行までの待ち
	EnrichConcurrency int           // 同時に走らせる取得数
	CatalogRPS        float64       // 商品APIの秒間リクエスト上限
}

// ServerConfigは開発用スタブAPIの設定
type ServerConfig struct {
	Port      string
	JWTSecret string
	AccessTTL time.Duration

	StubUserEmail    string
	StubUserPassword string
	Denormalize      bool // カート明細に価格・名前を載せる
}

func Default() Config {
	return Config{
		Lang:              "vi",
		Owner:             "default",
		DBPath:            "cart.db",
		Debounce:          500 * time.Millisecond,
		MutationTimeout:   10 * time.Second,
		EnrichMaxAttempts: 3,
		EnrichRetryDelay:  time.Second,
		EnrichConcurrency: 4,
		CatalogRPS:        10,
	}
}

// .envがあれば読み込んでからLoad
func LoadFile(path string) (Config, error) {
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return Load()
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Default()

	cfg.APIBaseURL = os.Getenv("CART_API_BASE_URL")
	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("CART_API_BASE_URL is required")
	}

	cfg.Lang = getenv("CART_LANG", cfg.Lang)
	cfg.Owner = getenv("CART_OWNER", cfg.Owner)
	cfg.DBPath = getenv("CART_DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	var err error
	if cfg.Debounce, err = durationEnv("CART_DEBOUNCE", cfg.Debounce); err != nil {
		return Config{}, err
	}
	if cfg.MutationTimeout, err = durationEnv("CART_MUTATION_TIMEOUT", cfg.MutationTimeout); err != nil {
		return Config{}, err
	}
	if cfg.EnrichRetryDelay, err = durationEnv("CART_ENRICH_RETRY_DELAY", cfg.EnrichRetryDelay); err != nil {
		return Config{}, err
	}
	if cfg.EnrichMaxAttempts, err = intEnv("CART_ENRICH_MAX_ATTEMPTS", cfg.EnrichMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.EnrichConcurrency, err = intEnv("CART_ENRICH_CONCURRENCY", cfg.EnrichConcurrency); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("CART_CATALOG_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CART_CATALOG_RPS must be number: %w", err)
		}
		cfg.CatalogRPS = f
	}

	//範囲チェック
	if cfg.EnrichMaxAttempts < 1 {
		return Config{}, fmt.Errorf("CART_ENRICH_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.EnrichConcurrency < 1 {
		return Config{}, fmt.Errorf("CART_ENRICH_CONCURRENCY must be >= 1")
	}
	if cfg.MutationTimeout <= 0 {
		return Config{}, fmt.Errorf("CART_MUTATION_TIMEOUT must be positive")
	}

	return cfg, nil
}

// LoadServerFile は .env があれば読んでから LoadServer
func LoadServerFile(path string) (ServerConfig, error) {
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return ServerConfig{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return LoadServer()
}

// LoadServerはスタブAPI用
func LoadServer() (ServerConfig, error) {
	cfg := ServerConfig{
		Port:             getenv("PORT", "8080"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AccessTTL:        15 * time.Minute,
		StubUserEmail:    getenv("STUB_USER_EMAIL", "demo@example.com"),
		StubUserPassword: getenv("STUB_USER_PASSWORD", "password"),
		Denormalize:      os.Getenv("STUB_DENORMALIZE") == "true",
	}

	if cfg.JWTSecret == "" {
		return ServerConfig{}, fmt.Errorf("JWT_SECRET is required")
	}

	var err error
	if cfg.AccessTTL, err = durationEnv("ACCESS_TTL", cfg.AccessTTL); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
