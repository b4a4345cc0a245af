package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/floatchat/floatchat-backend/internal/platform/envutil"
)

// BBox is a named-region bounding box: lat_min, lat_max, lon_min, lon_max.
type BBox struct {
	LatMin float64 `yaml:"lat_min"`
	LatMax float64 `yaml:"lat_max"`
	LonMin float64 `yaml:"lon_min"`
	LonMax float64 `yaml:"lon_max"`
}

type ServerConfig struct {
	Port         string   `yaml:"port"`
	Mode         string   `yaml:"mode"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type IDRange struct {
	Low  int64 `yaml:"low"`
	High int64 `yaml:"high"`
}

type StoresConfig struct {
	DevDSN      string  `yaml:"dev_dsn"`
	LiveDSN     string  `yaml:"live_dsn"`
	DevIDRange  IDRange `yaml:"dev_id_range"`
	LiveIDRange IDRange `yaml:"live_id_range"`
}

type IngestConfig struct {
	RemoteRootURL          string        `yaml:"remote_root_url"`
	AcceptGlobs            []string      `yaml:"accept_globs"`
	Years                  []string      `yaml:"years"`
	Months                 []string      `yaml:"months"`
	FileBudgetPerTick      int           `yaml:"file_budget_per_tick"`
	PerFileTimeout         time.Duration `yaml:"per_file_timeout"`
	RetryMax               int           `yaml:"retry_max"`
	BackoffBase            time.Duration `yaml:"backoff_base"`
	TickWallClock          time.Duration `yaml:"tick_wall_clock"`
	ErrorRateTolerance     float64       `yaml:"error_rate_tolerance"`
	MaxConsecutiveDBFaults int           `yaml:"max_consecutive_db_faults"`
	DownloadDir            string        `yaml:"download_dir"`
	ManifestPath           string        `yaml:"manifest_path"`
	LockDir                string        `yaml:"lock_dir"`
	DataSource             string        `yaml:"data_source"`
}

type VectorConfig struct {
	CollectionName string `yaml:"collection_name"`
	EmbeddingDim   int    `yaml:"embedding_dim"`
	TopKDefault    int    `yaml:"top_k_default"`
}

type QueryConfig struct {
	RowCap            int             `yaml:"row_cap"`
	RawLimit          int             `yaml:"raw_limit"`
	SQLTimeout        time.Duration   `yaml:"sql_timeout"`
	CacheTTL          time.Duration   `yaml:"cache_ttl"`
	CacheMaxEntries   int             `yaml:"cache_max_entries"`
	DepthBinMeters    int             `yaml:"depth_bin_meters"`
	DepthBinMaxMeters int             `yaml:"depth_bin_max_meters"`
	RegionGazetteer   map[string]BBox `yaml:"region_gazetteer"`
}

type AnswerConfig struct {
	MaxSentencesInformational int `yaml:"max_sentences_informational"`
	MaxSentencesData          int `yaml:"max_sentences_data"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type APIConfig struct {
	// DataWindowStart bounds every spatial/profile endpoint; profiles older
	// than this instant are invisible to the read API.
	DataWindowStart time.Time `yaml:"data_window_start"`
	DefaultLimit    int       `yaml:"default_limit"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Stores StoresConfig `yaml:"stores"`
	Ingest IngestConfig `yaml:"ingest"`
	Vector VectorConfig `yaml:"vector"`
	Query  QueryConfig  `yaml:"query"`
	Answer AnswerConfig `yaml:"answer"`
	Redis  RedisConfig  `yaml:"redis"`
	API    APIConfig    `yaml:"api"`
}

// DefaultGazetteer maps named ocean regions to bounding boxes. The Indian
// Ocean partition mirrors the boundaries used when profiles are tagged with a
// region during indexing, so the two always agree.
func DefaultGazetteer() map[string]BBox {
	return map[string]BBox{
		"Arabian Sea":           {LatMin: 0, LatMax: 30, LonMin: 50, LonMax: 80},
		"Bay of Bengal":         {LatMin: 0, LatMax: 30, LonMin: 80, LonMax: 100},
		"Northern Indian Ocean": {LatMin: 0, LatMax: 30, LonMin: 20, LonMax: 120},
		"Southern Indian Ocean": {LatMin: -40, LatMax: 0, LonMin: 20, LonMax: 120},
		"Indian Ocean":          {LatMin: -40, LatMax: 30, LonMin: 20, LonMax: 120},
	}
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Mode: "development",
			AllowOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
			},
		},
		Stores: StoresConfig{
			DevIDRange:  IDRange{Low: 1, High: 10_000_000},
			LiveIDRange: IDRange{Low: 10_000_000, High: 1 << 62},
		},
		Ingest: IngestConfig{
			RemoteRootURL:          "https://data-argo.ifremer.fr/geo/indian_ocean/",
			AcceptGlobs:            []string{"*.nc"},
			FileBudgetPerTick:      10,
			PerFileTimeout:         120 * time.Second,
			RetryMax:               3,
			BackoffBase:            5 * time.Second,
			TickWallClock:          45 * time.Minute,
			ErrorRateTolerance:     0.5,
			MaxConsecutiveDBFaults: 5,
			DownloadDir:            "./data/live_downloads",
			ManifestPath:           "./data/argo_manifest.db",
			LockDir:                "./data",
			DataSource:             "IFREMER",
		},
		Vector: VectorConfig{
			CollectionName: "floatchat_profiles",
			EmbeddingDim:   1536,
			TopKDefault:    20,
		},
		Query: QueryConfig{
			RowCap:            5000,
			RawLimit:          500,
			SQLTimeout:        15 * time.Second,
			CacheTTL:          time.Hour,
			CacheMaxEntries:   256,
			DepthBinMeters:    50,
			DepthBinMaxMeters: 2000,
			RegionGazetteer:   DefaultGazetteer(),
		},
		Answer: AnswerConfig{
			MaxSentencesInformational: 4,
			MaxSentencesData:          4,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		API: APIConfig{
			DataWindowStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			DefaultLimit:    100,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in that order of precedence (env wins).
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if len(cfg.Query.RegionGazetteer) == 0 {
		cfg.Query.RegionGazetteer = DefaultGazetteer()
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = envutil.String("PORT", cfg.Server.Port)
	cfg.Server.Mode = envutil.String("LOG_MODE", cfg.Server.Mode)

	cfg.Stores.DevDSN = envutil.String("DEV_DATABASE_URL", cfg.Stores.DevDSN)
	cfg.Stores.LiveDSN = envutil.String("LIVE_DATABASE_URL", cfg.Stores.LiveDSN)
	cfg.Stores.DevIDRange.Low = envutil.Int64("DEV_ID_RANGE_LOW", cfg.Stores.DevIDRange.Low)
	cfg.Stores.DevIDRange.High = envutil.Int64("DEV_ID_RANGE_HIGH", cfg.Stores.DevIDRange.High)
	cfg.Stores.LiveIDRange.Low = envutil.Int64("LIVE_ID_RANGE_LOW", cfg.Stores.LiveIDRange.Low)
	cfg.Stores.LiveIDRange.High = envutil.Int64("LIVE_ID_RANGE_HIGH", cfg.Stores.LiveIDRange.High)

	cfg.Ingest.RemoteRootURL = envutil.String("ARGO_REMOTE_ROOT_URL", cfg.Ingest.RemoteRootURL)
	if v := envutil.String("ARGO_ACCEPT_GLOBS", ""); v != "" {
		cfg.Ingest.AcceptGlobs = splitCSV(v)
	}
	if v := envutil.String("ARGO_YEARS", ""); v != "" {
		cfg.Ingest.Years = splitCSV(v)
	}
	if v := envutil.String("ARGO_MONTHS", ""); v != "" {
		cfg.Ingest.Months = splitCSV(v)
	}
	cfg.Ingest.FileBudgetPerTick = envutil.Int("ARGO_FILE_BUDGET_PER_TICK", cfg.Ingest.FileBudgetPerTick)
	cfg.Ingest.PerFileTimeout = envutil.Seconds("ARGO_PER_FILE_TIMEOUT_S", cfg.Ingest.PerFileTimeout)
	cfg.Ingest.RetryMax = envutil.Int("ARGO_RETRY_MAX", cfg.Ingest.RetryMax)
	cfg.Ingest.BackoffBase = envutil.Seconds("ARGO_BACKOFF_BASE_S", cfg.Ingest.BackoffBase)
	cfg.Ingest.TickWallClock = envutil.Seconds("ARGO_TICK_WALL_CLOCK_S", cfg.Ingest.TickWallClock)
	cfg.Ingest.ErrorRateTolerance = envutil.Float("ARGO_ERROR_RATE_TOLERANCE", cfg.Ingest.ErrorRateTolerance)
	cfg.Ingest.DownloadDir = envutil.String("ARGO_DOWNLOAD_DIR", cfg.Ingest.DownloadDir)
	cfg.Ingest.ManifestPath = envutil.String("ARGO_MANIFEST_PATH", cfg.Ingest.ManifestPath)
	cfg.Ingest.LockDir = envutil.String("ARGO_LOCK_DIR", cfg.Ingest.LockDir)

	cfg.Vector.CollectionName = envutil.String("VECTOR_COLLECTION_NAME", cfg.Vector.CollectionName)
	cfg.Vector.EmbeddingDim = envutil.Int("VECTOR_EMBEDDING_DIM", cfg.Vector.EmbeddingDim)
	cfg.Vector.TopKDefault = envutil.Int("VECTOR_TOP_K_DEFAULT", cfg.Vector.TopKDefault)

	cfg.Query.RowCap = envutil.Int("QUERY_ROW_CAP", cfg.Query.RowCap)
	cfg.Query.RawLimit = envutil.Int("QUERY_RAW_LIMIT", cfg.Query.RawLimit)
	cfg.Query.SQLTimeout = envutil.Seconds("QUERY_SQL_TIMEOUT_S", cfg.Query.SQLTimeout)
	cfg.Query.CacheTTL = envutil.Seconds("QUERY_CACHE_TTL_S", cfg.Query.CacheTTL)
	cfg.Query.CacheMaxEntries = envutil.Int("QUERY_CACHE_MAX_ENTRIES", cfg.Query.CacheMaxEntries)
	cfg.Query.DepthBinMeters = envutil.Int("QUERY_DEPTH_BIN_METERS", cfg.Query.DepthBinMeters)
	cfg.Query.DepthBinMaxMeters = envutil.Int("QUERY_DEPTH_BIN_MAX_METERS", cfg.Query.DepthBinMaxMeters)

	cfg.Answer.MaxSentencesInformational = envutil.Int("ANSWER_MAX_SENTENCES_INFORMATIONAL", cfg.Answer.MaxSentencesInformational)
	cfg.Answer.MaxSentencesData = envutil.Int("ANSWER_MAX_SENTENCES_DATA", cfg.Answer.MaxSentencesData)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
}

func validate(cfg *Config) error {
	if cfg.Stores.DevIDRange.Low >= cfg.Stores.DevIDRange.High {
		return fmt.Errorf("dev_id_range is empty: [%d, %d)", cfg.Stores.DevIDRange.Low, cfg.Stores.DevIDRange.High)
	}
	if cfg.Stores.LiveIDRange.Low >= cfg.Stores.LiveIDRange.High {
		return fmt.Errorf("live_id_range is empty: [%d, %d)", cfg.Stores.LiveIDRange.Low, cfg.Stores.LiveIDRange.High)
	}
	if overlaps(cfg.Stores.DevIDRange, cfg.Stores.LiveIDRange) {
		return fmt.Errorf("dev and live id ranges overlap: dev=[%d,%d) live=[%d,%d)",
			cfg.Stores.DevIDRange.Low, cfg.Stores.DevIDRange.High,
			cfg.Stores.LiveIDRange.Low, cfg.Stores.LiveIDRange.High)
	}
	if cfg.Query.DepthBinMeters <= 0 {
		return fmt.Errorf("depth_bin_meters must be positive, got %d", cfg.Query.DepthBinMeters)
	}
	if cfg.Ingest.ErrorRateTolerance < 0 || cfg.Ingest.ErrorRateTolerance > 1 {
		return fmt.Errorf("error_rate_tolerance must be in [0,1], got %f", cfg.Ingest.ErrorRateTolerance)
	}
	return nil
}

func overlaps(a, b IDRange) bool {
	return a.Low < b.High && b.Low < a.High
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
