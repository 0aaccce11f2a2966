package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths      PathsConfig      `mapstructure:"paths"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Server     ServerConfig     `mapstructure:"server"`
	Diacritics DiacriticsConfig `mapstructure:"diacritics"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Store      StoreConfig      `mapstructure:"store"`
	Hub        HubConfig        `mapstructure:"hub"`
	LogLevel   string           `mapstructure:"log_level"`
}

type PathsConfig struct {
	DiacriticsModelDir string `mapstructure:"diacritics_model_dir"`
	DictionaryPath     string `mapstructure:"dictionary_path"`
	EmbedderModelDir   string `mapstructure:"embedder_model_dir"`
	SimilarityModelDir string `mapstructure:"similarity_model_dir"`
}

type RuntimeConfig struct {
	Threads        int    `mapstructure:"threads"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
}

// DiacriticsConfig controls both dictionary construction and restoration.
type DiacriticsConfig struct {
	MaxInputTokens int     `mapstructure:"max_input_tokens"`
	MaxNewTokens   int     `mapstructure:"max_new_tokens"`
	Threshold      float64 `mapstructure:"threshold"`
	MinCount       int     `mapstructure:"min_count"`
	AlignToInput   bool    `mapstructure:"align_to_input"`
	FixPunctuation bool    `mapstructure:"fix_punctuation"`
	CorpusFormat   string  `mapstructure:"corpus_format"`
}

// SimilarityConfig holds the siamese training schedule and embedder limits.
type SimilarityConfig struct {
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
	EvalEvery    int     `mapstructure:"eval_every"`
	Seed         uint64  `mapstructure:"seed"`
	MaxSeqLen    int     `mapstructure:"max_seq_len"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisKey      string `mapstructure:"redis_key"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
}

type HubConfig struct {
	Token    string `mapstructure:"token"`
	CacheDir string `mapstructure:"cache_dir"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			DiacriticsModelDir: "models/diacritics",
			DictionaryPath:     "models/diacritics/dictionary.json",
			EmbedderModelDir:   "models/embedder",
			SimilarityModelDir: "models/similarity",
		},
		Runtime: RuntimeConfig{
			Threads: 4,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			ShutdownTimeout: 30,
			MaxTextBytes:    4096,
			RequestTimeout:  60,
		},
		Diacritics: DiacriticsConfig{
			MaxInputTokens: 256,
			MaxNewTokens:   256,
			Threshold:      0.95,
			MinCount:       1,
			AlignToInput:   false,
			FixPunctuation: true,
			CorpusFormat:   "auto",
		},
		Similarity: SimilarityConfig{
			Epochs:       3000,
			BatchSize:    100,
			LearningRate: 0.007,
			EvalEvery:    10,
			Seed:         42,
			MaxSeqLen:    512,
		},
		Store: StoreConfig{
			Backend:   StoreFile,
			RedisAddr: "localhost:6379",
			RedisKey:  "ronlp:diacritics",
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-diacritics-model-dir", defaults.Paths.DiacriticsModelDir, "Directory with the exported diacritics seq2seq model")
	fs.String("paths-dictionary-path", defaults.Paths.DictionaryPath, "Mandatory-diacritics dictionary file (file store)")
	fs.String("paths-embedder-model-dir", defaults.Paths.EmbedderModelDir, "Directory with the exported sentence embedding model")
	fs.String("paths-similarity-model-dir", defaults.Paths.SimilarityModelDir, "Directory holding the siamese checkpoint")
	fs.Int("runtime-threads", defaults.Runtime.Threads, "ONNX Runtime intra-op thread count")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent pipeline calls served over HTTP")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request deadline in seconds")
	fs.Int("diacritics-max-input-tokens", defaults.Diacritics.MaxInputTokens, "Input truncation length for the generation model")
	fs.Int("diacritics-max-new-tokens", defaults.Diacritics.MaxNewTokens, "Maximum generated tokens per line")
	fs.Float64("diacritics-threshold", defaults.Diacritics.Threshold, "Share of occurrences a form needs to become mandatory")
	fs.Int("diacritics-min-count", defaults.Diacritics.MinCount, "Minimum occurrences of a stripped form before it is considered")
	fs.Bool("diacritics-align-to-input", defaults.Diacritics.AlignToInput, "Project corrected output back onto the input line")
	fs.Bool("diacritics-fix-punctuation", defaults.Diacritics.FixPunctuation, "Remove the space before sentence-final periods")
	fs.String("diacritics-corpus-format", defaults.Diacritics.CorpusFormat, "Training corpus format (auto|text|jsonl)")
	fs.Int("similarity-epochs", defaults.Similarity.Epochs, "Siamese training epochs")
	fs.Int("similarity-batch-size", defaults.Similarity.BatchSize, "Siamese training batch size")
	fs.Float64("similarity-learning-rate", defaults.Similarity.LearningRate, "Adadelta learning rate")
	fs.Int("similarity-eval-every", defaults.Similarity.EvalEvery, "Evaluate on the validation set every N epochs")
	fs.Uint64("similarity-seed", defaults.Similarity.Seed, "Random seed for weight initialization")
	fs.Int("similarity-max-seq-len", defaults.Similarity.MaxSeqLen, "Embedder input truncation length")
	fs.String("store-backend", defaults.Store.Backend, "Dictionary store backend (file|redis|postgres)")
	fs.String("store-redis-addr", defaults.Store.RedisAddr, "Redis address for the redis store")
	fs.String("store-redis-password", defaults.Store.RedisPassword, "Redis password")
	fs.Int("store-redis-db", defaults.Store.RedisDB, "Redis database number")
	fs.String("store-redis-key", defaults.Store.RedisKey, "Redis key prefix for the dictionary")
	fs.String("store-postgres-dsn", defaults.Store.PostgresDSN, "PostgreSQL DSN for the postgres store")
	fs.String("hub-token", defaults.Hub.Token, "Hugging Face token (falls back to HF_TOKEN)")
	fs.String("hub-cache-dir", defaults.Hub.CacheDir, "Hugging Face download cache directory")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

// flagKeys maps nested config keys to their flag names.
var flagKeys = []struct{ key, flag string }{
	{"paths.diacritics_model_dir", "paths-diacritics-model-dir"},
	{"paths.dictionary_path", "paths-dictionary-path"},
	{"paths.embedder_model_dir", "paths-embedder-model-dir"},
	{"paths.similarity_model_dir", "paths-similarity-model-dir"},
	{"runtime.threads", "runtime-threads"},
	{"runtime.ort_library_path", "runtime-ort-library-path"},
	{"runtime.ort_version", "runtime-ort-version"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.workers", "server-workers"},
	{"server.shutdown_timeout", "server-shutdown-timeout"},
	{"server.max_text_bytes", "server-max-text-bytes"},
	{"server.request_timeout", "server-request-timeout"},
	{"diacritics.max_input_tokens", "diacritics-max-input-tokens"},
	{"diacritics.max_new_tokens", "diacritics-max-new-tokens"},
	{"diacritics.threshold", "diacritics-threshold"},
	{"diacritics.min_count", "diacritics-min-count"},
	{"diacritics.align_to_input", "diacritics-align-to-input"},
	{"diacritics.fix_punctuation", "diacritics-fix-punctuation"},
	{"diacritics.corpus_format", "diacritics-corpus-format"},
	{"similarity.epochs", "similarity-epochs"},
	{"similarity.batch_size", "similarity-batch-size"},
	{"similarity.learning_rate", "similarity-learning-rate"},
	{"similarity.eval_every", "similarity-eval-every"},
	{"similarity.seed", "similarity-seed"},
	{"similarity.max_seq_len", "similarity-max-seq-len"},
	{"store.backend", "store-backend"},
	{"store.redis_addr", "store-redis-addr"},
	{"store.redis_password", "store-redis-password"},
	{"store.redis_db", "store-redis-db"},
	{"store.redis_key", "store-redis-key"},
	{"store.postgres_dsn", "store-postgres-dsn"},
	{"hub.token", "hub-token"},
	{"hub.cache_dir", "hub-cache-dir"},
	{"log_level", "log-level"},
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("RONLP")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "RONLP_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	if err := v.BindEnv("hub.token", "RONLP_HUB_TOKEN", "HF_TOKEN"); err != nil {
		return Config{}, fmt.Errorf("bind hub env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ronlp")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", fk.flag, err)
		}
	}

	// --ort-lib wins over the long form when set explicitly.
	if f := fs.Lookup("ort-lib"); f != nil && f.Changed {
		if err := v.BindPFlag("runtime.ort_library_path", f); err != nil {
			return fmt.Errorf("bind flag %q: %w", "ort-lib", err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.diacritics_model_dir", c.Paths.DiacriticsModelDir)
	v.SetDefault("paths.dictionary_path", c.Paths.DictionaryPath)
	v.SetDefault("paths.embedder_model_dir", c.Paths.EmbedderModelDir)
	v.SetDefault("paths.similarity_model_dir", c.Paths.SimilarityModelDir)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("diacritics.max_input_tokens", c.Diacritics.MaxInputTokens)
	v.SetDefault("diacritics.max_new_tokens", c.Diacritics.MaxNewTokens)
	v.SetDefault("diacritics.threshold", c.Diacritics.Threshold)
	v.SetDefault("diacritics.min_count", c.Diacritics.MinCount)
	v.SetDefault("diacritics.align_to_input", c.Diacritics.AlignToInput)
	v.SetDefault("diacritics.fix_punctuation", c.Diacritics.FixPunctuation)
	v.SetDefault("diacritics.corpus_format", c.Diacritics.CorpusFormat)
	v.SetDefault("similarity.epochs", c.Similarity.Epochs)
	v.SetDefault("similarity.batch_size", c.Similarity.BatchSize)
	v.SetDefault("similarity.learning_rate", c.Similarity.LearningRate)
	v.SetDefault("similarity.eval_every", c.Similarity.EvalEvery)
	v.SetDefault("similarity.seed", c.Similarity.Seed)
	v.SetDefault("similarity.max_seq_len", c.Similarity.MaxSeqLen)
	v.SetDefault("store.backend", c.Store.Backend)
	v.SetDefault("store.redis_addr", c.Store.RedisAddr)
	v.SetDefault("store.redis_password", c.Store.RedisPassword)
	v.SetDefault("store.redis_db", c.Store.RedisDB)
	v.SetDefault("store.redis_key", c.Store.RedisKey)
	v.SetDefault("store.postgres_dsn", c.Store.PostgresDSN)
	v.SetDefault("hub.token", c.Hub.Token)
	v.SetDefault("hub.cache_dir", c.Hub.CacheDir)
	v.SetDefault("log_level", c.LogLevel)
}
