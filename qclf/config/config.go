package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Model     ModelConfig     `mapstructure:"model"`
	Loss      LossConfig      `mapstructure:"loss"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Log       LogConfig       `mapstructure:"log"`
}

// TokenizerConfig selects the subword vocabulary and splitter.
type TokenizerConfig struct {
	VocabPath     string `mapstructure:"vocabPath"`
	Backend       string `mapstructure:"backend"`
	UnknownPolicy string `mapstructure:"unknownPolicy"`
	LowerCase     bool   `mapstructure:"lowerCase"`
}

// EncoderConfig stores the transformer encoder settings.
type EncoderConfig struct {
	Provider          string `mapstructure:"provider"`
	ModelPath         string `mapstructure:"modelPath"`
	HiddenSize        int    `mapstructure:"hiddenSize"`
	NumLayers         int    `mapstructure:"numLayers"`
	ExecutionProvider string `mapstructure:"executionProvider"`
	BatchSize         int    `mapstructure:"batchSize"`
}

// ModelConfig stores the recurrent layer and head settings.
type ModelConfig struct {
	HiddenDim     int    `mapstructure:"hiddenDim"`
	LSTMLayers    int    `mapstructure:"lstmLayers"`
	Bidirectional bool   `mapstructure:"bidirectional"`
	NumLabels     int    `mapstructure:"numLabels"`
	Pooling       string `mapstructure:"pooling"`
	UseSyntax     bool   `mapstructure:"useSyntax"`
	SyntaxVocab   int    `mapstructure:"syntaxVocab"`
	SyntaxDim     int    `mapstructure:"syntaxDim"`
	Seed          int64  `mapstructure:"seed"`
}

// LossConfig controls NLL reduction.
type LossConfig struct {
	// Average divides the summed loss by the number of non-pad label positions.
	Average bool `mapstructure:"average"`
}

// BatchConfig controls batch assembly.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // tokenizer.vocabPath becomes TOKENIZER_VOCABPATH

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tokenizer.vocabPath", internal.DefaultVocabPath)
	v.SetDefault("tokenizer.backend", internal.DefaultTokenizer)
	v.SetDefault("tokenizer.unknownPolicy", internal.DefaultUnknownPolicy)
	v.SetDefault("tokenizer.lowerCase", false)

	v.SetDefault("encoder.provider", internal.DefaultEncoder)
	v.SetDefault("encoder.modelPath", internal.DefaultModelPath)
	v.SetDefault("encoder.hiddenSize", internal.DefaultHiddenSize)
	v.SetDefault("encoder.numLayers", internal.DefaultEncoderLayers)
	v.SetDefault("encoder.executionProvider", "cpu")
	v.SetDefault("encoder.batchSize", internal.DefaultEncoderBatch)

	v.SetDefault("model.hiddenDim", internal.DefaultLSTMHidden)
	v.SetDefault("model.lstmLayers", internal.DefaultLSTMLayers)
	v.SetDefault("model.bidirectional", true)
	v.SetDefault("model.numLabels", internal.DefaultNumLabels)
	v.SetDefault("model.pooling", internal.DefaultPooling)
	v.SetDefault("model.useSyntax", false)
	v.SetDefault("model.syntaxVocab", 0)
	v.SetDefault("model.syntaxDim", internal.DefaultSyntaxDim)
	v.SetDefault("model.seed", internal.DefaultModelSeed)

	v.SetDefault("loss.average", false)
	v.SetDefault("batch.workers", internal.DefaultEncodeWorkers)
	v.SetDefault("log.level", internal.DefaultLogLevel)
}

// Validate rejects settings that cannot produce a working model.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Tokenizer.Backend) {
	case "wordpiece", "sugarme":
	default:
		return fmt.Errorf("invalid tokenizer.backend %q: want wordpiece or sugarme", c.Tokenizer.Backend)
	}
	switch strings.ToLower(c.Tokenizer.UnknownPolicy) {
	case "unk", "error":
	default:
		return fmt.Errorf("invalid tokenizer.unknownPolicy %q: want unk or error", c.Tokenizer.UnknownPolicy)
	}
	switch strings.ToLower(c.Model.Pooling) {
	case "last", "max":
	default:
		return fmt.Errorf("invalid model.pooling %q: want last or max", c.Model.Pooling)
	}
	if c.Encoder.HiddenSize <= 0 {
		return fmt.Errorf("encoder.hiddenSize must be positive, got %d", c.Encoder.HiddenSize)
	}
	if c.Model.HiddenDim <= 0 || c.Model.LSTMLayers <= 0 {
		return fmt.Errorf("model.hiddenDim and model.lstmLayers must be positive")
	}
	if c.Model.NumLabels <= 0 {
		return fmt.Errorf("model.numLabels must be positive, got %d", c.Model.NumLabels)
	}
	if c.Model.UseSyntax && (c.Model.SyntaxVocab <= 0 || c.Model.SyntaxDim <= 0) {
		return fmt.Errorf("model.useSyntax requires positive model.syntaxVocab and model.syntaxDim")
	}
	return nil
}
