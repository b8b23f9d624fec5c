// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"

	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModelSVD   = "svd"
	ModelEM    = "em"
	ModelBlend = "blend"
)

// Config is the configuration of a training run.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Train    TrainConfig    `mapstructure:"train"`
	SVD      SVDConfig      `mapstructure:"svd"`
	EM       EMConfig       `mapstructure:"em"`
	Blend    BlendConfig    `mapstructure:"blend"`
	Evaluate EvaluateConfig `mapstructure:"evaluate"`
}

// DataConfig locates the directories of rating files.
type DataConfig struct {
	TrainDir string `mapstructure:"train_dir" validate:"required"`
	TestDir  string `mapstructure:"test_dir" validate:"required"`
}

type TrainConfig struct {
	Jobs   int      `mapstructure:"jobs" validate:"gt=0"`
	Models []string `mapstructure:"models" validate:"required,dive,oneof=svd em blend"`
}

type SVDConfig struct {
	Lr              float64 `mapstructure:"lr" validate:"gt=0"`
	Reg             float64 `mapstructure:"reg" validate:"gte=0"`
	InitValue       float64 `mapstructure:"init_value"`
	FeatureLimit    float64 `mapstructure:"feature_limit" validate:"gt=0"`
	NNonLinear      int     `mapstructure:"n_non_linear" validate:"gte=0"`
	Threshold       float64 `mapstructure:"threshold"`
	MaxEpochs       int     `mapstructure:"max_epochs" validate:"gte=0"`
	MaxFeatures     int     `mapstructure:"max_features" validate:"gte=0"`
	NearIntegerDiff float64 `mapstructure:"near_integer_diff" validate:"gte=0,lt=0.5"`
}

func (c *SVDConfig) GetParams() model.Params {
	return model.Params{
		model.Lr:              c.Lr,
		model.Reg:             c.Reg,
		model.InitValue:       c.InitValue,
		model.FeatureLimit:    c.FeatureLimit,
		model.NNonLinear:      c.NNonLinear,
		model.Threshold:       c.Threshold,
		model.MaxEpochs:       c.MaxEpochs,
		model.MaxFeatures:     c.MaxFeatures,
		model.NearIntegerDiff: c.NearIntegerDiff,
	}
}

type EMConfig struct {
	NGroups         int     `mapstructure:"n_groups" validate:"gt=0"`
	Alpha           float64 `mapstructure:"alpha" validate:"gt=0"`
	LogFloor        float64 `mapstructure:"log_floor" validate:"gt=0"`
	Epsilon         float64 `mapstructure:"epsilon" validate:"gt=0"`
	Threshold       float64 `mapstructure:"threshold"`
	MaxEpochs       int     `mapstructure:"max_epochs" validate:"gte=0"`
	NearIntegerDiff float64 `mapstructure:"near_integer_diff" validate:"gte=0,lt=0.5"`
	RandomState     int64   `mapstructure:"random_state"`
}

func (c *EMConfig) GetParams() model.Params {
	return model.Params{
		model.NGroups:         c.NGroups,
		model.Alpha:           c.Alpha,
		model.LogFloor:        c.LogFloor,
		model.Epsilon:         c.Epsilon,
		model.Threshold:       c.Threshold,
		model.MaxEpochs:       c.MaxEpochs,
		model.NearIntegerDiff: c.NearIntegerDiff,
		model.RandomState:     c.RandomState,
	}
}

type BlendConfig struct {
	Ratio float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

func (c *BlendConfig) GetParams() model.Params {
	return model.Params{model.Ratio: c.Ratio}
}

// EvaluateConfig selects the steps applied to predictions on the test set.
type EvaluateConfig struct {
	ItemCorrection      bool `mapstructure:"item_correction"`
	GlobalCorrection    bool `mapstructure:"global_correction"`
	NearIntegerRounding bool `mapstructure:"near_integer_rounding"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Train: TrainConfig{
			Jobs:   1,
			Models: []string{ModelSVD, ModelEM, ModelBlend},
		},
		SVD: SVDConfig{
			Lr:              0.0004,
			Reg:             0.02,
			InitValue:       0.1,
			FeatureLimit:    22,
			NNonLinear:      12,
			Threshold:       -0.00008,
			NearIntegerDiff: 0.001,
		},
		EM: EMConfig{
			NGroups:         17,
			Alpha:           0.35,
			LogFloor:        24,
			Epsilon:         1e-11,
			Threshold:       0.004,
			NearIntegerDiff: 0.01,
		},
		Blend: BlendConfig{
			Ratio: 0.55,
		},
		Evaluate: EvaluateConfig{
			ItemCorrection:      true,
			GlobalCorrection:    true,
			NearIntegerRounding: true,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.train_dir", defaultConfig.Data.TrainDir)
	v.SetDefault("data.test_dir", defaultConfig.Data.TestDir)
	// [train]
	v.SetDefault("train.jobs", defaultConfig.Train.Jobs)
	v.SetDefault("train.models", defaultConfig.Train.Models)
	// [svd]
	v.SetDefault("svd.lr", defaultConfig.SVD.Lr)
	v.SetDefault("svd.reg", defaultConfig.SVD.Reg)
	v.SetDefault("svd.init_value", defaultConfig.SVD.InitValue)
	v.SetDefault("svd.feature_limit", defaultConfig.SVD.FeatureLimit)
	v.SetDefault("svd.n_non_linear", defaultConfig.SVD.NNonLinear)
	v.SetDefault("svd.threshold", defaultConfig.SVD.Threshold)
	v.SetDefault("svd.max_epochs", defaultConfig.SVD.MaxEpochs)
	v.SetDefault("svd.max_features", defaultConfig.SVD.MaxFeatures)
	v.SetDefault("svd.near_integer_diff", defaultConfig.SVD.NearIntegerDiff)
	// [em]
	v.SetDefault("em.n_groups", defaultConfig.EM.NGroups)
	v.SetDefault("em.alpha", defaultConfig.EM.Alpha)
	v.SetDefault("em.log_floor", defaultConfig.EM.LogFloor)
	v.SetDefault("em.epsilon", defaultConfig.EM.Epsilon)
	v.SetDefault("em.threshold", defaultConfig.EM.Threshold)
	v.SetDefault("em.max_epochs", defaultConfig.EM.MaxEpochs)
	v.SetDefault("em.near_integer_diff", defaultConfig.EM.NearIntegerDiff)
	v.SetDefault("em.random_state", defaultConfig.EM.RandomState)
	// [blend]
	v.SetDefault("blend.ratio", defaultConfig.Blend.Ratio)
	// [evaluate]
	v.SetDefault("evaluate.item_correction", defaultConfig.Evaluate.ItemCorrection)
	v.SetDefault("evaluate.global_correction", defaultConfig.Evaluate.GlobalCorrection)
	v.SetDefault("evaluate.near_integer_rounding", defaultConfig.Evaluate.NearIntegerRounding)
}

type configBinding struct {
	key  string
	env  string
	flag string
}

var bindings = []configBinding{
	{"data.train_dir", "GORSE_TRAIN_DIR", "train-dir"},
	{"data.test_dir", "GORSE_TEST_DIR", "test-dir"},
	{"train.jobs", "GORSE_JOBS", "jobs"},
	{"svd.max_epochs", "GORSE_SVD_MAX_EPOCHS", ""},
	{"svd.max_features", "GORSE_SVD_MAX_FEATURES", ""},
	{"em.max_epochs", "GORSE_EM_MAX_EPOCHS", ""},
	{"em.random_state", "GORSE_EM_RANDOM_STATE", ""},
}

// LoadConfig loads configuration from a toml, yaml or json file. An empty path
// loads defaults only. Environment variables override the file, and flags that
// were set on the command line override both.
func LoadConfig(path string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefault(v)

	// load config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config file %s", path)
		}
	}

	// bind environment variables and flags
	v.SetEnvPrefix("GORSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
		if flagSet != nil && binding.flag != "" {
			if flag := flagSet.Lookup(binding.flag); flag != nil && flag.Changed {
				if err := v.BindPFlag(binding.key, flag); err != nil {
					return nil, errors.Trace(err)
				}
			}
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
