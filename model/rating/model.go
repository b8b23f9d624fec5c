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

package rating

import (
	"context"
	"math"
	"reflect"

	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
)

// Score summarizes a training run.
type Score struct {
	Loss     float64 // mean squared error on the training set
	Epochs   int     // number of passes over the training set
	Features int     // number of latent features, SVD only
}

type FitConfig struct {
	Jobs int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Jobs: 1}
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

// Predictor predicts the rating of an item by a user.
type Predictor interface {
	// Predict returns a rating in [0, 5]. It has no side effects.
	Predict(itemId, userId int32) float64
}

// Model is a rating predictor trained on a dataset.
type Model interface {
	model.Model
	Predictor
	// Fit trains the model on its dataset. Calling Fit again retrains from scratch.
	Fit(ctx context.Context, config *FitConfig) (Score, error)
	// GetDataset returns the training dataset.
	GetDataset() *dataset.Dataset
	// GetNearIntegerDiff returns the tolerance of near-integer rounding for this model.
	GetNearIntegerDiff() float64
	// Invalid returns true if the model has not been fitted.
	Invalid() bool
}

func GetModelName(m Model) string {
	switch m.(type) {
	case *SVD:
		return "svd"
	case *EM:
		return "em"
	case *Blend:
		return "blend"
	default:
		return reflect.TypeOf(m).String()
	}
}

func Truncate(prediction float64) float64 {
	if prediction > dataset.MaxRating {
		return dataset.MaxRating
	} else if prediction < dataset.MinRating {
		return dataset.MinRating
	}
	return prediction
}

// improved returns true if the loss went down by more than the threshold. A loop
// always continues if there is no previous loss.
func improved(previous, current, threshold float64) bool {
	if math.IsNaN(previous) {
		return true
	}
	return current-previous < threshold
}
