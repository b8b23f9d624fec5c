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
	"math"

	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/juju/errors"
)

// Corrector adjusts a raw prediction for an item.
type Corrector interface {
	Correct(itemId int32, prediction float64) float64
}

// CorrectorFunc adapts a function to a Corrector.
type CorrectorFunc func(itemId int32, prediction float64) float64

func (f CorrectorFunc) Correct(itemId int32, prediction float64) float64 {
	return f(itemId, prediction)
}

type evaluateOptions struct {
	correctors      []Corrector
	nearIntegerDiff float64
}

type EvaluateOption func(options *evaluateOptions)

// WithCorrectors applies correctors to every prediction in the given order.
func WithCorrectors(correctors ...Corrector) EvaluateOption {
	return func(options *evaluateOptions) {
		options.correctors = append(options.correctors, correctors...)
	}
}

// WithNearIntegerRounding snaps truncated predictions within diff of an integer to it.
func WithNearIntegerRounding(diff float64) EvaluateOption {
	return func(options *evaluateOptions) {
		options.nearIntegerDiff = diff
	}
}

// Evaluate returns the mean squared error of a predictor on ratings. Each
// prediction is corrected, truncated to [0, 5] and optionally rounded before it
// is compared with the observed rating.
func Evaluate(predictor Predictor, ratings *dataset.Ratings, opts ...EvaluateOption) (float64, error) {
	options := new(evaluateOptions)
	for _, opt := range opts {
		opt(options)
	}
	count := 0
	sum := 0.0
	ratings.ForEach(func(itemId int32, rating dataset.Rating) {
		count++
		prediction := predictor.Predict(itemId, rating.UserId)
		for _, corrector := range options.correctors {
			prediction = corrector.Correct(itemId, prediction)
		}
		prediction = Truncate(prediction)
		if options.nearIntegerDiff > 0 {
			prediction = NearIntegerRound(prediction, options.nearIntegerDiff)
		}
		diff := float64(rating.Value) - prediction
		sum += diff * diff
	})
	if count == 0 {
		return 0, errors.Errorf("no ratings to evaluate")
	}
	return sum / float64(count), nil
}

// RMSE returns the root of the mean squared error.
func RMSE(predictor Predictor, ratings *dataset.Ratings, opts ...EvaluateOption) (float64, error) {
	mse, err := Evaluate(predictor, ratings, opts...)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return math.Sqrt(mse), nil
}

// NearIntegerRound rounds a non-negative rating to an integer if the distance
// to it is at most diff. Otherwise the rating is returned unchanged.
func NearIntegerRound(rating, diff float64) float64 {
	upper := math.Floor(rating + diff)
	lower := math.Floor(rating - diff)
	current := math.Floor(rating)
	if upper-current == 1 {
		return upper
	} else if current-lower == 1 {
		return current
	}
	return rating
}
