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
	"github.com/gorse-io/gorse-rating/common/parallel"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/juju/errors"
)

// ItemCorrector shifts predictions of each training item by the difference
// between its mean rating and its mean prediction on the training set.
type ItemCorrector struct {
	corrections map[int32]float64
}

// NewItemCorrector learns per-item corrections of a model on a dataset.
func NewItemCorrector(d *dataset.Dataset, predictor Predictor, jobs int) *ItemCorrector {
	itemIds := d.GetItemDict().Ids()
	userIds := d.GetUserDict().Ids()
	corrections := make([]float64, len(itemIds))
	parallel.For(len(itemIds), jobs, func(itemIndex int) {
		users := d.GetItemFeedback()[itemIndex]
		predictionMean := 0.0
		for _, userIndex := range users {
			predictionMean += predictor.Predict(itemIds[itemIndex], userIds[userIndex])
		}
		predictionMean /= float64(len(users))
		corrections[itemIndex] = d.MeanRating(itemIds[itemIndex]) - predictionMean
	})
	corrector := &ItemCorrector{corrections: make(map[int32]float64, len(itemIds))}
	for itemIndex, itemId := range itemIds {
		corrector.corrections[itemId] = corrections[itemIndex]
	}
	return corrector
}

// Correct shifts the prediction of a known item. Unknown items are left unchanged.
func (c *ItemCorrector) Correct(itemId int32, prediction float64) float64 {
	if correction, ok := c.corrections[itemId]; ok {
		return prediction + correction
	}
	return prediction
}

// GlobalCorrector shifts every prediction by the difference between the mean
// rating and the mean prediction on a reference set.
type GlobalCorrector struct {
	correction float64
}

// NewGlobalCorrector learns a global correction on reference ratings. Predictions
// pass through correctors before they are averaged.
func NewGlobalCorrector(reference *dataset.Ratings, predictor Predictor, correctors ...Corrector) (*GlobalCorrector, error) {
	count := 0
	predictionMean, actualMean := 0.0, 0.0
	reference.ForEach(func(itemId int32, rating dataset.Rating) {
		actualMean += float64(rating.Value)
		prediction := predictor.Predict(itemId, rating.UserId)
		for _, corrector := range correctors {
			prediction = corrector.Correct(itemId, prediction)
		}
		predictionMean += prediction
		count++
	})
	if count == 0 {
		return nil, errors.Errorf("no ratings to learn global correction")
	}
	return &GlobalCorrector{correction: (actualMean - predictionMean) / float64(count)}, nil
}

func (c *GlobalCorrector) Correct(_ int32, prediction float64) float64 {
	return prediction + c.correction
}

func (c *GlobalCorrector) Correction() float64 {
	return c.correction
}
