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
	"testing"

	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

var boundedSVDParams = model.Params{
	model.MaxEpochs:   100,
	model.MaxFeatures: 4,
}

func TestSVD_Fit(t *testing.T) {
	d := newSyntheticDataset(20, 30, 0)
	svd := NewSVD(d, boundedSVDParams)
	assert.True(t, svd.Invalid())
	score, err := svd.Fit(context.Background(), NewFitConfig())
	assert.NoError(t, err)
	assert.False(t, svd.Invalid())
	assert.LessOrEqual(t, score.Features, 4)
	assert.Equal(t, score.Features, svd.CountFeatures())
	assert.Equal(t, score.Epochs, svd.Epochs())
	assert.GreaterOrEqual(t, score.Epochs, 2)
	loss, err := Evaluate(svd, d.GetRatings())
	assert.NoError(t, err)
	assert.Equal(t, score.Loss, loss)

	// predictions of training pairs are bounded
	d.GetRatings().ForEach(func(itemId int32, rating dataset.Rating) {
		prediction := svd.Predict(itemId, rating.UserId)
		assert.GreaterOrEqual(t, prediction, 0.0)
		assert.LessOrEqual(t, prediction, 5.0)
	})
}

func TestSVD_CachedPrediction(t *testing.T) {
	d := newSyntheticDataset(10, 10, 1)
	svd := NewSVD(d, boundedSVDParams)
	_, err := svd.Fit(context.Background(), NewFitConfig())
	assert.NoError(t, err)
	for itemIndex, itemId := range d.GetItemDict().Ids() {
		for userIndex, userId := range d.GetUserDict().Ids() {
			expected := 0.0
			for k := 0; k < svd.CountFeatures(); k++ {
				expected += Sigmoid(svd.UserFactor[userIndex][k] * svd.ItemFactor[itemIndex][k])
			}
			assert.InDelta(t, Truncate(expected), svd.Predict(itemId, userId), 1e-9)
		}
	}
}

func TestSVD_Unknown(t *testing.T) {
	d := newSyntheticDataset(10, 10, 0)
	svd := NewSVD(d, boundedSVDParams)
	// unfitted models fall back to the baseline
	assert.Equal(t, Truncate(d.Baseline(1, 1)), svd.Predict(1, 1))
	_, err := svd.Fit(context.Background(), NewFitConfig())
	assert.NoError(t, err)
	assert.Equal(t, Truncate(d.Baseline(100, 1)), svd.Predict(100, 1))
	assert.Equal(t, Truncate(d.Baseline(1, 100)), svd.Predict(1, 100))
	assert.Equal(t, Truncate(d.Baseline(100, 100)), svd.Predict(100, 100))
}

func TestSVD_FeatureLimit(t *testing.T) {
	d := newSyntheticDataset(10, 10, 0)
	svd := NewSVD(d, model.Params{
		model.Lr:           0.5,
		model.FeatureLimit: 0.5,
		model.MaxEpochs:    20,
		model.MaxFeatures:  3,
	})
	_, err := svd.Fit(context.Background(), NewFitConfig())
	assert.NoError(t, err)
	for _, factor := range append(svd.UserFactor, svd.ItemFactor...) {
		for _, value := range factor {
			assert.LessOrEqual(t, math.Abs(value), 0.5)
		}
	}
}

func TestSVD_ConstantRatings(t *testing.T) {
	ratings := dataset.NewRatings()
	for itemId := int32(1); itemId <= 5; itemId++ {
		for userId := int32(1); userId <= 5; userId++ {
			ratings.Add(itemId, dataset.Rating{UserId: userId, Value: 3})
		}
	}
	d := dataset.NewDataset(ratings)
	// no safety bounds: the stopping rule alone must end training
	svd := NewSVD(d, nil)
	score, err := svd.Fit(context.Background(), NewFitConfig())
	assert.NoError(t, err)
	assert.Greater(t, score.Features, 12)
	assert.Less(t, score.Epochs, 10000)
	assert.Less(t, score.Loss, 1e-3)
	assert.InDelta(t, 3.0, svd.Predict(1, 1), 0.05)
	for _, factor := range append(svd.UserFactor, svd.ItemFactor...) {
		for _, value := range factor {
			assert.LessOrEqual(t, math.Abs(value), 22.0)
		}
	}
}

func TestSVD_Refit(t *testing.T) {
	d := newSyntheticDataset(10, 10, 0)
	svd := NewSVD(d, boundedSVDParams)
	first, err := svd.Fit(context.Background(), NewFitConfig())
	assert.NoError(t, err)
	second, err := svd.Fit(context.Background(), NewFitConfig())
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSVD_Empty(t *testing.T) {
	svd := NewSVD(dataset.NewDataset(dataset.NewRatings()), nil)
	_, err := svd.Fit(context.Background(), NewFitConfig())
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.True(t, svd.Invalid())
}
