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
	"time"

	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/base/progress"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// SVD is the incremental matrix factorization popularized by Simon Funk during
// the Netflix Prize. Latent features are trained one at a time by SGD:
//
//	p_{uk} += lr * (e_{ui} q_{ik} - reg p_{uk})
//	q_{ik} += lr * (e_{ui} p_{uk} - reg q_{ik})
//
// until the training loss stops improving, then the next feature is added. The
// prediction is
//
//	\hat{r}_{ui} = \sum_k f_k(p_{uk} q_{ik})
//
// where f_k is a shifted sigmoid for the first NNonLinear features and the
// identity for the rest. Contributions of finished features are cached for every
// training pair. Unknown users or items fall back to the shrunk item mean plus the
// shrunk user offset.
//
// Hyper-parameters:
//
//	Lr              - The learning rate of SGD. Default is 0.0004.
//	Reg             - The regularization strength. Default is 0.02.
//	InitValue       - The initial value of a new feature. Default is 0.1.
//	FeatureLimit    - Feature values are clamped to [-limit, limit]. Default is 22.
//	NNonLinear      - The number of features passed through the sigmoid. Default is 12.
//	Threshold       - A loop continues while the loss changes by less than it. Default is -0.00008.
//	MaxEpochs       - The maximum number of epochs per feature, 0 for no limit. Default is 0.
//	MaxFeatures     - The maximum number of features, 0 for no limit. Default is 0.
//	NearIntegerDiff - The tolerance of near-integer rounding. Default is 0.001.
type SVD struct {
	model.BaseModel
	dataset *dataset.Dataset
	// Model parameters
	UserFactor [][]float64 // p_u
	ItemFactor [][]float64 // q_i
	// Partial predictions of training pairs, aligned with item feedback
	cache             [][]float64
	cachePosition     []map[int32]int
	currentFeature    int
	lastCachedFeature int
	epochs            int
	// Hyper parameters
	lr              float64
	reg             float64
	initValue       float64
	featureLimit    float64
	nNonLinear      int
	threshold       float64
	maxEpochs       int
	maxFeatures     int
	nearIntegerDiff float64
}

// NewSVD creates a SVD model on a dataset.
func NewSVD(d *dataset.Dataset, params model.Params) *SVD {
	svd := &SVD{dataset: d, currentFeature: -1, lastCachedFeature: -1}
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters of the SVD model.
func (svd *SVD) SetParams(params model.Params) {
	svd.BaseModel.SetParams(params)
	svd.lr = svd.Params.GetFloat64(model.Lr, 0.0004)
	svd.reg = svd.Params.GetFloat64(model.Reg, 0.02)
	svd.initValue = svd.Params.GetFloat64(model.InitValue, 0.1)
	svd.featureLimit = svd.Params.GetFloat64(model.FeatureLimit, 22)
	svd.nNonLinear = svd.Params.GetInt(model.NNonLinear, 12)
	svd.threshold = svd.Params.GetFloat64(model.Threshold, -0.00008)
	svd.maxEpochs = svd.Params.GetInt(model.MaxEpochs, 0)
	svd.maxFeatures = svd.Params.GetInt(model.MaxFeatures, 0)
	svd.nearIntegerDiff = svd.Params.GetFloat64(model.NearIntegerDiff, 0.001)
}

func (svd *SVD) GetDataset() *dataset.Dataset {
	return svd.dataset
}

func (svd *SVD) GetNearIntegerDiff() float64 {
	return svd.nearIntegerDiff
}

func (svd *SVD) Invalid() bool {
	return svd == nil || svd.currentFeature < 0
}

// Epochs returns the number of sweeps run by the last Fit.
func (svd *SVD) Epochs() int {
	return svd.epochs
}

// CountFeatures returns the number of latent features trained so far.
func (svd *SVD) CountFeatures() int {
	return svd.currentFeature + 1
}

// Predict the rating given by a user to an item.
func (svd *SVD) Predict(itemId, userId int32) float64 {
	itemIndex := svd.dataset.GetItemDict().Id(itemId)
	userIndex := svd.dataset.GetUserDict().Id(userId)
	if itemIndex < 0 || userIndex < 0 || svd.cachePosition == nil {
		return Truncate(svd.dataset.Baseline(itemId, userId))
	}
	if position, ok := svd.cachePosition[itemIndex][userIndex]; ok {
		return svd.predictCached(itemIndex, userIndex, position)
	}
	// known user and item that never met in the training set
	prediction := 0.0
	for k := 0; k <= svd.currentFeature; k++ {
		prediction += svd.contribution(k, itemIndex, userIndex)
	}
	return Truncate(prediction)
}

func (svd *SVD) predictCached(itemIndex, userIndex int32, position int) float64 {
	prediction := svd.cache[itemIndex][position]
	if svd.currentFeature > svd.lastCachedFeature {
		prediction += svd.contribution(svd.currentFeature, itemIndex, userIndex)
	}
	return Truncate(prediction)
}

func (svd *SVD) contribution(k int, itemIndex, userIndex int32) float64 {
	product := svd.UserFactor[userIndex][k] * svd.ItemFactor[itemIndex][k]
	if k < svd.nNonLinear {
		return Sigmoid(product)
	}
	return product
}

func (svd *SVD) limit(x float64) float64 {
	if x > svd.featureLimit {
		return svd.featureLimit
	} else if x < -svd.featureLimit {
		return -svd.featureLimit
	}
	return x
}

// Init clears latent features and the prediction cache.
func (svd *SVD) Init() {
	svd.UserFactor = make([][]float64, svd.dataset.CountUsers())
	svd.ItemFactor = make([][]float64, svd.dataset.CountItems())
	svd.cache = make([][]float64, svd.dataset.CountItems())
	svd.cachePosition = make([]map[int32]int, svd.dataset.CountItems())
	for itemIndex, users := range svd.dataset.GetItemFeedback() {
		svd.cache[itemIndex] = make([]float64, len(users))
		svd.cachePosition[itemIndex] = make(map[int32]int, len(users))
		for position, userIndex := range users {
			if _, exist := svd.cachePosition[itemIndex][userIndex]; !exist {
				svd.cachePosition[itemIndex][userIndex] = position
			}
		}
	}
	svd.currentFeature = -1
	svd.lastCachedFeature = -1
	svd.epochs = 0
}

// Fit the SVD model. Features are added until the loss of a new feature is not
// better than the loss of the previous one by more than the threshold.
func (svd *SVD) Fit(ctx context.Context, _ *FitConfig) (Score, error) {
	log.Logger().Info("fit svd",
		zap.Int("n_users", svd.dataset.CountUsers()),
		zap.Int("n_items", svd.dataset.CountItems()),
		zap.Int("n_ratings", svd.dataset.CountRatings()),
		zap.Any("params", svd.GetParams()))
	if svd.dataset.CountRatings() == 0 {
		return Score{}, errors.NotValidf("empty training set")
	}
	svd.Init()
	start := time.Now()
	ctx, span := progress.Start(ctx, "SVD.Fit", svd.maxFeatures)
	score := Score{Loss: math.NaN()}
	for {
		if svd.maxFeatures > 0 && svd.CountFeatures() >= svd.maxFeatures {
			log.Logger().Warn("svd stopped before convergence",
				zap.Int("max_features", svd.maxFeatures),
				zap.Float64("loss", score.Loss))
			break
		}
		svd.addFeature()
		previousLoss := score.Loss
		loss, epochs, err := svd.fitFeature(ctx)
		if err != nil {
			span.Fail(err)
			return Score{}, errors.Trace(err)
		}
		svd.updateCache()
		score.Loss = loss
		score.Epochs += epochs
		svd.epochs = score.Epochs
		span.Add(1)
		log.Logger().Debug("fit svd feature",
			zap.Int("feature", svd.currentFeature),
			zap.Int("epochs", epochs),
			zap.Float64("loss", loss))
		if !improved(previousLoss, loss, svd.threshold) {
			break
		}
	}
	span.End()
	score.Features = svd.CountFeatures()
	log.Logger().Info("fit svd complete",
		zap.Int("n_features", score.Features),
		zap.Int("n_epochs", score.Epochs),
		zap.Float64("loss", score.Loss),
		log.Elapsed(start))
	return score, nil
}

func (svd *SVD) addFeature() {
	svd.currentFeature++
	for i := range svd.UserFactor {
		svd.UserFactor[i] = append(svd.UserFactor[i], svd.initValue)
	}
	for i := range svd.ItemFactor {
		svd.ItemFactor[i] = append(svd.ItemFactor[i], svd.initValue)
	}
}

// fitFeature trains the current feature until the loss stops improving.
func (svd *SVD) fitFeature(ctx context.Context) (float64, int, error) {
	k := svd.currentFeature
	itemIds := svd.dataset.GetItemDict().Ids()
	userIds := svd.dataset.GetUserDict().Ids()
	_, span := progress.Start(ctx, "SVD.fitFeature", svd.maxEpochs)
	defer span.End()
	loss := math.NaN()
	for epoch := 1; ; epoch++ {
		previousLoss := loss
		for itemIndex, users := range svd.dataset.GetItemFeedback() {
			values := svd.dataset.GetItemValues()[itemIndex]
			for position, userIndex := range users {
				var prediction float64
				if k == 0 && math.IsNaN(loss) {
					// the first feature carries no information yet
					prediction = Truncate(svd.dataset.Baseline(itemIds[itemIndex], userIds[userIndex]))
				} else {
					prediction = svd.predictCached(int32(itemIndex), userIndex, position)
				}
				diff := values[position] - prediction
				userFeature := svd.UserFactor[userIndex][k]
				itemFeature := svd.ItemFactor[itemIndex][k]
				svd.UserFactor[userIndex][k] = svd.limit(userFeature + svd.lr*(diff*itemFeature-svd.reg*userFeature))
				svd.ItemFactor[itemIndex][k] = svd.limit(itemFeature + svd.lr*(diff*userFeature-svd.reg*itemFeature))
			}
		}
		var err error
		loss, err = Evaluate(svd, svd.dataset.GetRatings())
		if err != nil {
			return 0, epoch, errors.Trace(err)
		}
		span.Add(1)
		log.Logger().Debug("fit svd epoch",
			zap.Int("feature", k),
			zap.Int("epoch", epoch),
			zap.Float64("loss", loss))
		if !improved(previousLoss, loss, svd.threshold) {
			return loss, epoch, nil
		}
		if svd.maxEpochs > 0 && epoch >= svd.maxEpochs {
			log.Logger().Warn("svd feature stopped before convergence",
				zap.Int("feature", k),
				zap.Int("max_epochs", svd.maxEpochs),
				zap.Float64("loss", loss))
			return loss, epoch, nil
		}
	}
}

// updateCache folds the contribution of the current feature into the cache.
func (svd *SVD) updateCache() {
	k := svd.currentFeature
	for itemIndex, users := range svd.dataset.GetItemFeedback() {
		for position, userIndex := range users {
			svd.cache[itemIndex][position] += svd.contribution(k, int32(itemIndex), userIndex)
		}
	}
	svd.lastCachedFeature = k
}
