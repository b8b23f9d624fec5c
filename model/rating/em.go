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
	"github.com/gorse-io/gorse-rating/common/parallel"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// EM is a latent class model trained by Expectation-Maximization. Every item
// belongs to one of NGroups hidden groups with probability q_{gm}, and the
// ratings of user u on items of group g follow N(mean_{gu}, variance_{gu}). The
// prediction is
//
//	\hat{r}_{um} = \sum_g q_{gm} mean_{gu}
//
// Hyper-parameters:
//
//	NGroups         - The number of latent groups. Default is 17.
//	Alpha           - The additive smoothing of the M-step. Default is 0.35.
//	LogFloor        - Log-scores further below the maximum are floored in the E-step. Default is 24.
//	Epsilon         - The value of floored terms. Default is 1e-11.
//	Threshold       - Training continues while the loss decreases by more than it. Default is 0.004.
//	MaxEpochs       - The maximum number of E/M iterations, 0 for no limit. Default is 0.
//	NearIntegerDiff - The tolerance of near-integer rounding. Default is 0.01.
//	RandomState     - The seed of initial memberships. Default is 0.
type EM struct {
	model.BaseModel
	dataset *dataset.Dataset
	// Model parameters
	Membership [][]float64 // q_{gm}, indexed by group then item index
	Mean       [][]float64 // indexed by group then user index
	Variance   [][]float64 // indexed by group then user index
	epochs     int
	// Hyper parameters
	nGroups         int
	alpha           float64
	logFloor        float64
	epsilon         float64
	threshold       float64
	maxEpochs       int
	nearIntegerDiff float64
}

// NewEM creates an EM model on a dataset.
func NewEM(d *dataset.Dataset, params model.Params) *EM {
	em := &EM{dataset: d}
	em.SetParams(params)
	return em
}

// SetParams sets hyper-parameters of the EM model.
func (em *EM) SetParams(params model.Params) {
	em.BaseModel.SetParams(params)
	em.nGroups = em.Params.GetInt(model.NGroups, 17)
	em.alpha = em.Params.GetFloat64(model.Alpha, 0.35)
	em.logFloor = em.Params.GetFloat64(model.LogFloor, 24)
	em.epsilon = em.Params.GetFloat64(model.Epsilon, 1e-11)
	em.threshold = em.Params.GetFloat64(model.Threshold, 0.004)
	em.maxEpochs = em.Params.GetInt(model.MaxEpochs, 0)
	em.nearIntegerDiff = em.Params.GetFloat64(model.NearIntegerDiff, 0.01)
}

func (em *EM) GetDataset() *dataset.Dataset {
	return em.dataset
}

func (em *EM) GetNearIntegerDiff() float64 {
	return em.nearIntegerDiff
}

func (em *EM) Invalid() bool {
	return em == nil || em.Membership == nil || em.Mean == nil
}

// Epochs returns the number of E/M iterations run by the last Fit.
func (em *EM) Epochs() int {
	return em.epochs
}

// Predict the rating given by a user to an item.
func (em *EM) Predict(itemId, userId int32) float64 {
	itemIndex := em.dataset.GetItemDict().Id(itemId)
	userIndex := em.dataset.GetUserDict().Id(userId)
	if itemIndex < 0 || userIndex < 0 || em.Invalid() {
		return Truncate(em.dataset.Baseline(itemId, userId))
	}
	prediction := 0.0
	for g := 0; g < em.nGroups; g++ {
		prediction += em.Membership[g][itemIndex] * em.Mean[g][userIndex]
	}
	return Truncate(prediction)
}

// Init draws random memberships. Each item's memberships are normalized to sum
// to one, and zero draws stay zero.
func (em *EM) Init() {
	nItems := em.dataset.CountItems()
	nUsers := em.dataset.CountUsers()
	draws := em.GetRandomGenerator().UniformMatrix64(nItems, em.nGroups, 0, 1)
	em.Membership = make([][]float64, em.nGroups)
	em.Mean = make([][]float64, em.nGroups)
	em.Variance = make([][]float64, em.nGroups)
	for g := 0; g < em.nGroups; g++ {
		em.Membership[g] = make([]float64, nItems)
		em.Mean[g] = make([]float64, nUsers)
		em.Variance[g] = make([]float64, nUsers)
	}
	for itemIndex, weights := range draws {
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		for g, w := range weights {
			if w != 0 {
				em.Membership[g][itemIndex] = w / sum
			}
		}
	}
	em.epochs = 0
}

// Fit the EM model. An M-step alone yields the initial loss, then E/M iterations
// run while the loss decreases by more than the threshold.
func (em *EM) Fit(ctx context.Context, config *FitConfig) (Score, error) {
	if config == nil {
		config = NewFitConfig()
	}
	log.Logger().Info("fit em",
		zap.Int("n_users", em.dataset.CountUsers()),
		zap.Int("n_items", em.dataset.CountItems()),
		zap.Int("n_ratings", em.dataset.CountRatings()),
		zap.Int("n_jobs", config.Jobs),
		zap.Any("params", em.GetParams()))
	if em.dataset.CountRatings() == 0 {
		return Score{}, errors.NotValidf("empty training set")
	}
	start := time.Now()
	em.Init()
	_, span := progress.Start(ctx, "EM.Fit", em.maxEpochs)
	em.mStep(config.Jobs)
	loss, err := Evaluate(em, em.dataset.GetRatings())
	if err != nil {
		span.Fail(err)
		return Score{}, errors.Trace(err)
	}
	log.Logger().Debug("fit em epoch", zap.Int("epoch", 0), zap.Float64("loss", loss))
	previousLoss := math.NaN()
	for math.IsNaN(previousLoss) || previousLoss-loss > em.threshold {
		if em.maxEpochs > 0 && em.epochs >= em.maxEpochs {
			log.Logger().Warn("em stopped before convergence",
				zap.Int("max_epochs", em.maxEpochs),
				zap.Float64("loss", loss))
			break
		}
		previousLoss = loss
		em.eStep(config.Jobs)
		em.mStep(config.Jobs)
		loss, err = Evaluate(em, em.dataset.GetRatings())
		if err != nil {
			span.Fail(err)
			return Score{}, errors.Trace(err)
		}
		em.epochs++
		span.Add(1)
		log.Logger().Debug("fit em epoch", zap.Int("epoch", em.epochs), zap.Float64("loss", loss))
	}
	span.End()
	log.Logger().Info("fit em complete",
		zap.Int("n_epochs", em.epochs),
		zap.Float64("loss", loss),
		log.Elapsed(start))
	return Score{Loss: loss, Epochs: em.epochs}, nil
}

// eStep updates memberships of every item from current Gaussian parameters.
func (em *EM) eStep(jobs int) {
	itemFeedback := em.dataset.GetItemFeedback()
	itemValues := em.dataset.GetItemValues()
	parallel.For(len(itemFeedback), jobs, func(itemIndex int) {
		scores := make([]float64, em.nGroups)
		for g := 0; g < em.nGroups; g++ {
			scores[g] = math.Log(em.Membership[g][itemIndex])
			for i, userIndex := range itemFeedback[itemIndex] {
				scores[g] += LogNormalPdf(itemValues[itemIndex][i], em.Mean[g][userIndex], em.Variance[g][userIndex])
			}
		}
		Softmax(scores, em.logFloor, em.epsilon)
		for g := 0; g < em.nGroups; g++ {
			em.Membership[g][itemIndex] = scores[g]
		}
	})
}

// mStep updates the smoothed mean and variance of every user in every group.
func (em *EM) mStep(jobs int) {
	userFeedback := em.dataset.GetUserFeedback()
	userValues := em.dataset.GetUserValues()
	parallel.For(len(userFeedback), jobs, func(userIndex int) {
		items := userFeedback[userIndex]
		values := userValues[userIndex]
		smoothing := em.alpha * float64(len(items))
		for g := 0; g < em.nGroups; g++ {
			numerator, denominator := 0.0, 0.0
			for i, itemIndex := range items {
				weight := em.Membership[g][itemIndex]
				denominator += weight
				numerator += weight * values[i]
			}
			mean := (numerator + em.alpha) / (denominator + smoothing)
			numerator = 0
			for i, itemIndex := range items {
				diff := values[i] - mean
				numerator += em.Membership[g][itemIndex] * diff * diff
			}
			em.Mean[g][userIndex] = mean
			em.Variance[g][userIndex] = (numerator + em.alpha) / (denominator + smoothing)
		}
	})
}
