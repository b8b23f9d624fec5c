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

	"github.com/samber/lo"
)

// Sigmoid is the logistic function shifted to be zero at the origin.
func Sigmoid(x float64) float64 {
	return 1.0/(1+math.Exp(-x)) - 0.5
}

// LogNormalPdf returns the log density of x under a normal distribution. It is
// zero if the variance is zero.
func LogNormalPdf(x, mean, variance float64) float64 {
	if variance == 0 {
		return 0
	}
	diff := x - mean
	return -0.5*math.Log(2*math.Pi) - 0.5*math.Log(variance) - diff*diff/(2*variance)
}

// Softmax turns log-scores into probabilities in place. Scores are shifted by
// their maximum before exponentiation; a score more than logFloor below the
// maximum becomes epsilon instead.
func Softmax(scores []float64, logFloor, epsilon float64) {
	if len(scores) == 0 {
		return
	}
	maxScore := lo.Max(scores)
	if math.IsInf(maxScore, -1) {
		// every group has zero weight
		for i := range scores {
			scores[i] = 1 / float64(len(scores))
		}
		return
	}
	sum := 0.0
	for i := range scores {
		if diff := scores[i] - maxScore; diff < -logFloor {
			scores[i] = epsilon
		} else {
			scores[i] = math.Exp(diff)
		}
		sum += scores[i]
	}
	for i := range scores {
		scores[i] /= sum
	}
}
