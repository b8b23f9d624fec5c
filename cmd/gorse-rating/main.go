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

package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/base/progress"
	"github.com/gorse-io/gorse-rating/cmd/version"
	"github.com/gorse-io/gorse-rating/config"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model/rating"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ratingCommand = &cobra.Command{
	Use:   "gorse-rating",
	Short: "Train rating predictors and evaluate them on a test set.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}

		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		// load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		conf, err := config.LoadConfig(configPath, cmd.PersistentFlags())
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}

		summary, _ := cmd.PersistentFlags().GetBool("summary")
		if err = run(cmd.Context(), conf, os.Stdout, summary); err != nil {
			log.Logger().Fatal("failed to train models", zap.Error(err))
		}
	},
}

func init() {
	log.AddFlags(ratingCommand.PersistentFlags())
	ratingCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	ratingCommand.PersistentFlags().BoolP("version", "v", false, "gorse-rating version")
	ratingCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	ratingCommand.PersistentFlags().String("train-dir", "", "directory of training rating files")
	ratingCommand.PersistentFlags().String("test-dir", "", "directory of test rating files")
	ratingCommand.PersistentFlags().Int("jobs", 1, "number of working jobs")
	ratingCommand.PersistentFlags().Bool("summary", false, "print a summary table of all models")
}

func main() {
	if err := ratingCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

// result of a trained model on the test set
type result struct {
	name     string
	score    rating.Score
	mse      float64
	duration time.Duration
}

func run(ctx context.Context, conf *config.Config, out io.Writer, summary bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	trainRatings, err := loadRatings(conf.Data.TrainDir, "training set")
	if err != nil {
		return errors.Trace(err)
	}
	trainSet := dataset.NewDataset(trainRatings)
	testRatings, err := loadRatings(conf.Data.TestDir, "test set")
	if err != nil {
		return errors.Trace(err)
	}

	tracer := progress.NewTracer("gorse-rating")
	fitConfig := rating.NewFitConfig().SetJobs(conf.Train.Jobs)
	trained := make(map[string]rating.Model)
	var results []result
	for _, name := range conf.Train.Models {
		var m rating.Model
		switch name {
		case config.ModelSVD:
			m = rating.NewSVD(trainSet, conf.SVD.GetParams())
		case config.ModelEM:
			m = rating.NewEM(trainSet, conf.EM.GetParams())
		case config.ModelBlend:
			m = rating.NewBlend(trained[config.ModelSVD], trained[config.ModelEM], conf.Blend.GetParams())
		default:
			return errors.NotSupportedf("model %v", name)
		}
		modelStart := time.Now()
		spanCtx, span := tracer.Start(ctx, name, 1)
		score, err := m.Fit(spanCtx, fitConfig)
		if err != nil {
			span.Fail(err)
			return errors.Annotatef(err, "failed to fit %v", name)
		}
		span.End()
		trained[name] = m

		mse, err := evaluate(conf, m, testRatings)
		if err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("evaluate model",
			zap.String("model", rating.GetModelName(m)),
			zap.Float64("mse", mse),
			log.Elapsed(modelStart))
		_, _ = fmt.Fprintf(out, "RMSE:\t%v\n", mse)
		results = append(results, result{name: rating.GetModelName(m), score: score, mse: mse, duration: time.Since(modelStart)})
	}
	for _, p := range tracer.List() {
		log.Logger().Debug("training progress",
			zap.String("model", p.Name),
			zap.String("status", string(p.Status)),
			zap.Duration("duration", p.FinishTime.Sub(p.StartTime)))
	}
	if summary {
		if err = printSummary(out, results); err != nil {
			return errors.Trace(err)
		}
	}
	_, _ = fmt.Fprintf(out, "Duration: %d sec.\n", int(time.Since(start).Seconds()))
	return nil
}

func loadRatings(dir, description string) (*dataset.Ratings, error) {
	files, err := dataset.ListFiles(dir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Loading "+description),
		progressbar.OptionShowCount())
	ratings, err := dataset.LoadFiles(files, func(string) { _ = bar.Add(1) })
	if err != nil {
		return nil, errors.Trace(err)
	}
	_ = bar.Finish()
	return ratings, nil
}

// evaluate corrects predictions by the item corrector learned on the training
// set, then by the global corrector learned on the test set, and returns the
// mean squared error.
func evaluate(conf *config.Config, m rating.Model, testRatings *dataset.Ratings) (float64, error) {
	var correctors []rating.Corrector
	if conf.Evaluate.ItemCorrection {
		correctors = append(correctors, rating.NewItemCorrector(m.GetDataset(), m, conf.Train.Jobs))
	}
	if conf.Evaluate.GlobalCorrection {
		globalCorrector, err := rating.NewGlobalCorrector(testRatings, m, correctors...)
		if err != nil {
			return 0, errors.Trace(err)
		}
		correctors = append(correctors, globalCorrector)
	}
	opts := []rating.EvaluateOption{rating.WithCorrectors(correctors...)}
	if conf.Evaluate.NearIntegerRounding {
		opts = append(opts, rating.WithNearIntegerRounding(m.GetNearIntegerDiff()))
	}
	return rating.Evaluate(m, testRatings, opts...)
}

func printSummary(out io.Writer, results []result) error {
	table := tablewriter.NewWriter(out)
	table.Header("Model", "MSE", "RMSE", "Loss", "Epochs", "Features", "Time")
	rows := lo.Map(results, func(r result, _ int) []string {
		return []string{
			r.name,
			fmt.Sprintf("%.5f", r.mse),
			fmt.Sprintf("%.5f", math.Sqrt(r.mse)),
			fmt.Sprintf("%.5f", r.score.Loss),
			fmt.Sprint(r.score.Epochs),
			fmt.Sprint(r.score.Features),
			r.duration.Round(time.Millisecond).String(),
		}
	})
	if err := table.Bulk(rows); err != nil {
		return errors.Trace(err)
	}
	return table.Render()
}
