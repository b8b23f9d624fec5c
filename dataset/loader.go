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

package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ListFiles returns rating files in a directory sorted by name. A NotValid error
// is returned if the directory is missing or has no files.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewNotValid(err, fmt.Sprintf("data directory %v", dir))
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, errors.NotValidf("empty data directory %v", dir)
	}
	return files, nil
}

// LoadDir loads every rating file in a directory. Each file holds the ratings of
// one item: the first line starts with "<itemId>:" and each following line is
// "<userId>,<rating>,<date>". onFile, if not nil, is called after each file.
func LoadDir(dir string, onFile func(path string)) (*Ratings, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return LoadFiles(files, onFile)
}

// LoadFiles loads rating files in the given order.
func LoadFiles(files []string, onFile func(path string)) (*Ratings, error) {
	ratings := NewRatings()
	for _, path := range files {
		if err := LoadFile(ratings, path); err != nil {
			return nil, errors.Trace(err)
		}
		if onFile != nil {
			onFile(path)
		}
	}
	log.Logger().Info("load ratings",
		zap.Int("n_files", len(files)),
		zap.Int("n_items", ratings.CountItems()),
		zap.Int("n_ratings", ratings.Count()))
	return ratings, nil
}

// LoadFile appends ratings of a single item file.
func LoadFile(ratings *Ratings, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err = scanner.Err(); err != nil {
			return errors.Trace(err)
		}
		return errors.NotValidf("missing header in %v", path)
	}
	header := strings.TrimSpace(scanner.Text())
	itemId, err := strconv.ParseInt(strings.SplitN(header, ":", 2)[0], 10, 32)
	if err != nil {
		return errors.NewNotValid(err, fmt.Sprintf("item id in %v", path))
	}
	lineNumber := 1
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rating, err := parseRating(line)
		if err != nil {
			return errors.NewNotValid(err, fmt.Sprintf("line %v of %v", lineNumber, path))
		}
		ratings.Add(int32(itemId), rating)
	}
	return errors.Trace(scanner.Err())
}

func parseRating(line string) (Rating, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return Rating{}, errors.Errorf("expect <userId>,<rating>,<date> but got %q", line)
	}
	userId, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return Rating{}, errors.Trace(err)
	}
	value, err := strconv.ParseInt(fields[1], 10, 16)
	if err != nil {
		return Rating{}, errors.Trace(err)
	}
	if value < MinRating || value > MaxRating {
		return Rating{}, errors.Errorf("rating %v out of range [%v, %v]", value, MinRating, MaxRating)
	}
	rating := Rating{UserId: int32(userId), Value: int16(value), Date: strings.TrimSpace(fields[2])}
	if _, err = rating.Time(); err != nil {
		return Rating{}, errors.Annotatef(err, "invalid date %q", rating.Date)
	}
	return rating, nil
}
