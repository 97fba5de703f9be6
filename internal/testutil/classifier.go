package testutil

import (
	"context"
	"sync"

	activity "github.com/turtacn/molscore/internal/intelligence/activity_model"
)

// FixedClassifier returns the same probability for every row and records
// the rows it was given.
type FixedClassifier struct {
	Width int
	Proba float64
	Err   error

	mu   sync.Mutex
	rows [][]float32
}

func (c *FixedClassifier) NumFeatures() int { return c.Width }

func (c *FixedClassifier) PredictProba(_ context.Context, features [][]float32) ([]float64, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	c.rows = append(c.rows, features...)
	c.mu.Unlock()
	out := make([]float64, len(features))
	for i := range out {
		out[i] = c.Proba
	}
	return out, nil
}

// Rows returns every feature row seen so far.
func (c *FixedClassifier) Rows() [][]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]float32(nil), c.rows...)
}

// StaticLoader returns Classifier or Err from Load and counts calls.
type StaticLoader struct {
	Classifier activity.Classifier
	Err        error

	mu        sync.Mutex
	locations []string
}

func (l *StaticLoader) Load(_ context.Context, location string) (activity.Classifier, error) {
	l.mu.Lock()
	l.locations = append(l.locations, location)
	l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Classifier, nil
}

// Locations returns the locations passed to Load.
func (l *StaticLoader) Locations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.locations...)
}
