// Package model provides fitted-state tracking and estimator interfaces.
package model

import (
	"sync"

	lperrors "github.com/YuminosukeSato/listingprep/pkg/errors"
)

// StateManager manages the fitted state of a stage in a thread-safe manner.
// Stages embed it by pointer instead of BaseEstimator when concurrent
// Transform calls must observe a consistent state.
type StateManager struct {
	mu     sync.RWMutex
	fitted bool

	nFeatures int
	nSamples  int
	columns   []string
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the stage has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the stage as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
	s.columns = nil
}

// SetDimensions sets the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// SetColumns records the input schema seen during fitting.
func (s *StateManager) SetColumns(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = append([]string(nil), names...)
}

// Columns returns the input schema seen during fitting.
func (s *StateManager) Columns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.columns...)
}

// RequireFitted returns a NotFittedError naming the stage and method if the
// stage has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return lperrors.NewNotFittedError(modelName, method)
	}
	return nil
}

// ModelState represents the complete state of a stage for debugging.
type ModelState struct {
	Fitted    bool     `json:"fitted"`
	NFeatures int      `json:"n_features,omitempty"`
	NSamples  int      `json:"n_samples,omitempty"`
	Columns   []string `json:"columns,omitempty"`
}

// GetState returns the current state as a ModelState struct.
func (s *StateManager) GetState() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ModelState{
		Fitted:    s.fitted,
		NFeatures: s.nFeatures,
		NSamples:  s.nSamples,
		Columns:   append([]string(nil), s.columns...),
	}
}

// WithStateMut executes fn with the state locked for writing.
func (s *StateManager) WithStateMut(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
