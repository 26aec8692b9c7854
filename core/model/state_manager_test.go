package model

import (
	"sync"
	"testing"

	lperrors "github.com/YuminosukeSato/listingprep/pkg/errors"
)

func TestStateManager_Lifecycle(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("Preprocessor", "Transform")
	var nf *lperrors.NotFittedError
	if !lperrors.As(err, &nf) {
		t.Fatalf("RequireFitted() on fresh state = %v, want NotFittedError", err)
	}
	if nf.ModelName != "Preprocessor" || nf.Method != "Transform" {
		t.Errorf("NotFittedError = %+v", nf)
	}

	s.SetDimensions(3, 10)
	s.SetColumns([]string{"a", "b", "c"})
	s.SetFitted()
	if err := s.RequireFitted("Preprocessor", "Transform"); err != nil {
		t.Errorf("RequireFitted() after SetFitted = %v", err)
	}

	st := s.GetState()
	if !st.Fitted || st.NFeatures != 3 || st.NSamples != 10 || len(st.Columns) != 3 {
		t.Errorf("GetState() = %+v", st)
	}

	s.Reset()
	if s.IsFitted() || len(s.Columns()) != 0 {
		t.Error("Reset() did not clear state")
	}
}

func TestStateManager_ConcurrentReads(t *testing.T) {
	s := NewStateManager()
	s.SetFitted()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.IsFitted()
				_, _ = s.GetDimensions()
			}
		}()
	}
	wg.Wait()
}

func TestBaseEstimator(t *testing.T) {
	var b BaseEstimator
	if b.IsFitted() {
		t.Error("zero BaseEstimator should not be fitted")
	}
	b.SetFitted()
	if !b.IsFitted() {
		t.Error("SetFitted() had no effect")
	}
	b.Reset()
	if b.IsFitted() {
		t.Error("Reset() had no effect")
	}
}
