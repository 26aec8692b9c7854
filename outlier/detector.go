package outlier

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/listingprep/config"
	"github.com/YuminosukeSato/listingprep/preprocessing"
	"github.com/YuminosukeSato/listingprep/sklearn/svm"
)

// Detector flags novelty outliers in one numeric column with a one-class SVM.
type Detector struct {
	cfg config.OutlierConfig
	svm *svm.OneClassSVM
}

// NewDetector creates a detector from the outlier configuration.
func NewDetector(cfg config.OutlierConfig) *Detector {
	return &Detector{cfg: cfg}
}

func (d *Detector) options() []svm.Option {
	opts := []svm.Option{svm.WithNu(d.cfg.Nu), svm.WithTol(d.cfg.Tol), svm.WithMaxIter(d.cfg.MaxIter)}
	if d.cfg.Gamma > 0 {
		opts = append(opts, svm.WithGamma(d.cfg.Gamma))
	} else {
		opts = append(opts, svm.WithGammaMode(d.cfg.GammaMode))
	}
	return opts
}

// Detect trains on the finite entries of values and returns a mask the length
// of values. Missing and infinite entries are never flagged. Columns with
// fewer than two finite entries produce an all-false mask.
func (d *Detector) Detect(values []float64) ([]bool, error) {
	mask := make([]bool, len(values))
	rows := make([]int, 0, len(values))
	data := make([]float64, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		rows = append(rows, i)
		data = append(data, v)
	}
	if len(rows) < 2 {
		return mask, nil
	}

	var X mat.Matrix = mat.NewDense(len(data), 1, data)
	scaler, err := preprocessing.NewScaler(d.cfg.Scaling)
	if err != nil {
		return nil, err
	}
	if scaler != nil {
		if X, err = scaler.FitTransform(X); err != nil {
			return nil, err
		}
	}

	d.svm = svm.NewOneClassSVM(d.options()...)
	if err := d.svm.Fit(X); err != nil {
		return nil, err
	}
	labels, err := d.svm.TrainingLabels()
	if err != nil {
		return nil, err
	}
	for k, label := range labels {
		if label < 0 {
			mask[rows[k]] = true
		}
	}
	return mask, nil
}

// Model returns the last trained SVM, nil before Detect trains one.
func (d *Detector) Model() *svm.OneClassSVM { return d.svm }
