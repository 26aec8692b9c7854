// Package listingprep turns a wide, mixed-type real-estate listing table into
// a fully numeric table with a deterministic column order, ready for model
// training.
//
// The work is split into stages that each own their fitted state:
//
//   - classify: drops over-missing and composite columns and assigns every
//     surviving column a role (numeric, date part, timestamp, categorical, text)
//   - impute: fills missing numeric cells with per-column regression models
//     trained on the fully observed numeric columns
//   - outlier: flags novelty outliers with a one-class SVM and replaces them
//     with draws from the best-fitting parametric distribution
//   - dates: interpolates numeric date parts and fills timestamps
//   - encode: one-hot expands low-cardinality text, mode-fills the rest
//   - pipeline: runs the stages in order and reassembles the output
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/listingprep/config"
//	    "github.com/YuminosukeSato/listingprep/pipeline"
//	)
//
//	func main() {
//	    cfg, err := config.Load("listingprep.yaml")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    p, err := pipeline.New(cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    out, err := p.FitTransform(listings) // a *frame.Frame from arrowio or a loader
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(out.Names())
//	}
//
// # Supporting packages
//
//   - core/frame: the in-memory table
//   - core/model, core/parallel: fitted-state tracking and per-column fan-out
//   - linear, sklearn/tree, sklearn/ensemble, sklearn/svm: estimators
//   - stats/distfit: distribution fitting and quantile scoring
//   - preprocessing, metrics: detector input scaling and regression scores
//   - droprule: row drop decisions for upstream loaders
//   - arrowio, report: Arrow boundary conversion and debug artifacts
//   - config, pkg/errors, pkg/log, pkg/metrics: configuration and ambient plumbing
//
// Rows are never dropped or reordered by the pipeline. Row filtering belongs
// to the loader, which can use droprule.KeepMask.
package listingprep
