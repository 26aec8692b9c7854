// Package log defines standard attribute keys for preprocessing operations.
//
// Keys follow a hierarchical naming convention (e.g. "model.name", "data.samples")
// so log lines from different stages can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or transformer type.
	// Examples: "RegressionImputer", "OneClassSVM", "Preprocessor"
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one fitted instance (a UUID per Preprocessor).
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed: "fit", "transform", ...
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"

	// StageKey names the pipeline stage: "classify", "impute", "outlier", ...
	StageKey = "pipeline.stage"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of columns.
	FeaturesKey = "data.features"

	// ColumnKey names the column a record is about.
	ColumnKey = "data.column"

	// MissingKey records the number of missing cells.
	MissingKey = "data.missing"

	// MissingFractionKey records a missing fraction in [0, 1].
	MissingFractionKey = "data.missing_fraction"

	// CardinalityKey records distinct non-missing value count.
	CardinalityKey = "data.cardinality"
)

// Outlier and Distribution Context
const (
	// FamilyKey names a distribution family.
	FamilyKey = "dist.family"

	// SSEKey records the quantile sum-of-squared-error of a fit.
	SSEKey = "dist.sse"

	// OutliersKey records the number of flagged rows.
	OutliersKey = "outlier.count"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records the training R² of an imputation model.
	R2ScoreKey = "metrics.r2_score"

	// IterationKey records solver iterations.
	IterationKey = "training.iteration"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides a hint for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// RandomSeedKey records the random seed.
	RandomSeedKey = "config.random_seed"

	// EstimatorKindKey records the regression estimator family: "linear", "forest".
	EstimatorKindKey = "config.estimator"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationPredict      = "predict"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted       = "NOT_FITTED"
	ErrorEmptyData       = "EMPTY_DATA"
	ErrorNoPredictors    = "NO_PREDICTORS"
	ErrorDistributionFit = "DISTRIBUTION_FIT_FAILURE"
	ErrorConvergence     = "CONVERGENCE_FAILURE"
	ErrorIndeterminate   = "INDETERMINATE_DECISION"
)
