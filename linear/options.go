package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithRcond sets the relative singular value cutoff used by the SVD fallback
func WithRcond(rcond float64) Option {
	return func(lr *LinearRegression) {
		lr.rcond = rcond
	}
}

// WithWorkers sets the number of goroutines used to build the design matrix
func WithWorkers(n int) Option {
	return func(lr *LinearRegression) {
		lr.workers = n
	}
}
