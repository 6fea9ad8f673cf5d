// Package strategy defines the Rule interface for long/flat trading rules and
// the single-pass engine that compounds a rule's positions into an equity
// curve.
package strategy

// Rule decides the position held over each step of a close-price series.
type Rule interface {
	// Name returns the unique identifier for this rule.
	Name() string

	// Warmup returns the step index from which Position may be called. Before
	// that step the engine holds no position.
	Warmup() int

	// Position returns the fraction of equity invested over step i (0 for
	// flat, 1 for fully long). It may read closes[0..i] inclusive.
	Position(closes []float64, i int) float64
}
