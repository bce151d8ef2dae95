package index

import "fmt"

// Config holds the clustering tree parameters.
type Config struct {
	LeafSize  int `json:"leaf_size"` // Sets at or below this size become a leaf
	Centers   int `json:"centers"`   // Medoids per internal node
	Trials    int `json:"trials"`    // Random medoid draws per node, lowest distortion wins
	Backtrack int `json:"backtrack"` // Extra branches popped from the queue per query
}

// DefaultConfig returns the index defaults.
func DefaultConfig() Config {
	return Config{
		LeafSize:  16,
		Centers:   8,
		Trials:    64,
		Backtrack: 8,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.LeafSize < 1 || c.Centers < 2 || c.Trials < 1 {
		return fmt.Errorf("index config: leaf_size %d, centers %d, trials %d must be positive (centers >= 2)",
			c.LeafSize, c.Centers, c.Trials)
	}
	if c.Backtrack < 0 {
		return fmt.Errorf("index config: backtrack must be >= 0, got %d", c.Backtrack)
	}
	return nil
}
