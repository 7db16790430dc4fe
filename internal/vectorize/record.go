package vectorize

// VectorRecord is one issue ready for the vector store. ID is the issue key.
type VectorRecord struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// Metadata is stored alongside each vector.
type Metadata struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Project     string `json:"project"`
}
