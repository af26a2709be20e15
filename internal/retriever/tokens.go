package retriever

// TokenEstimator approximates the token cost of a piece of text. The
// assembler treats it as a pluggable collaborator so deployments can
// swap in a real tokenizer.
type TokenEstimator func(text string) int

// charsPerToken is the byte-per-token heuristic used by the default
// estimator, a reasonable approximation for English prose under common
// BPE vocabularies.
const charsPerToken = 4

// DefaultTokenEstimator estimates tokens as ceil(len/4).
func DefaultTokenEstimator(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}
