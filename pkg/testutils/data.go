package testutils

// TestFacts are representative knowledge base entries used across store
// and service tests.
var TestFacts = []string{
	"The sky is blue. Water boils at 100 degrees Celsius.",
	"The capital of Iceland is Reykjavik. Iceland is best visited from June to August.",
	"Photosynthesis converts sunlight into chemical energy. Chlorophyll absorbs red and blue light.",
	"The mitochondria is the powerhouse of the cell.",
	"Newton's second law states that force equals mass times acceleration.",
}
