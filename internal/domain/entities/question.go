package entities

// Question is a catalog entry as seen by the engine: an identifier and a
// topic label. Question text, options and correctness live in the content
// layer and never reach the scheduling core.
type Question struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
}
