package domain

// Section is a named span of the source document, usually one chapter.
type Section struct {
	Title   string
	Content string
}

// Chunk is a bounded window of a Section's text used for indexing.
// SequenceIndex is 1-based and unique within its Section.
type Chunk struct {
	ID            string
	SectionTitle  string
	SequenceIndex int
	Text          string
}

// RetrievedItem is a chunk returned by a similarity search with its relevance score.
type RetrievedItem struct {
	Chunk Chunk
	Score float64
}

// Source is the provenance of one retrieved chunk as shown to the user.
type Source struct {
	Excerpt       string `json:"excerpt"`
	SectionTitle  string `json:"section_title"`
	SequenceIndex int    `json:"sequence_index"`
}

// AnswerResult is the payload returned for a single question.
type AnswerResult struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Segmenter splits raw document text into ordered sections.
type Segmenter interface {
	Segment(text string) ([]Section, error)
}

// Chunker splits a section into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(section Section) ([]Chunk, error)
}
