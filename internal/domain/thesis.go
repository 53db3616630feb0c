package domain

// Thesis is the indexed representation of a PCDM object.
// Multi-valued metadata keeps every value the repository holds.
type Thesis struct {
	URI           string   `json:"uri"`
	Title         []string `json:"title"`
	Abstract      []string `json:"abstract"`
	Advisor       []string `json:"advisor"`
	Author        []string `json:"author"`
	CopyrightDate []string `json:"copyright_date"`
	Degree        []string `json:"degree"`
	Department    []string `json:"department"`
	Description   []string `json:"description"`
	Handle        []string `json:"handle"`
	PublishedDate []string `json:"published_date"`
	FullText      string   `json:"full_text"`
}

// ID returns the document identifier used by the index.
func (t Thesis) ID() string {
	return t.URI
}
