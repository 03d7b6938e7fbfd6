package review

// Snapshot is the parsed structure of a candidate page, extracted once at
// fetch time and shared by all reviewers.
type Snapshot struct {
	Title       string          `json:"title"`
	Scripts     []string        `json:"scripts"`
	Stylesheets []string        `json:"stylesheets"`
	Buttons     []ButtonInfo    `json:"buttons"`
	Inputs      []InputInfo     `json:"inputs"`
	Images      []ImageInfo     `json:"images"`
	Links       []LinkInfo      `json:"links"`
	Headings    []string        `json:"headings"`
	IDs         []string        `json:"ids"`
	Counts      ElementCounts   `json:"element_counts"`
	LabelFor    map[string]bool `json:"-"`
}

// ButtonInfo describes one button element.
type ButtonInfo struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AriaLabel string `json:"aria_label,omitempty"`
}

// InputInfo describes one input element.
type InputInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// ImageInfo describes one img element.
type ImageInfo struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// LinkInfo describes one anchor element.
type LinkInfo struct {
	Href     string `json:"href"`
	Text     string `json:"text"`
	HasImage bool   `json:"has_image,omitempty"`
}

// ElementCounts holds per-tag counts used for regression comparison.
type ElementCounts struct {
	Buttons     int `json:"buttons"`
	Inputs      int `json:"inputs"`
	Forms       int `json:"forms"`
	Links       int `json:"links"`
	Images      int `json:"images"`
	Scripts     int `json:"scripts"`
	Stylesheets int `json:"stylesheets"`
}

// HasID reports whether the page contains an element with the given id.
func (s *Snapshot) HasID(id string) bool {
	for _, existing := range s.IDs {
		if existing == id {
			return true
		}
	}
	return false
}
