package touchgal

// Game is one search result. ID is the site-global id used by the resource
// API; UniqueID addresses the game's page.
type Game struct {
	ID            int      `json:"id"`
	UniqueID      string   `json:"unique_id"`
	Banner        string   `json:"banner"`
	Name          string   `json:"name"`
	Type          []string `json:"type"`
	Language      []string `json:"language"`
	Platform      []string `json:"platform"`
	AverageRating float64  `json:"averageRating"`
	Tags          []Tag    `json:"tag"`
}

type Tag struct {
	Tag TagInfo `json:"tag"`
}

type TagInfo struct {
	Name string `json:"name"`
}

// Resource is one downloadable entry of a game.
type Resource struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Section  string   `json:"section"`
	Storage  string   `json:"storage"`
	Size     string   `json:"size"`
	Type     []string `json:"type"`
	Language []string `json:"language"`
	Platform []string `json:"platform"`
	Note     string   `json:"note"`
	Content  string   `json:"content"`
	Code     string   `json:"code"`
	Password string   `json:"password"`
}

// Details is what the game page itself adds over the search result.
type Details struct {
	VNDBID      string
	Title       string
	Description string
	Images      []string
}
