package vndb

type Image struct {
	URL string `json:"url"`
}

type Developer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Original string `json:"original,omitempty"`
}

type Title struct {
	Lang     string `json:"lang"`
	Title    string `json:"title"`
	Official bool   `json:"official"`
}

type VN struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	AltTitle      string      `json:"alttitle,omitempty"`
	Image         *Image      `json:"image,omitempty"`
	Rating        float64     `json:"rating,omitempty"`
	Average       float64     `json:"average,omitempty"`
	Released      string      `json:"released,omitempty"`
	LengthMinutes int         `json:"length_minutes,omitempty"`
	Platforms     []string    `json:"platforms,omitempty"`
	Aliases       []string    `json:"aliases,omitempty"`
	Developers    []Developer `json:"developers,omitempty"`
	Titles        []Title     `json:"titles,omitempty"`
}

// CharacterVN is the slim VN reference inside a character response.
type CharacterVN struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	AltTitle string `json:"alttitle,omitempty"`
}

type Character struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Original  string        `json:"original,omitempty"`
	Birthday  []int         `json:"birthday,omitempty"`
	Image     *Image        `json:"image,omitempty"`
	VNs       []CharacterVN `json:"vns,omitempty"`
	Aliases   []string      `json:"aliases,omitempty"`
	Sex       []string      `json:"sex,omitempty"`
	BloodType string        `json:"blood_type,omitempty"`
	Height    int           `json:"height,omitempty"`
	Weight    int           `json:"weight,omitempty"`
	Bust      int           `json:"bust,omitempty"`
	Waist     int           `json:"waist,omitempty"`
	Hips      int           `json:"hips,omitempty"`
	Cup       string        `json:"cup,omitempty"`
}

type Producer struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Original string   `json:"original,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
	Lang     string   `json:"lang,omitempty"`
	Type     string   `json:"type,omitempty"`
}
