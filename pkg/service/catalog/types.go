package catalog

// apiRef is a named link to another resource
type apiRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type apiCharacter struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Species  string   `json:"species"`
	Type     string   `json:"type"`
	Gender   string   `json:"gender"`
	Origin   apiRef   `json:"origin"`
	Location apiRef   `json:"location"`
	Episode  []string `json:"episode"`
}

type apiLocation struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Dimension string   `json:"dimension"`
	Residents []string `json:"residents"`
}

type apiEpisode struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	AirDate    string   `json:"air_date"`
	Episode    string   `json:"episode"`
	Characters []string `json:"characters"`
}
