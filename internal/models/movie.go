package models

// Movie is a catalog list entry as returned in a result page
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title,omitempty"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path,omitempty"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count,omitempty"`
	Popularity       float64 `json:"popularity,omitempty"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	Adult            bool    `json:"adult,omitempty"`
}

// MoviePage is one page of a named result set (popular, search, ...)
type MoviePage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// Genre is a catalog genre
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CastMember is a credited actor
type CastMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
	Order       int    `json:"order"`
}

// CrewMember is a credited crew member
type CrewMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	Department  string `json:"department"`
	ProfilePath string `json:"profile_path"`
}

// Credits groups cast and crew of a movie
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// Video is a trailer/teaser reference
type Video struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// VideoList wraps the videos appended to a details response
type VideoList struct {
	Results []Video `json:"results"`
}

// MovieDetails is the full record of a single movie, including appended
// credits, videos and similar titles
type MovieDetails struct {
	Movie
	Genres   []Genre    `json:"genres"`
	Runtime  int        `json:"runtime"`
	Tagline  string     `json:"tagline"`
	Status   string     `json:"status"`
	Homepage string     `json:"homepage"`
	IMDbID   string     `json:"imdb_id"`
	Budget   int64      `json:"budget"`
	Revenue  int64      `json:"revenue"`
	Credits  *Credits   `json:"credits,omitempty"`
	Videos   *VideoList `json:"videos,omitempty"`
	Similar  *MoviePage `json:"similar,omitempty"`
}

// TopCast returns at most n cast members in billing order
func (d *MovieDetails) TopCast(n int) []CastMember {
	if d.Credits == nil || n <= 0 {
		return nil
	}
	if len(d.Credits.Cast) <= n {
		return d.Credits.Cast
	}
	return d.Credits.Cast[:n]
}

// Directors returns the names of crew members credited as Director
func (d *MovieDetails) Directors() []string {
	if d.Credits == nil {
		return nil
	}
	var names []string
	for _, c := range d.Credits.Crew {
		if c.Job == "Director" {
			names = append(names, c.Name)
		}
	}
	return names
}

// Trailer returns the first YouTube trailer, preferring official ones
func (d *MovieDetails) Trailer() *Video {
	if d.Videos == nil {
		return nil
	}
	var fallback *Video
	for i := range d.Videos.Results {
		v := &d.Videos.Results[i]
		if v.Site != "YouTube" || v.Type != "Trailer" {
			continue
		}
		if v.Official {
			return v
		}
		if fallback == nil {
			fallback = v
		}
	}
	return fallback
}

// HomeFeed is the landing page bundle
type HomeFeed struct {
	Popular  MoviePage `json:"popular"`
	Trending MoviePage `json:"trending"`
	Upcoming MoviePage `json:"upcoming"`
}
