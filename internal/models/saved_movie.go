package models

// SavedMovie is the summary persisted in a user's saved list
type SavedMovie struct {
	ID          int     `json:"id" validate:"required,gt=0"`
	Title       string  `json:"title" validate:"required,max=500"`
	PosterPath  string  `json:"poster_path" validate:"max=500"`
	VoteAverage float64 `json:"vote_average" validate:"gte=0,lte=10"`
	ReleaseDate string  `json:"release_date" validate:"max=32"`
	Overview    string  `json:"overview" validate:"max=10000"`
}

// SavedFromMovie builds the saved summary of a catalog entry
func SavedFromMovie(m Movie) SavedMovie {
	return SavedMovie{
		ID:          m.ID,
		Title:       m.Title,
		PosterPath:  m.PosterPath,
		VoteAverage: m.VoteAverage,
		ReleaseDate: m.ReleaseDate,
		Overview:    m.Overview,
	}
}
