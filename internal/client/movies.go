package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/benvon/moviebox/internal/models"
)

// MovieDetails is a movie record together with the server's derived fields
type MovieDetails struct {
	models.MovieDetails
	PosterURL   string              `json:"poster_url,omitempty"`
	BackdropURL string              `json:"backdrop_url,omitempty"`
	DirectedBy  []string            `json:"directed_by,omitempty"`
	TopCast     []models.CastMember `json:"top_cast,omitempty"`
	Trailer     *models.Video       `json:"trailer,omitempty"`
}

// Popular fetches a page of popular movies
func (c *Client) Popular(ctx context.Context, page int) (*models.MoviePage, error) {
	return c.moviePage(ctx, "/movies/popular", pageQuery(page))
}

// Upcoming fetches a page of upcoming movies
func (c *Client) Upcoming(ctx context.Context, page int) (*models.MoviePage, error) {
	return c.moviePage(ctx, "/movies/upcoming", pageQuery(page))
}

// TopRated fetches a page of top rated movies
func (c *Client) TopRated(ctx context.Context, page int) (*models.MoviePage, error) {
	return c.moviePage(ctx, "/movies/top-rated", pageQuery(page))
}

// NowPlaying fetches a page of movies in theatres
func (c *Client) NowPlaying(ctx context.Context, page int) (*models.MoviePage, error) {
	return c.moviePage(ctx, "/movies/now-playing", pageQuery(page))
}

// Trending fetches trending movies for window; empty means the server default
func (c *Client) Trending(ctx context.Context, window string) (*models.MoviePage, error) {
	q := url.Values{}
	if window != "" {
		q.Set("time_window", window)
	}
	return c.moviePage(ctx, "/movies/trending", q)
}

// Search fetches a page of movies matching query
func (c *Client) Search(ctx context.Context, query string, page int) (*models.MoviePage, error) {
	q := pageQuery(page)
	q.Set("query", query)
	return c.moviePage(ctx, "/search/movies", q)
}

// Home fetches the popular, trending and upcoming bundle
func (c *Client) Home(ctx context.Context) (*models.HomeFeed, error) {
	var feed models.HomeFeed
	if err := c.do(ctx, http.MethodGet, "/movies/home", nil, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// Details fetches one movie
func (c *Client) Details(ctx context.Context, id int) (*MovieDetails, error) {
	var d MovieDetails
	if err := c.do(ctx, http.MethodGet, "/movies/"+strconv.Itoa(id), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Genres fetches the genre list
func (c *Client) Genres(ctx context.Context) ([]models.Genre, error) {
	var genres []models.Genre
	if err := c.do(ctx, http.MethodGet, "/genres", nil, nil, &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

func (c *Client) moviePage(ctx context.Context, path string, q url.Values) (*models.MoviePage, error) {
	var p models.MoviePage
	if err := c.do(ctx, http.MethodGet, path, q, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
