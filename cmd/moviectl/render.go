package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/benvon/moviebox/internal/client"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/store"
)

func year(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return "-"
}

// renderMovies prints one row per movie, marking titles on the saved list
func renderMovies(w io.Writer, movies []models.Movie, saved store.SavedState) {
	if len(movies) == 0 {
		fmt.Fprintln(w, "No movies found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tYEAR\tRATING\t")
	for _, m := range movies {
		mark := ""
		if saved.Contains(m.ID) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%s\n", m.ID, m.Title, year(m.ReleaseDate), m.VoteAverage, mark)
	}
	_ = tw.Flush()
}

func renderList(w io.Writer, title string, s store.ListState, saved store.SavedState) {
	fmt.Fprintf(w, "%s\n\n", title)
	renderMovies(w, s.List, saved)
	if s.TotalPages > 0 {
		fmt.Fprintf(w, "\nPage %d of %d\n", s.CurrentPage, s.TotalPages)
	}
}

func renderTrending(w io.Writer, window string, s store.TrendingState, saved store.SavedState) {
	fmt.Fprintf(w, "Trending this %s\n\n", window)
	renderMovies(w, s.List, saved)
}

func renderSearch(w io.Writer, s store.SearchState, saved store.SavedState) {
	fmt.Fprintf(w, "%d results for %q\n\n", s.TotalResults, s.Query)
	renderMovies(w, s.Results, saved)
	if s.TotalPages > 0 {
		fmt.Fprintf(w, "\nPage %d of %d\n", s.CurrentPage, s.TotalPages)
	}
}

func renderDetails(w io.Writer, d *client.MovieDetails, saved bool) {
	if d == nil {
		fmt.Fprintln(w, "Movie not found.")
		return
	}
	fmt.Fprintf(w, "%s (%s)", d.Title, year(d.ReleaseDate))
	if saved {
		fmt.Fprint(w, "  [saved]")
	}
	fmt.Fprintln(w)
	if d.Tagline != "" {
		fmt.Fprintf(w, "%s\n", d.Tagline)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rating\t%.1f (%d votes)\n", d.VoteAverage, d.VoteCount)
	if d.Runtime > 0 {
		fmt.Fprintf(tw, "Runtime\t%dh %02dm\n", d.Runtime/60, d.Runtime%60)
	}
	if len(d.Genres) > 0 {
		names := make([]string, len(d.Genres))
		for i, g := range d.Genres {
			names[i] = g.Name
		}
		fmt.Fprintf(tw, "Genres\t%s\n", strings.Join(names, ", "))
	}
	if len(d.DirectedBy) > 0 {
		fmt.Fprintf(tw, "Directed by\t%s\n", strings.Join(d.DirectedBy, ", "))
	}
	if len(d.TopCast) > 0 {
		cast := make([]string, len(d.TopCast))
		for i, c := range d.TopCast {
			cast[i] = c.Name
		}
		fmt.Fprintf(tw, "Cast\t%s\n", strings.Join(cast, ", "))
	}
	if d.Trailer != nil {
		fmt.Fprintf(tw, "Trailer\thttps://www.youtube.com/watch?v=%s\n", d.Trailer.Key)
	}
	if d.PosterURL != "" {
		fmt.Fprintf(tw, "Poster\t%s\n", d.PosterURL)
	}
	_ = tw.Flush()

	if d.Overview != "" {
		fmt.Fprintf(w, "\n%s\n", d.Overview)
	}
}

func renderSaved(w io.Writer, s store.SavedState) {
	if len(s.List) == 0 {
		fmt.Fprintln(w, "Your saved list is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tYEAR\tRATING")
	for _, m := range s.List {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\n", m.ID, m.Title, year(m.ReleaseDate), m.VoteAverage)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d saved\n", len(s.List))
}

func renderUser(w io.Writer, u *models.UserProfile) {
	if u == nil {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	name := u.Email
	if u.DisplayName != nil && *u.DisplayName != "" {
		name = fmt.Sprintf("%s <%s>", *u.DisplayName, u.Email)
	}
	fmt.Fprintf(w, "Signed in as %s\n", name)
	if !u.EmailVerified {
		fmt.Fprintln(w, "E-mail address not verified yet.")
	}
}

func renderGenres(w io.Writer, genres []models.Genre) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, g := range genres {
		fmt.Fprintf(tw, "%d\t%s\n", g.ID, g.Name)
	}
	_ = tw.Flush()
}

func renderDigest(w io.Writer, d *models.Digest) {
	fmt.Fprintf(w, "%s\n", d.Summary)
	if len(d.Suggestions) == 0 {
		return
	}
	fmt.Fprintln(w, "\nYou might also like:")
	for _, s := range d.Suggestions {
		title := s.Title
		if s.Year != "" {
			title = fmt.Sprintf("%s (%s)", s.Title, s.Year)
		}
		fmt.Fprintf(w, "  - %s: %s\n", title, s.Reason)
	}
}
