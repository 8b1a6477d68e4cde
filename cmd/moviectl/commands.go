package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/benvon/moviebox/internal/client"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/store"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the moviectl command tree around r
func NewRootCmd(r *Runner) *cobra.Command {
	root := &cobra.Command{
		Use:           "moviectl",
		Short:         "Browse movies and manage your saved list from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return r.open()
		},
	}
	root.PersistentFlags().StringVar(&r.opts.ConfigPath, "config", "", "Config file (default $XDG_CONFIG_HOME/moviebox/config.toml)")
	root.PersistentFlags().StringVar(&r.opts.ServerURL, "server", "", "moviebox API URL, saved on login")
	root.PersistentFlags().StringVar(&r.opts.Language, "language", "", "Catalog language, e.g. fr-FR")
	root.PersistentFlags().BoolVarP(&r.opts.Verbose, "verbose", "v", false, "Log every state change to stderr")

	root.AddCommand(
		listCmd(r, "popular", "Popular movies", store.FetchPopular, func(s store.State) store.ListState { return s.Movies.Popular }),
		listCmd(r, "upcoming", "Upcoming movies", store.FetchUpcoming, func(s store.State) store.ListState { return s.Movies.Upcoming }),
		listCmd(r, "top-rated", "Top rated movies", store.FetchTopRated, func(s store.State) store.ListState { return s.Movies.TopRated }),
		listCmd(r, "now-playing", "Movies now playing", store.FetchNowPlaying, func(s store.State) store.ListState { return s.Movies.NowPlaying }),
		trendingCmd(r),
		searchCmd(r),
		showCmd(r),
		genresCmd(r),
		registerCmd(r),
		loginCmd(r),
		logoutCmd(r),
		whoamiCmd(r),
		resetPasswordCmd(r),
		savedCmd(r),
		digestCmd(r),
	)
	return root
}

// loadSavedMarks fetches the saved list quietly so listings can mark saved titles
func loadSavedMarks(cmd *cobra.Command, r *Runner) {
	if r.signedIn() {
		_ = r.run(cmd.Context(), store.FetchSaved())
	}
}

func listCmd(r *Runner, use, title string, thunk func(int) store.Thunk, section func(store.State) store.ListState) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   use,
		Short: title,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := r.run(cmd.Context(), thunk(page))
			st := r.store.State()
			s := section(st)
			if err != nil {
				return sectionError(s.Status, s.Error, err)
			}
			loadSavedMarks(cmd, r)
			renderList(cmd.OutOrStdout(), title, s, r.store.State().Saved)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	return cmd
}

func trendingCmd(r *Runner) *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Trending movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if window != "day" && window != "week" {
				return fmt.Errorf("--window must be day or week")
			}
			err := r.run(cmd.Context(), store.FetchTrending(window))
			s := r.store.State().Movies.Trending
			if err != nil {
				return sectionError(s.Status, s.Error, err)
			}
			loadSavedMarks(cmd, r)
			renderTrending(cmd.OutOrStdout(), window, s, r.store.State().Saved)
			return nil
		},
	}
	cmd.Flags().StringVar(&window, "window", "day", "Time window: day or week")
	return cmd
}

func searchCmd(r *Runner) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search movies by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := r.run(cmd.Context(), store.SearchMovies(strings.Join(args, " "), page))
			s := r.store.State().Movies.Search
			if err != nil {
				return sectionError(s.Status, s.Error, err)
			}
			loadSavedMarks(cmd, r)
			renderSearch(cmd.OutOrStdout(), s, r.store.State().Saved)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	return cmd
}

func movieID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid movie id %q", arg)
	}
	return id, nil
}

// fetchDetails loads one movie into the details section
func fetchDetails(cmd *cobra.Command, r *Runner, id int) (*client.MovieDetails, error) {
	err := r.run(cmd.Context(), store.FetchMovieDetails(id))
	s := r.store.State().Movies.Details
	if err != nil {
		return nil, sectionError(s.Status, s.Error, err)
	}
	return s.Data, nil
}

func showCmd(r *Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a movie's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := movieID(args[0])
			if err != nil {
				return err
			}
			details, err := fetchDetails(cmd, r, id)
			if err != nil {
				return err
			}
			loadSavedMarks(cmd, r)
			renderDetails(cmd.OutOrStdout(), details, r.store.State().Saved.Contains(id))
			return nil
		},
	}
}

func genresCmd(r *Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List catalog genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			genres, err := r.api.Genres(cmd.Context())
			if err != nil {
				return err
			}
			renderGenres(cmd.OutOrStdout(), genres)
			return nil
		},
	}
}

func registerCmd(r *Runner) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email, err = r.valueOrPrompt(email, "Email", false); err != nil {
				return err
			}
			if password, err = r.valueOrPrompt(password, "Password", true); err != nil {
				return err
			}
			err = r.run(cmd.Context(), store.Register(email, password, name))
			auth := r.store.State().Auth
			if err != nil {
				return sectionError(auth.Status, auth.Error, err)
			}
			if err := r.persistSession(); err != nil {
				return err
			}
			renderUser(cmd.OutOrStdout(), auth.User)
			fmt.Fprintln(cmd.OutOrStdout(), "Check your inbox for a verification link.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "E-mail address (prompted when empty)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func loginCmd(r *Runner) *cobra.Command {
	var email, password, idToken string
	var google bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with e-mail and password or a Google account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			switch {
			case idToken != "":
				err = r.run(cmd.Context(), store.LoginWithGoogle(idToken))
			case google:
				err = googleBrowserLogin(cmd, r)
			default:
				if email, err = r.valueOrPrompt(email, "Email", false); err != nil {
					return err
				}
				if password, err = r.valueOrPrompt(password, "Password", true); err != nil {
					return err
				}
				err = r.run(cmd.Context(), store.Login(email, password))
			}
			auth := r.store.State().Auth
			if err != nil {
				return sectionError(auth.Status, auth.Error, err)
			}
			if err := r.persistSession(); err != nil {
				return err
			}
			renderUser(cmd.OutOrStdout(), auth.User)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "E-mail address (prompted when empty)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	cmd.Flags().BoolVar(&google, "google", false, "Sign in through the browser with Google")
	cmd.Flags().StringVar(&idToken, "id-token", "", "Sign in with a Google ID token")
	cmd.MarkFlagsMutuallyExclusive("google", "id-token")
	cmd.MarkFlagsMutuallyExclusive("google", "email")
	cmd.MarkFlagsMutuallyExclusive("id-token", "email")
	return cmd
}

// googleBrowserLogin prints the consent URL and adopts the session token the
// callback page shows after sign-in
func googleBrowserLogin(cmd *cobra.Command, r *Runner) error {
	consentURL, err := r.api.GoogleConsentURL(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(r.errOut, "Open this URL in a browser to sign in with Google:\n\n  %s\n\n", consentURL)
	token, err := r.prompt("Session token", true)
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("no session token entered")
	}
	r.api.SetToken(token)
	if err := r.run(cmd.Context(), store.RefreshUser()); err != nil {
		return err
	}
	if r.store.State().Auth.User == nil {
		r.api.SetToken("")
		return errors.New("the session token was rejected")
	}
	return nil
}

func logoutCmd(r *Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !r.signedIn() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			err := r.run(cmd.Context(), store.Logout())
			auth := r.store.State().Auth
			if err != nil {
				return sectionError(auth.Status, auth.Error, err)
			}
			if err := r.persistSession(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func whoamiCmd(r *Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !r.signedIn() {
				renderUser(cmd.OutOrStdout(), nil)
				return nil
			}
			err := r.run(cmd.Context(), store.RefreshUser())
			auth := r.store.State().Auth
			if err != nil {
				return sectionError(auth.Status, auth.Error, err)
			}
			if auth.User == nil {
				// Session expired or revoked server-side
				r.api.SetToken("")
			}
			if err := r.persistSession(); err != nil {
				return err
			}
			renderUser(cmd.OutOrStdout(), auth.User)
			return nil
		},
	}
}

func resetPasswordCmd(r *Runner) *cobra.Command {
	var token, password string
	cmd := &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Request a password reset link, or complete a reset with --token",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token != "" {
				var err error
				if password, err = r.valueOrPrompt(password, "New password", true); err != nil {
					return err
				}
				if err := r.api.ConfirmPasswordReset(cmd.Context(), token, password); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Sign in with `moviectl login`.")
				return nil
			}
			if len(args) != 1 {
				return errors.New("an e-mail address is required")
			}
			if err := r.api.RequestPasswordReset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If an account exists for that address, a reset link is on its way.")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Reset token from the e-mailed link")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted when empty)")
	return cmd
}

func savedCmd(r *Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage your saved list",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := r.open(); err != nil {
				return err
			}
			if !r.signedIn() {
				return errNotSignedIn
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := r.run(cmd.Context(), store.FetchSaved())
			s := r.store.State().Saved
			if err != nil {
				return sectionError(s.Status, s.Error, err)
			}
			renderSaved(cmd.OutOrStdout(), s)
			return nil
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Add a movie to the saved list, or remove it when already saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := movieID(args[0])
			if err != nil {
				return err
			}
			details, err := fetchDetails(cmd, r, id)
			if err != nil {
				return err
			}
			err = r.run(cmd.Context(), store.ToggleSaved(models.SavedFromMovie(details.Movie)))
			s := r.store.State().Saved
			if err != nil {
				return sectionError(s.Status, s.Error, err)
			}
			verb := "Removed"
			if s.Contains(id) {
				verb = "Saved"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q (%d on your list)\n", verb, details.Title, len(s.List))
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a movie from the saved list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := movieID(args[0])
			if err != nil {
				return err
			}
			err = r.run(cmd.Context(), store.RemoveSaved(id))
			s := r.store.State().Saved
			if err != nil {
				return sectionError(s.Status, s.Error, err)
			}
			renderSaved(cmd.OutOrStdout(), s)
			return nil
		},
	}

	cmd.AddCommand(list, toggle, remove)
	return cmd
}

func digestCmd(r *Runner) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Summarize your taste from the saved list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !r.signedIn() {
				return errNotSignedIn
			}
			d, err := r.api.Digest(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			renderDigest(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cached digest")
	return cmd
}
