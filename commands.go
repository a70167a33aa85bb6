package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rigveda-go/internal/corpus"
	"rigveda-go/internal/mcpserver"
	"rigveda-go/internal/pager"
	"rigveda-go/internal/playback"
	"rigveda-go/internal/store"
)

var (
	searchPage   int
	searchSize   int
	searchFields string

	dailyRandom bool

	askMax   int
	askPlain bool

	exportOut           string
	exportNoPadapatha   bool
	exportNoTranslit    bool
	exportNoTranslation bool

	bookmarkLabel string

	listenQuiet bool
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search the riks, or print one when QUERY is a reference",
	Example: `  rigveda search agni
  rigveda search --fields translation,deity --page 2 "dawn"
  rigveda search 1.1.1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var verseCmd = &cobra.Command{
	Use:   "verse REF",
	Short: "Print a rik, e.g. 1.1.1",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerse,
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Print the verse of the day",
	Args:  cobra.NoArgs,
	RunE:  runDaily,
}

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Ask the assistant a question about the Rigveda",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var exportCmd = &cobra.Command{
	Use:   "export MANDALA.SUKTA",
	Short: "Download a sukta as PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var listenCmd = &cobra.Command{
	Use:   "listen MANDALA.SUKTA",
	Short: "Play the narration of a sukta and print each rik as it is recited",
	Args:  cobra.ExactArgs(1),
	RunE:  runListen,
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Manage bookmarked riks",
}

var bookmarkAddCmd = &cobra.Command{
	Use:   "add REF",
	Short: "Bookmark a rik",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookmarkAdd,
}

var bookmarkRmCmd = &cobra.Command{
	Use:     "rm REF",
	Aliases: []string{"remove"},
	Short:   "Remove a bookmark",
	Args:    cobra.ExactArgs(1),
	RunE:    runBookmarkRm,
}

var bookmarkLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List bookmarks",
	Args:    cobra.NoArgs,
	RunE:    runBookmarkLs,
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes on riks",
}

var noteAddCmd = &cobra.Command{
	Use:   "add REF TEXT",
	Short: "Attach a note to a rik",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runNoteAdd,
}

var noteLsCmd = &cobra.Command{
	Use:     "ls [REF]",
	Aliases: []string{"list"},
	Short:   "List notes, optionally only those on REF",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runNoteLs,
}

var noteRmCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"remove"},
	Short:   "Delete a note",
	Args:    cobra.ExactArgs(1),
	RunE:    runNoteRm,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the corpus as Model Context Protocol tools over stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 1, "Result page")
	searchCmd.Flags().IntVarP(&searchSize, "size", "n", 0, "Results per page (default from config)")
	searchCmd.Flags().StringVarP(&searchFields, "fields", "f", "", "Comma separated fields: devanagari,transliteration,translation,deity")

	dailyCmd.Flags().BoolVarP(&dailyRandom, "random", "r", false, "Print a random rik instead")

	askCmd.Flags().IntVar(&askMax, "max", 0, "Maximum cited riks (default from config)")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "Print the answer without markdown rendering")

	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default: export dir)")
	exportCmd.Flags().BoolVar(&exportNoPadapatha, "no-padapatha", false, "Leave out the padapatha")
	exportCmd.Flags().BoolVar(&exportNoTranslit, "no-transliteration", false, "Leave out the transliteration")
	exportCmd.Flags().BoolVar(&exportNoTranslation, "no-translation", false, "Leave out the translation")

	listenCmd.Flags().BoolVarP(&listenQuiet, "quiet", "q", false, "Only print rik numbers")

	bookmarkAddCmd.Flags().StringVarP(&bookmarkLabel, "label", "l", "", "Bookmark label")

	bookmarkCmd.AddCommand(bookmarkAddCmd, bookmarkRmCmd, bookmarkLsCmd)
	noteCmd.AddCommand(noteAddCmd, noteLsCmd, noteRmCmd)

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(verseCmd)
	rootCmd.AddCommand(dailyCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(bookmarkCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	query := strings.Join(args, " ")

	if ref, ok := corpus.ParseReference(query); ok && ref.Valid() {
		return printVerse(ctx, out, ref)
	}

	fields := rt.searchFields()
	if searchFields != "" {
		if fields = corpus.ParseFields(searchFields); len(fields) == 0 {
			return fmt.Errorf("no known fields in %q", searchFields)
		}
	}
	size := rt.cfg.Search.PageSize
	if searchSize > 0 {
		size = searchSize
	}

	p := pager.New(rt.client, rt.source(), pager.Options{
		PageSize:      size,
		MinSimilarity: rt.cfg.Search.MinSimilarity,
		Logger:        rt.logger,
	})
	if err := p.Search(ctx, query, fields); err != nil {
		return err
	}
	if searchPage > 1 {
		if searchPage > p.State().TotalPages {
			return fmt.Errorf("page %d out of range (1-%d)", searchPage, p.State().TotalPages)
		}
		if err := p.GoToPage(ctx, searchPage); err != nil {
			return err
		}
	}

	printResults(out, p.State())
	return nil
}

func printResults(w io.Writer, st pager.State) {
	if st.TotalResults == 0 {
		fmt.Fprintf(w, "No riks match %q.\n", st.Query)
		return
	}
	fmt.Fprintf(w, "%d results for %q, page %d of %d\n\n", st.TotalResults, st.Query, st.Page, st.TotalPages)
	for _, h := range st.Hits {
		fmt.Fprintf(w, "%-10s %.2f  %s\n", h.Ref, h.Similarity, truncateText(oneLine(h.Summary()), 100))
	}
}

func runVerse(cmd *cobra.Command, args []string) error {
	ref, err := parseRik(args[0])
	if err != nil {
		return err
	}
	return printVerse(cmd.Context(), cmd.OutOrStdout(), ref)
}

func printVerse(ctx context.Context, w io.Writer, ref corpus.Reference) error {
	v, err := rt.verses.Verse(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Fprint(w, v.PlainText())
	return nil
}

func runDaily(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fetch := rt.client.DailyVerse
	if dailyRandom {
		fetch = rt.client.Random
	}
	hit, err := fetch(ctx)
	if err != nil {
		return err
	}
	return printVerse(ctx, cmd.OutOrStdout(), hit.Ref)
}

func runAsk(cmd *cobra.Command, args []string) error {
	limit := rt.cfg.Assistant.MaxResults
	if askMax > 0 {
		limit = askMax
	}
	ans, err := rt.asker.Ask(cmd.Context(), corpus.Question{
		Query:      strings.Join(args, " "),
		MaxResults: limit,
		Fields:     rt.searchFields(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	text := ans.Text
	if !askPlain {
		text = renderMarkdown(ans.Text, 80)
	}
	fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	if len(ans.Citations) > 0 {
		fmt.Fprintln(out, "\nCited riks:")
		for i, c := range ans.Citations {
			fmt.Fprintf(out, "%2d. %-10s %s\n", i+1, c.Ref, truncateText(oneLine(c.Summary()), 90))
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	hymn, err := parseHymn(args[0])
	if err != nil {
		return err
	}
	opts := corpus.ExportOptions{
		Padapatha:       !exportNoPadapatha,
		Transliteration: !exportNoTranslit,
		Translation:     !exportNoTranslation,
	}
	path := exportOut
	if path == "" {
		path = filepath.Join(rt.cfg.Storage.ExportDir, exportFileName(hymn))
	}
	n, err := exportHymn(cmd.Context(), hymn, opts, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, n)
	return nil
}

func exportFileName(hymn corpus.HymnRef) string {
	return fmt.Sprintf("mandala_%d_sukta_%d.pdf", hymn.Mandala, hymn.Sukta)
}

// exportHymn downloads the PDF into path. A partial file is removed on error.
func exportHymn(ctx context.Context, hymn corpus.HymnRef, opts corpus.ExportOptions, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := rt.client.ExportPDF(ctx, hymn, opts, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	rt.logger.Info("exported", zap.Stringer("hymn", hymn), zap.String("path", path), zap.Int64("bytes", n))
	return n, nil
}

func runListen(cmd *cobra.Command, args []string) error {
	hymn, err := parseHymn(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := rt.player()
	defer ctrl.Close()

	out := cmd.OutOrStdout()
	done := make(chan error, 1)
	var mu sync.Mutex
	last := -1
	cancel := ctrl.Subscribe(func(s playback.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Status != playback.StatusReady {
			return
		}
		if s.Err != nil {
			select {
			case done <- s.Err:
			default:
			}
			return
		}
		if s.Index != last && (s.Playing || s.Elapsed > 0) {
			last = s.Index
			if v, ok := s.Current(); ok {
				printListening(out, v)
			}
		}
		if !s.Playing && !s.Waiting && s.Duration > 0 && s.Elapsed >= s.Duration {
			select {
			case done <- nil:
			default:
			}
		}
	})
	defer cancel()

	if err := ctrl.LoadHymn(ctx, hymn); err != nil {
		return err
	}
	if err := ctrl.TogglePlayback(); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func printListening(w io.Writer, v corpus.Verse) {
	if listenQuiet {
		fmt.Fprintln(w, v.Ref)
		return
	}
	fmt.Fprintf(w, "── %s ──\n%s\n", v.Ref, v.Samhita)
	if v.Translation != "" {
		fmt.Fprintf(w, "%s\n", v.Translation)
	}
	fmt.Fprintln(w)
}

func runBookmarkAdd(cmd *cobra.Command, args []string) error {
	ref, err := parseRik(args[0])
	if err != nil {
		return err
	}
	st, err := rt.store()
	if err != nil {
		return err
	}
	b, err := st.AddBookmark(cmd.Context(), ref, bookmarkLabel)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bookmarked %s\n", b.Ref)
	return nil
}

func runBookmarkRm(cmd *cobra.Command, args []string) error {
	ref, err := parseRik(args[0])
	if err != nil {
		return err
	}
	st, err := rt.store()
	if err != nil {
		return err
	}
	if err := st.RemoveBookmark(cmd.Context(), ref); err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("%s is not bookmarked", ref)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", ref)
	return nil
}

func runBookmarkLs(cmd *cobra.Command, args []string) error {
	st, err := rt.store()
	if err != nil {
		return err
	}
	marks, err := st.Bookmarks(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(marks) == 0 {
		fmt.Fprintln(out, "No bookmarks.")
		return nil
	}
	for _, b := range marks {
		fmt.Fprintf(out, "%-10s %s  %s\n", b.Ref, b.CreatedAt.Format("2006-01-02"), b.Label)
	}
	return nil
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	ref, err := parseRik(args[0])
	if err != nil {
		return err
	}
	st, err := rt.store()
	if err != nil {
		return err
	}
	n, err := st.AddNote(cmd.Context(), ref, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added note %s on %s\n", n.ID, n.Ref)
	return nil
}

func runNoteLs(cmd *cobra.Command, args []string) error {
	var ref corpus.Reference
	if len(args) == 1 {
		var err error
		if ref, err = parseRik(args[0]); err != nil {
			return err
		}
	}
	st, err := rt.store()
	if err != nil {
		return err
	}
	notes, err := st.Notes(cmd.Context(), ref)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(notes) == 0 {
		fmt.Fprintln(out, "No notes.")
		return nil
	}
	for _, n := range notes {
		fmt.Fprintf(out, "%s  %-10s %s\n", n.ID, n.Ref, n.Text)
	}
	return nil
}

func runNoteRm(cmd *cobra.Command, args []string) error {
	st, err := rt.store()
	if err != nil {
		return err
	}
	if err := st.DeleteNote(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s\n", args[0])
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	opts := mcpserver.Options{
		PageSize:      rt.cfg.Search.PageSize,
		MinSimilarity: rt.cfg.Search.MinSimilarity,
		Logger:        rt.logger,
	}
	if st, err := rt.store(); err == nil {
		opts.Bookmarks = st
	} else {
		rt.logger.Warn("bookmarks unavailable to mcp", zap.Error(err))
	}
	return mcpserver.New(rt.source(), rt.asker, opts).ServeStdio(version)
}

func parseRik(s string) (corpus.Reference, error) {
	ref, ok := corpus.ParseReference(s)
	if !ok || !ref.Valid() {
		return corpus.Reference{}, fmt.Errorf("%q is not a rik reference like 1.1.1: %w", s, corpus.ErrEmptyInput)
	}
	return ref, nil
}

func parseHymn(s string) (corpus.HymnRef, error) {
	ref, ok := corpus.ParseReference(s)
	if !ok || ref.Rik != 0 {
		return corpus.HymnRef{}, fmt.Errorf("%q is not a sukta reference like 1.1: %w", s, corpus.ErrEmptyInput)
	}
	return ref.Hymn(), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
