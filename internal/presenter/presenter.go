// Package presenter renders the interactive console output of a run.
package presenter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Belphemur/opensubtitles-dl/internal/models"
)

const (
	ansiReset      = "\x1b[0m"
	ansiRed        = "\x1b[31m"
	ansiLightGreen = "\x1b[92m"
	ansiDim        = "\x1b[2m"
)

// PromptText is shown when no IMDB id was given on the command line.
const PromptText = "Please enter an IMDB Movie Number:"

// ErrNoInput is returned by Prompt when the input ends before a line was read.
var ErrNoInput = errors.New("no IMDB id entered")

// Presenter writes user-facing messages. Log output goes elsewhere.
type Presenter struct {
	in       *bufio.Reader
	out      io.Writer
	terminal bool
}

// New creates a presenter. Colors and progress bars are enabled only when out is a terminal.
func New(in io.Reader, out io.Writer) *Presenter {
	return &Presenter{
		in:       bufio.NewReader(in),
		out:      out,
		terminal: isTerminal(out),
	}
}

// Interactive reports whether out is a terminal.
func (p *Presenter) Interactive() bool {
	return p.terminal
}

// Banner prints "<name> v<version>" underlined with a border of the same width.
func (p *Presenter) Banner(name, version string) {
	title := fmt.Sprintf("%s v%s", name, version)
	p.println(ansiLightGreen, title)
	p.println(ansiLightGreen, border("-*-", len(title)))
	fmt.Fprintln(p.out)
}

// Prompt asks for an IMDB id and returns the trimmed line.
func (p *Presenter) Prompt() (string, error) {
	fmt.Fprintf(p.out, "%s ", PromptText)

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" && errors.Is(err, io.EOF) {
		return "", ErrNoInput
	}
	return line, nil
}

// NoResults reports an empty search with the English names of the languages.
func (p *Presenter) NoResults(languages []string, imdbID string) {
	p.println(ansiRed, fmt.Sprintf(
		"No %s subtitles found for IMDB ID %s. Please make sure to provide a valid IMDB ID.",
		LanguageNames(languages),
		imdbID,
	))
}

// Hits prints the count line and a table of the hits.
func (p *Presenter) Hits(hits []models.SearchHit, fromCache bool) {
	fmt.Fprintln(p.out)
	noun := "subtitle"
	if len(hits) > 1 {
		noun = "subtitles"
	}
	count := fmt.Sprintf("%d %s found:", len(hits), noun)
	if fromCache {
		count += " (cached)"
	}
	p.println(ansiDim, count)

	if len(hits) == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Movie", "Year", "ID", "File", "Language"})
	for i, hit := range hits {
		tw.AppendRow(table.Row{i + 1, hit.MovieName, hit.MovieYear, hit.IDSubtitleFile, hit.SubFileName, hit.LanguageName})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	fmt.Fprintln(p.out, tw.Render())
}

// Hit announces the processing of the hit at the 1-based index.
func (p *Presenter) Hit(index int, hit models.SearchHit) {
	p.println(ansiDim, fmt.Sprintf("%d: %s (%s) - %s - [%s]", index, hit.MovieName, hit.MovieYear, hit.IDSubtitleFile, hit.SubFileName))
}

// Saved reports a subtitle written to disk.
func (p *Presenter) Saved(file *models.SubtitleFile) {
	fmt.Fprintf(p.out, "   saved %s (%s)\n", file.Path, humanize.Bytes(uint64(file.Size)))
}

// HitFailed reports a failure limited to one hit.
func (p *Presenter) HitFailed(index int, err error) {
	p.println(ansiRed, fmt.Sprintf("   subtitle %d failed: %s", index, err))
}

// Error reports an error that ended the run.
func (p *Presenter) Error(err error) {
	p.println(ansiRed, fmt.Sprintf("ERROR: %s", err))
}

// Completed is always the last line of a run.
func (p *Presenter) Completed() {
	fmt.Fprintln(p.out)
	p.println(ansiLightGreen, "Completed.")
}

// Progress returns a progress bar writer for a download of total bytes.
// Off a terminal the download is not tracked.
func (p *Presenter) Progress(description string, total int64) io.Writer {
	if !p.terminal {
		return io.Discard
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("   "+description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *Presenter) println(color, line string) {
	if p.terminal {
		line = color + line + ansiReset
	}
	fmt.Fprintln(p.out, line)
}

// LanguageNames joins the English display names of the sublanguage ids,
// falling back to the raw id when it is not a known language.
func LanguageNames(ids []string) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, languageName(id))
	}
	return strings.Join(names, ", ")
}

func languageName(id string) string {
	tag, err := language.Parse(id)
	if err != nil {
		return id
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return id
}

func border(pattern string, width int) string {
	if width <= 0 || pattern == "" {
		return ""
	}
	return strings.Repeat(pattern, width/len(pattern)+1)[:width]
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
