package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
	"github.com/Belphemur/opensubtitles-dl/internal/config"
)

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	code := apperrors.ExitOK
	cmd := newRootCommand(in, out, errOut, &code)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, err)
		return apperrors.ExitFatal
	}
	return code
}

func newRootCommand(in io.Reader, out, errOut io.Writer, code *int) *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "opensubtitles-dl [imdb-id]",
		Short:         "Download the subtitles of a movie from OpenSubtitles",
		Long:          "Searches OpenSubtitles for the subtitles of a movie by IMDB id in the configured languages,\nthen stores each one under <subtitles_path>/<Movie> - <Year>/ in the target encoding.",
		Version:       config.AppVersion,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			imdbID := ""
			if len(args) == 1 {
				imdbID = args[0]
			}
			*code = runLookup(cmd.Context(), configFlag, imdbID, in, out, errOut)
			return nil
		},
	}

	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default ./config.yaml or ./config/config.yaml)")

	return rootCmd
}
