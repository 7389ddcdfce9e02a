package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"icloudalbum/pkg/config"
	"icloudalbum/pkg/icloud"
	"icloudalbum/pkg/logger"
	"icloudalbum/pkg/manifest"
	"icloudalbum/pkg/models"
	"icloudalbum/pkg/tokens"
	"icloudalbum/pkg/ui"
)

var (
	// Info command flags
	infoJSON       bool
	skipAssetURLs  bool
	skipRedirect   bool
	captionPreview int
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <album>",
	Short: "Show an album's metadata and photos",
	Long: `Fetch an album and print its metadata and photo list without downloading.

With --json the album is printed as the manifest that 'download' writes,
including the resolved derivative counts and any skipped entries.`,
	Example: `  # Inspect an album by share URL
  icloudalbum info 'https://www.icloud.com/sharedalbum/#B0z5qAGN1JIFd3y'

  # Use a saved token and print JSON
  icloudalbum info @holiday --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "print the album as JSON")
	infoCmd.Flags().BoolVar(&skipAssetURLs, "no-urls", false, "do not resolve download URLs")
	infoCmd.Flags().BoolVar(&skipRedirect, "no-redirect", false, "skip the host redirect probe")
	infoCmd.Flags().IntVar(&captionPreview, "caption-width", 40, "maximum caption length in the photo list")
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := setup(nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, album, _, err := fetchAlbum(ctx, cfg, args[0], icloud.FetchOptions{
		SkipAssetURLs:     skipAssetURLs,
		SkipRedirectProbe: skipRedirect,
	})
	if err != nil {
		return err
	}

	m := manifest.FromAlbum(album, token)
	if infoJSON {
		data, err := m.Marshal()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	printAlbum(newPrinter(), m, captionPreview)
	return nil
}

// resolveToken turns an album argument into a token, consulting saved aliases
func resolveToken(ref string) (string, error) {
	manager, err := tokens.NewManager()
	if err != nil {
		return "", fmt.Errorf("failed to initialize token store: %w", err)
	}
	token, err := manager.Resolve(ref)
	if err != nil {
		return "", fmt.Errorf("invalid album reference %q: %w", ref, err)
	}
	return token, nil
}

// fetchAlbum resolves ref and fetches its album with a client built from cfg
func fetchAlbum(ctx context.Context, cfg *config.Config, ref string, opts icloud.FetchOptions) (string, *models.Album, *icloud.Client, error) {
	token, err := resolveToken(ref)
	if err != nil {
		return "", nil, nil, err
	}

	client, err := icloud.NewClientFromConfig(cfg, logger.GetLogger())
	if err != nil {
		return "", nil, nil, err
	}

	album, err := client.FetchAlbum(ctx, token, opts)
	if err != nil {
		logger.WithFields(icloud.ErrorSummary(err)).Error("Album fetch failed")
		return "", nil, nil, fmt.Errorf("failed to fetch album: %w", err)
	}
	return token, album, client, nil
}

func printAlbum(p *ui.Printer, m *manifest.Manifest, captionWidth int) {
	name := m.StreamName
	if name == "" {
		name = "(untitled)"
	}

	p.Highlight(name)
	p.Info("Token", tokens.MaskToken(m.Token))
	if m.Owner != "" {
		p.Info("Owner", m.Owner)
	}
	p.Info("Photos", fmt.Sprintf("%d (server reports %d)", len(m.Photos), m.ItemsReturned))
	if m.StreamCtag != "" {
		p.Info("Ctag", m.StreamCtag)
	}
	if m.AssetURLsDegraded {
		p.Warning("Download URLs were not resolved")
	}
	if len(m.Warnings) > 0 {
		p.Warning(fmt.Sprintf("%d entries skipped or defaulted", len(m.Warnings)))
		for _, w := range m.Warnings {
			p.Line("  %s", p.Dim(w))
		}
	}

	p.Line("")
	for _, r := range m.Photos {
		line := fmt.Sprintf("%4d  %s  %s  %d/%d urls", r.Position, r.GUID, r.AspectRatio(), r.ResolvedURLs, r.Derivatives)
		if caption := r.FormattedCaption(captionWidth); caption != "" {
			line += "  " + p.Dim(caption)
		}
		p.Line("%s", line)
	}
}
