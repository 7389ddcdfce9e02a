package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"icloudalbum/pkg/tokens"
	"icloudalbum/pkg/ui"
)

var tokenNote string

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage saved album tokens",
	Long: `Save album tokens under short aliases so albums can be referred to as @alias.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - ICLOUDALBUM_TOKEN and ICLOUDALBUM_TOKEN_<ALIAS> environment variables (read only)`,
}

// tokenAddCmd represents the token add command
var tokenAddCmd = &cobra.Command{
	Use:   "add <alias> [token-or-url]",
	Short: "Save an album token under an alias",
	Long: `Save an album token under an alias. The token may be given as a bare
token or a share URL. If it is omitted you are prompted for it and the input
is hidden.`,
	Example: `  # Save a share URL
  icloudalbum token add holiday 'https://www.icloud.com/sharedalbum/#B0z5qAGN1JIFd3y'

  # Prompt for the token
  icloudalbum token add holiday`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTokenAdd,
}

// tokenListCmd represents the token list command
var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved tokens",
	Long:  `List saved album tokens with the tokens masked.`,
	Args:  cobra.NoArgs,
	RunE:  runTokenList,
}

// tokenRemoveCmd represents the token remove command
var tokenRemoveCmd = &cobra.Command{
	Use:     "remove <alias>",
	Aliases: []string{"rm"},
	Short:   "Remove a saved token",
	Args:    cobra.ExactArgs(1),
	RunE:    runTokenRemove,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenAddCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRemoveCmd)

	tokenAddCmd.Flags().StringVar(&tokenNote, "note", "", "free text note stored with the token")
}

func runTokenAdd(cmd *cobra.Command, args []string) error {
	manager, err := tokens.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	ref := ""
	if len(args) > 1 {
		ref = args[1]
	} else {
		fmt.Fprint(cmd.OutOrStdout(), "Album token or share URL: ")
		ref, err = readSecret(cmd.InOrStdin())
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	return addToken(manager, newPrinter(), args[0], ref, tokenNote)
}

// addToken validates ref and stores it under alias
func addToken(manager *tokens.Manager, p *ui.Printer, alias, ref, note string) error {
	token, err := tokens.ParseReference(ref)
	if err != nil {
		return err
	}

	if err := manager.Store(&tokens.Entry{
		Alias:        alias,
		Token:        token,
		Note:         note,
		LastModified: time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	p.Success(fmt.Sprintf("Saved %s as @%s", tokens.MaskToken(token), alias))
	return nil
}

func runTokenList(cmd *cobra.Command, args []string) error {
	manager, err := tokens.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}
	return listTokens(manager, newPrinter())
}

func listTokens(manager *tokens.Manager, p *ui.Printer) error {
	entries, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}
	if len(entries) == 0 {
		p.Line("No saved tokens. Use 'icloudalbum token add' to save one.")
		return nil
	}

	p.Highlight("Saved tokens")
	for _, e := range entries {
		e = tokens.Sanitize(e)
		line := fmt.Sprintf("  @%-16s %s", e.Alias, e.Token)
		if e.Note != "" {
			line += "  " + p.Dim(e.Note)
		}
		if !e.LastModified.IsZero() {
			line += "  " + p.Dim(e.LastModified.Format("2006-01-02"))
		}
		p.Line("%s", line)
	}
	return nil
}

func runTokenRemove(cmd *cobra.Command, args []string) error {
	manager, err := tokens.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	newPrinter().Success(fmt.Sprintf("Removed @%s", args[0]))
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && f == os.Stdin && term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
