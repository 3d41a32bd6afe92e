package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgurcomments/pkg/auth"
	"imgurcomments/pkg/ui"
)

var authNote string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Imgur Client-IDs",
	Long: `Manage the Imgur application Client-IDs used to call the API.

Client-IDs are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable IMGURCOMMENTS_CLIENT_ID (read only)

A Client-ID given with --client-id or in the config file takes precedence
over stored ones.`,
}

// authAddCmd represents the auth add command
var authAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Store a Client-ID",
	Long: `Store a Client-ID under a name, "default" unless given.

The Client-ID is read without echo. Use --credential <name> on other commands
to pick a stored Client-ID other than the default.`,
	Example: `  # Store the default Client-ID
  imgurcomments auth add

  # Store a second one
  imgurcomments auth add backup --note "second application"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthAdd,
}

// authRemoveCmd represents the auth remove command
var authRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a stored Client-ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthRemove,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored Client-IDs",
	Long:  `List stored Client-IDs with masked values.`,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authAddCmd)
	authCmd.AddCommand(authRemoveCmd)
	authCmd.AddCommand(authListCmd)

	authAddCmd.Flags().StringVar(&authNote, "note", "", "free text stored with the Client-ID")
}

func runAuthAdd(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultName
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowQuickGuide(os.Stderr)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Fprintf(os.Stderr, "\nCredential '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	var id string
	for {
		fmt.Fprint(os.Stderr, "\nClient ID: ")
		id, err = readSecret(reader)
		if err != nil {
			return fmt.Errorf("failed to read Client-ID: %w", err)
		}

		if id == "help" {
			auth.ShowClientIDGuide(os.Stderr)
			continue
		}
		if err := auth.ValidateClientID(id); err != nil {
			ui.PrintError("That does not look like a Client-ID", err)
			fmt.Fprint(os.Stderr, "Try again? (Y/n): ")
			again, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(again)) == "n" {
				return err
			}
			continue
		}
		break
	}

	cred := &auth.Credential{
		Name:         name,
		ClientID:     id,
		Note:         authNote,
		LastModified: time.Now(),
	}
	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("failed to store Client-ID: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Client-ID stored as '%s' (%s)", name, auth.SanitizeCredential(cred).ClientID))
	if name != auth.DefaultName {
		ui.PrintInfo("Use it with", "--credential "+name)
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := strings.TrimSpace(args[0])
	if !hasCredential(manager, name) {
		return fmt.Errorf("%w: %s", auth.ErrCredentialsNotFound, name)
	}
	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove Client-ID: %w", err)
	}
	ui.PrintSuccess("Client-ID removed: " + name)
	return nil
}

func hasCredential(manager *auth.Manager, name string) bool {
	_, err := manager.Retrieve(name)
	return err == nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list Client-IDs: %w", err)
	}

	if len(creds) == 0 {
		ui.PrintInfo("No stored Client-IDs", "use 'imgurcomments auth add' to add one")
		return nil
	}

	p := ui.NewPrinter(os.Stdout)
	p.PrintHighlight("Stored Client-IDs")
	for i, cred := range creds {
		sanitized := auth.SanitizeCredential(cred)
		p.Printf("%d. %s\n", i+1, sanitized.Name)
		p.Printf("   Client ID: %s\n", sanitized.ClientID)
		if sanitized.Note != "" {
			p.Printf("   Note: %s\n", sanitized.Note)
		}
		if !sanitized.LastModified.IsZero() {
			p.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
