// Command lbcore is a smoke-test CLI over the lbcore library. It is not a
// supported product surface — official clients drive the library directly
// — but it exercises account creation and import, sync, listing, creating,
// writing, reading, sharing and linking end to end against a real server
// for manual testing and scripted integration checks. Rename, move and
// delete have no command.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lockbook/lbcore"
	"github.com/lockbook/lbcore/pkg/events"
)

var (
	dataDir    string
	apiURL     string
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lbcore",
	Short: "Manual smoke-test CLI over the lbcore library",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(configPath)
	},
}

func init() {
	home, _ := os.UserHomeDir()
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", home+"/.lockbook", "local data directory")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8000", "sync server base URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML file overriding data-dir/api-url")

	rootCmd.AddCommand(newAccountCmd, importAccountCmd, syncCmd, lsCmd, mkdirCmd, touchCmd,
		writeCmd, catCmd, shareCmd, pendingSharesCmd, linkCmd, whoamiCmd)
}

func openCore() (*lbcore.Core, error) {
	return lbcore.New(lbcore.Config{WriteablePath: dataDir})
}

var newAccountCmd = &cobra.Command{
	Use:   "new-account <username>",
	Short: "Create a new account and register it with the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.CreateAccount(context.Background(), args[0], apiURL); err != nil {
			return err
		}
		phrase, err := c.ExportAccountPhrase()
		if err != nil {
			return err
		}
		fmt.Println("Account created. Recovery phrase (store this somewhere safe):")
		fmt.Println(phrase)
		return nil
	},
}

var importAccountCmd = &cobra.Command{
	Use:   "import-account <account-string>",
	Short: "Import an account exported from another device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		return c.ImportAccount(context.Background(), args[0])
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the current account's root id",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		root, err := c.Root()
		if err != nil {
			return err
		}
		fmt.Println(root)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull and push pending work with the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		return c.Sync(context.Background(), func(e events.Event) {
			fmt.Println(e.Kind, e.Message)
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every non-deleted path",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		paths, err := c.ListPaths(lbcore.AllFiles)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder at path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createAtPath(args[0], lbcore.Folder)
	},
}

var touchCmd = &cobra.Command{
	Use:   "touch <path>",
	Short: "Create a document at path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createAtPath(args[0], lbcore.Document)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <path> <content>",
	Short: "Overwrite a document's content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		id, err := c.GetByPath(args[0])
		if err != nil {
			return err
		}
		return c.WriteDocument(id, []byte(args[1]))
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a document's decrypted content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		id, err := c.GetByPath(args[0])
		if err != nil {
			return err
		}
		data, err := c.ReadDocument(id, true)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var shareCmd = &cobra.Command{
	Use:   "share <path> <username>",
	Short: "Grant a user read/write access to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		id, err := c.GetByPath(args[0])
		if err != nil {
			return err
		}
		return c.ShareFile(context.Background(), id, args[1], lbcore.ShareWrite)
	},
}

var pendingSharesCmd = &cobra.Command{
	Use:   "pending-shares",
	Short: "List files shared with this account but not yet linked in",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		ids, err := c.GetPendingShares()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <path> <target-id>",
	Short: "Create a link at path to a shared file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore()
		if err != nil {
			return err
		}
		defer c.Close()
		target, err := uuid.Parse(args[1])
		if err != nil {
			return err
		}
		_, err = c.CreateLinkAtPath(args[0], target)
		return err
	},
}

func createAtPath(path string, typ lbcore.FileType) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Close()

	parentPath, name, err := splitPath(path)
	if err != nil {
		return err
	}
	var parentID uuid.UUID
	if parentPath == "" {
		parentID, err = c.Root()
	} else {
		parentID, err = c.GetByPath(parentPath)
	}
	if err != nil {
		return err
	}
	_, err = c.CreateFile(name, parentID, typ)
	return err
}

// splitPath separates a "/"-delimited path into its parent path and final
// segment. The root's direct children have an empty parent path.
func splitPath(path string) (parentPath, name string, err error) {
	trimmed := strings.Trim(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "", trimmed, nil
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}
