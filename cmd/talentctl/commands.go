package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"text/tabwriter"

	"talent/internal/auth"
	"talent/internal/services"
	"talent/internal/validator"

	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(func(b Backend) error {
				applied, err := b.Migrate(cmd.Context(), dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "applied %d migration(s)\n", len(applied))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory holding *.sql migrations")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "upsert cards from a token,balance,label roster",
		Long:  "Reads one card per line as token,balance,label. Malformed lines are reported and skipped; the rest are applied in one transaction.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := c.readInput(file)
			if err != nil {
				return err
			}
			return c.withBackend(func(b Backend) error {
				result, err := b.AdminImport(cmd.Context(), auth.Identity{Role: auth.RoleAdmin}, text)
				if err != nil {
					return err
				}
				printImport(c.out, result)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "roster file, - for stdin")
	return cmd
}

func (c *cli) readInput(file string) (string, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(c.in)
		return string(data), err
	}
	data, err := os.ReadFile(file)
	return string(data), err
}

func printImport(out io.Writer, result services.ImportResult) {
	fmt.Fprintf(out, "applied %d card(s)\n", result.Applied)
	for _, skipped := range result.Skipped {
		fmt.Fprintf(out, "skipped line %d (%s): %s\n", skipped.Line, skipped.Reason, skipped.Text)
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "write every ledger row as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = services.ExportFilename(c.now())
			}
			return c.withBackend(func(b Backend) error {
				return writeExport(cmd.Context(), b, out, c.out)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, - for stdout (default transactions-YYYY-MM-DD.csv)")
	return cmd
}

func writeExport(ctx context.Context, b Backend, path string, stdout io.Writer) error {
	if path == "-" {
		return b.ExportCSV(ctx, stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.ExportCSV(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

func (c *cli) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "list cards whose balance differs from their ledger sum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(func(b Backend) error {
				drift, err := b.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				if len(drift) == 0 {
					fmt.Fprintln(c.out, "all balances match the ledger")
					return nil
				}
				w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TOKEN\tBALANCE\tLEDGER\tDIFF")
				for _, row := range drift {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", row.Token, row.Balance, row.LedgerSum, row.Difference)
				}
				return w.Flush()
			})
		},
	}
}

func (c *cli) readerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reader",
		Short: "open the booth page for each card UID read from stdin",
		Long:  "Keyboard-wedge NFC readers type the card UID followed by Enter. Each UID opens PUBLIC_BASE_URL/b/{uid} in the default browser.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReader(cmd.Context(), c.in, c.out, c.cfg.PublicBaseURL, c.open)
		},
	}
}

// runReader stops at EOF or when ctx is cancelled. Invalid UIDs are reported
// and skipped.
func runReader(ctx context.Context, in io.Reader, out io.Writer, baseURL string, open func(string) error) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		uid := strings.TrimSpace(scanner.Text())
		if uid == "" {
			continue
		}
		if err := validator.ValidateToken(uid); err != nil {
			fmt.Fprintf(out, "ignored %q: %v\n", uid, err)
			continue
		}
		target := boothURL(baseURL, uid)
		if err := open(target); err != nil {
			fmt.Fprintf(out, "failed to open %s: %v\n", target, err)
			continue
		}
		fmt.Fprintf(out, "opened %s\n", target)
	}
	return scanner.Err()
}

func boothURL(baseURL, uid string) string {
	return strings.TrimRight(baseURL, "/") + "/b/" + url.PathEscape(uid)
}

func openBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
