package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
	"github.com/JonMunkholm/crm/internal/store"
)

// defaultMaxFileSize matches IMPORT_MAX_FILE_SIZE for offline commands.
const defaultMaxFileSize = 10 << 20

func (a *App) previewCommand() *cobra.Command {
	var (
		accountsFile string
		user         string
		limit        int
		maxSize      int64
	)
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Parse a file offline and show the records it would import",
		Long: `Parse a CSV or TSV export without touching the database. Use "-" to read
stdin. With --accounts, vendor names are resolved against an "id,name" CSV.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0], maxSize)
			if err != nil {
				return err
			}

			var accounts []core.Account
			if accountsFile != "" {
				owner := uuid.Nil
				if user != "" {
					if owner, err = parseUser(user); err != nil {
						return err
					}
				}
				accounts, err = loadAccountsFile(accountsFile, owner)
				if err != nil {
					return err
				}
			}

			preview := core.PreviewImport(text, accounts)
			a.printPreview(preview, limit)
			if len(preview.Rows) == 0 {
				return core.ErrNoRowsDetected
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&accountsFile, "accounts", "", "account directory CSV (id,name)")
	cmd.Flags().StringVar(&user, "user", "", "owner used for generated account ids")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show, 0 for all")
	cmd.Flags().Int64Var(&maxSize, "max-size", defaultMaxFileSize, "maximum file size in bytes")
	return cmd
}

func (a *App) importCommand() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a file into the maintenance store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *core.Service, _ store.Backend, cfg *config.Config) error {
				text, err := readInput(args[0], cfg.Import.MaxFileSize)
				if err != nil {
					return err
				}
				result, err := svc.Import(cmd.Context(), core.ImportRequest{
					UserID:   userID,
					FileName: filepath.Base(args[0]),
					Text:     text,
				})
				if result != nil {
					a.printImportResult(result)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *App) accountsCommand() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the account directory used for vendor resolution",
	}

	load := &cobra.Command{
		Use:   "load FILE",
		Short: "Upsert accounts from an id,name CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			accounts, err := loadAccountsFile(args[0], userID)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(_ *core.Service, backend store.Backend, _ *config.Config) error {
				if err := backend.SaveAccounts(cmd.Context(), userID, accounts); err != nil {
					return err
				}
				fmt.Fprintln(a.Out, successStyle.Render(fmt.Sprintf("Saved %d accounts", len(accounts))))
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the account directory as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(_ *core.Service, backend store.Backend, _ *config.Config) error {
				accounts, err := backend.AccountDirectory(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return store.WriteAccountsCSV(a.Out, accounts)
			})
		},
	}

	cmd.PersistentFlags().StringVar(&user, "user", "", "owning user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")
	cmd.AddCommand(load, list)
	return cmd
}

func (a *App) reportCommand() *cobra.Command {
	var user, asOf string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show active records grouped by time until expiration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			day, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *core.Service, _ store.Backend, _ *config.Config) error {
				report, err := svc.ExpirationReport(cmd.Context(), userID, day)
				if err != nil {
					return err
				}
				a.printReport(report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owning user id (required)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *App) exportCommand() *cobra.Command {
	var user, asOf, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the expiration report as CSV",
		Long: `Write the expiration report as CSV. Without --out the file is named
maintenance-expiration-report-<date>.csv in the current directory; use
--out - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			day, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *core.Service, _ store.Backend, _ *config.Config) error {
				name, body, err := svc.ExportExpirationCSV(cmd.Context(), userID, day)
				if err != nil {
					return err
				}
				if out == "-" {
					_, err := io.WriteString(a.Out, body+"\n")
					return err
				}
				if out == "" {
					out = name
				}
				if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(a.Out, successStyle.Render("Wrote "+out))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owning user id (required)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, - for stdout")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *App) historyCommand() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(user)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *core.Service, _ store.Backend, _ *config.Config) error {
				runs, err := svc.ImportHistory(cmd.Context(), userID)
				if err != nil {
					return err
				}
				a.printHistory(runs)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *App) remindersCommand() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "List records inside their renewal reminder window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *core.Service, _ store.Backend, _ *config.Config) error {
				if day.IsZero() {
					day = a.Now()
				}
				due, err := svc.DueReminders(cmd.Context(), day)
				if err != nil {
					return err
				}
				a.printReminders(due)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "check date YYYY-MM-DD (default today)")
	return cmd
}

func loadAccountsFile(path string, userID uuid.UUID) ([]core.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	accounts, err := store.ReadAccountsCSV(f, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return accounts, nil
}

/* ----------------------------------------
	Output
---------------------------------------- */

func (a *App) printPreview(p core.ImportPreview, limit int) {
	fmt.Fprintln(a.Out, titleStyle.Render("Import preview"))
	fmt.Fprintf(a.Out, "%s %d  %s %d  %s %d  %s %d\n",
		labelStyle.Render("data rows:"), p.DataRows,
		labelStyle.Render("parsed:"), len(p.Rows),
		labelStyle.Render("dropped:"), p.Dropped,
		labelStyle.Render("matched accounts:"), p.MatchedAccounts,
	)
	if len(p.Rows) == 0 {
		return
	}

	shown := p.Rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	rows := make([][]string, len(shown))
	for i, r := range shown {
		matched := ""
		if r.AccountID != nil {
			matched = "yes"
		}
		rows[i] = []string{
			r.ProductName,
			string(r.ProductType),
			deref(r.VendorName),
			matched,
			deref(r.EndDate),
			money(r.Cost),
			deref(r.SerialNumber),
		}
	}
	fmt.Fprintln(a.Out, newTable([]string{"Product", "Type", "Vendor", "Account", "End Date", "Cost", "Serial"}, rows).String())
	if len(shown) < len(p.Rows) {
		fmt.Fprintln(a.Out, mutedStyle.Render(fmt.Sprintf("... %d more rows", len(p.Rows)-len(shown))))
	}
}

func (a *App) printImportResult(r *core.ImportResult) {
	fmt.Fprintln(a.Out, titleStyle.Render("Import "+statusStyle(r.Status).Render(string(r.Status))))
	fmt.Fprintf(a.Out, "%s %s\n", labelStyle.Render("run:"), r.RunID)
	fmt.Fprintf(a.Out, "%s %d  %s %d  %s %d  %s %d  %s %d\n",
		labelStyle.Render("data rows:"), r.DataRows,
		labelStyle.Render("parsed:"), r.Parsed,
		labelStyle.Render("dropped:"), r.Dropped,
		labelStyle.Render("inserted:"), r.Inserted,
		labelStyle.Render("matched accounts:"), r.MatchedAccounts,
	)
}

func (a *App) printReport(r core.ExpirationReport) {
	fmt.Fprintln(a.Out, titleStyle.Render("Maintenance expiration report, as of "+r.AsOf.Format("2006-01-02")))
	fmt.Fprintf(a.Out, "%s %d  %s %s  %s %d  %s %d\n\n",
		labelStyle.Render("records:"), r.Summary.TotalRecords,
		labelStyle.Render("total cost:"), strconv.FormatFloat(r.Summary.TotalCost, 'f', 2, 64),
		labelStyle.Render("accounts:"), r.Summary.DistinctAccounts,
		errorStyle.Render("critical:"), r.Summary.Critical,
	)

	for _, g := range r.Groups {
		heading := fmt.Sprintf("%s (%d)", g.Title, len(g.Records))
		fmt.Fprintln(a.Out, severityStyle(g.Severity).Render(heading))
		if len(g.Records) == 0 {
			fmt.Fprintln(a.Out, mutedStyle.Render("  none"))
			continue
		}
		rows := make([][]string, len(g.Records))
		for i, rec := range g.Records {
			rows[i] = []string{
				rec.ProductName,
				string(rec.ProductType),
				accountOrVendor(rec),
				formatDay(rec.EndDate),
				strconv.Itoa(rec.DaysUntilExpiry),
				money(rec.Cost),
			}
		}
		fmt.Fprintln(a.Out, newTable([]string{"Product", "Type", "Account", "Expires", "Days", "Cost"}, rows).String())
	}
}

func (a *App) printHistory(runs []core.ImportRun) {
	if len(runs) == 0 {
		fmt.Fprintln(a.Out, mutedStyle.Render("No imports yet"))
		return
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.StartedAt.Format("2006-01-02 15:04"),
			r.FileName,
			statusStyle(r.Status).Render(string(r.Status)),
			strconv.Itoa(r.Inserted),
			strconv.Itoa(r.Dropped),
			r.Error,
		}
	}
	fmt.Fprintln(a.Out, newTable([]string{"Started", "File", "Status", "Inserted", "Dropped", "Error"}, rows).String())
}

func (a *App) printReminders(due []core.ExpiringRecord) {
	if len(due) == 0 {
		fmt.Fprintln(a.Out, mutedStyle.Render("No renewals due"))
		return
	}
	rows := make([][]string, len(due))
	for i, rec := range due {
		rows[i] = []string{
			rec.UserID.String(),
			rec.ProductName,
			accountOrVendor(rec),
			formatDay(rec.EndDate),
			strconv.Itoa(rec.DaysUntilExpiry),
		}
	}
	fmt.Fprintln(a.Out, newTable([]string{"User", "Product", "Account", "Expires", "Days"}, rows).String())
}

func accountOrVendor(rec core.ExpiringRecord) string {
	if rec.AccountName != nil && strings.TrimSpace(*rec.AccountName) != "" {
		return *rec.AccountName
	}
	return deref(rec.VendorName)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func money(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
