package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"finpulse/internal/amqp"
	"finpulse/internal/core"
	"finpulse/internal/services"

	"github.com/dustin/go-humanize"
)

// filterFlags registers -filter, -start and -end on fs.
type filterFlags struct {
	kind, start, end *string
}

func newFilterFlags(fs *flag.FlagSet, def string) filterFlags {
	return filterFlags{
		kind:  fs.String("filter", def, "today, week, all, last:N or custom"),
		start: fs.String("start", "", "first day of a custom range (YYYY-MM-DD)"),
		end:   fs.String("end", "", "last day of a custom range (YYYY-MM-DD)"),
	}
}

func (f filterFlags) parse(a *app) (core.DateFilter, error) {
	return core.ParseDateFilter(*f.kind, *f.start, *f.end, a.reports.Location())
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add", a.out)
	title := fs.String("title", "", "what the money was spent on")
	amount := fs.String("amount", "", "amount greater than zero, e.g. 12.50")
	category := fs.String("category", "", "category name, created when missing")
	day := fs.String("date", "", "day of the expense (YYYY-MM-DD), default today")
	notes := fs.String("notes", "", "optional notes, up to 100 characters")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	date, err := core.EntryDay(*day, a.reports.Now(), a.reports.Location())
	if err != nil {
		return err
	}
	e, err := a.expenses.AddExpense(ctx, services.ExpenseInput{
		Title:    *title,
		Amount:   *amount,
		Category: *category,
		Date:     date,
		Notes:    *notes,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved #%d %s (%s) on %s\n", e.ID, e.Title,
		core.FormatMoney(a.reports.CurrencySymbol(), e.Amount),
		e.Date.In(a.reports.Location()).Format("2006-01-02"))
	return nil
}

func (a *app) category(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: finpulse-cli category NAME", errUsage)
	}
	c, err := a.expenses.AddCategory(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d\t%s\n", c.ID, c.Name)
	return nil
}

func (a *app) categories(ctx context.Context) error {
	cats, err := a.expenses.Categories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		fmt.Fprintf(a.out, "%d\t%s\n", c.ID, c.Name)
	}
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list", a.out)
	ff := newFilterFlags(fs, "today")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := ff.parse(a)
	if err != nil {
		return err
	}
	list, err := a.expenses.Expenses(ctx, f, a.reports.Now())
	if err != nil {
		return err
	}
	a.printList(services.NewListSnapshot(f, list))
	return nil
}

func (a *app) printList(s services.ListSnapshot) {
	symbol, loc := a.reports.CurrencySymbol(), a.reports.Location()
	fmt.Fprintf(a.out, "%s: %d expenses, total %s\n", s.Title, s.Count, core.FormatMoney(symbol, s.Total))
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, e := range s.Expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Expense.Date.In(loc).Format("2006-01-02"),
			e.Category.Name,
			e.Expense.Title,
			core.FormatMoney(symbol, e.Expense.Amount),
			e.Expense.NotesText())
	}
	tw.Flush()
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := newFlagSet("report", a.out)
	ff := newFilterFlags(fs, "week")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := ff.parse(a)
	if err != nil {
		return err
	}
	sum, err := a.reports.Summary(ctx, f, a.reports.Now())
	if err != nil {
		return err
	}

	symbol := a.reports.CurrencySymbol()
	fmt.Fprintln(a.out, services.DocumentTitle(f))
	fmt.Fprintf(a.out, "%d expenses, total %s\n", sum.Count, core.FormatMoney(symbol, sum.Total))
	if sum.Count == 0 {
		fmt.Fprintln(a.out, "No data available.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(a.out, "\nDaily Totals")
	for _, d := range sum.Daily {
		fmt.Fprintf(tw, "%s\t%s\t\n", d.Day.Format("2006-01-02"), core.FormatMoney(symbol, d.Total))
	}
	tw.Flush()
	fmt.Fprintln(a.out, "\nCategory Totals")
	for _, c := range sum.Categories {
		fmt.Fprintf(tw, "%s\t%s\t\n", c.Category.Name, core.FormatMoney(symbol, c.Total))
	}
	tw.Flush()
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := newFlagSet("export", a.out)
	format := fs.String("format", "pdf", "pdf or csv")
	ff := newFilterFlags(fs, "week")
	queued := fs.Bool("queue", false, "hand the export to the background worker")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ef, err := services.ParseExportFormat(*format)
	if err != nil {
		return err
	}
	f, err := ff.parse(a)
	if err != nil {
		return err
	}

	if *queued {
		q, err := a.queue()
		if err != nil {
			return err
		}
		defer q.Close()
		msg := amqp.NewExportRequestMessage(string(ef), f.String())
		if err := q.PublishExportRequest(ctx, msg); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Queued export %s (%s, %s)\n", msg.ID, ef, f)
		return nil
	}

	res, err := a.reports.Export(ctx, services.ExportRequest{Format: ef, Filter: f})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\t%s\n", res.Path, res.MIMEType, humanize.Bytes(uint64(res.Size)))
	return nil
}

// watch prints the expense list for the filter and again on every change.
// Each stdin line selects a new filter ("week", "last:30",
// "custom 2024-03-01 2024-03-10").
func (a *app) watch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch", a.out)
	ff := newFilterFlags(fs, "today")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := ff.parse(a)
	if err != nil {
		return err
	}

	view := services.NewListView(ctx, a.store, a.store.Notifier(), a.reports.Now)
	defer view.Close()
	if err := view.SetFilter(f); err != nil {
		return err
	}

	go a.readFilters(ctx, view)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-view.Updates():
			if !ok {
				return nil
			}
			fmt.Fprintln(a.out)
			a.printList(u.Value)
		}
	}
}

func (a *app) readFilters(ctx context.Context, view *services.ListView) {
	sc := bufio.NewScanner(a.in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		for len(fields) < 3 {
			fields = append(fields, "")
		}
		f, err := core.ParseDateFilter(fields[0], fields[1], fields[2], a.reports.Location())
		if err == nil {
			err = view.SetFilter(f)
		}
		if err != nil {
			a.logger.Warn("Ignoring filter", "input", sc.Text(), "error", err)
		}
	}
}
