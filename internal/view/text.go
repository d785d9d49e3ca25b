package view

import (
	"fmt"
	"io"
	"text/tabwriter"

	"vet/internal/core"
)

// WriteList prints the visible records as an aligned table.
func WriteList(w io.Writer, snap Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, snap.Status)
	fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tCATEGORY\tTRAVELER\tDESCRIPTION\tRECEIPT\tSYNCED")
	for _, e := range snap.Visible {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.Date,
			e.Amount,
			e.NormalizedCategory(),
			e.Traveler,
			e.Description,
			receiptLabel(e),
			yesNo(e.Synced))
	}
	if len(snap.Visible) == 0 {
		fmt.Fprintln(tw, "No expenses recorded")
	}
	return tw.Flush()
}

// WriteSummary prints the category and date totals.
func WriteSummary(w io.Writer, snap Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, snap.Status+"\t")
	fmt.Fprintln(tw, "CATEGORY\tTOTAL\t")
	for _, c := range snap.ByCategory {
		fmt.Fprintf(tw, "%s\t%s\t\n", c.Name, c.Total.StringFixed(2))
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "DATE\tTOTAL\t")
	for _, d := range snap.ByDate {
		fmt.Fprintf(tw, "%s\t%s\t\n", d.Date, d.Total.StringFixed(2))
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintf(tw, "Total\t%s\t\n", snap.Total.StringFixed(2))
	return tw.Flush()
}

func receiptLabel(e core.Expense) string {
	switch {
	case !e.HasReceipt():
		return "-"
	case core.IsEmbeddedReceipt(e.ReceiptData):
		return "pending upload"
	default:
		return e.ReceiptData
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
