package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/roach88/ceasefire/internal/posterior"
	"github.com/roach88/ceasefire/internal/series"
)

// RenderText writes the human-readable report. Output is deterministic for
// a given report value; golden tests pin it.
func RenderText(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "Analysis: %s\n", r.Run.Name)
	fmt.Fprintf(w, "Run:      %s (%s)\n", r.Run.ID, r.Run.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(w, "Model:    %s, %d chains x %d draws, seed %d\n",
		r.Run.Likelihood, r.Run.Chains, r.Run.Draws, r.Run.Seed)
	fmt.Fprintf(w, "Span:     %s .. %s\n",
		r.Run.SpanStart.Format(series.DateLayout), r.Run.SpanEnd.Format(series.DateLayout))
	fmt.Fprintf(w, "Converge: max R-hat %.3f, min ESS %.0f, move rate %.2f\n",
		r.Run.RHatMax, r.Run.ESSMin, r.Run.MoveRate)

	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "WARNING:  %s\n", warning)
	}

	if len(r.Effects) > 0 {
		fmt.Fprintf(w, "\n== Ceasefire effect ==\n")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "indicator\tIRR\tinterval\tPr(reduction)\tdays\taverted\taverted interval")
		for _, e := range r.Effects {
			fmt.Fprintf(tw, "%s\t%.3f\t[%.3f, %.3f]\t%.3f\t%d\t%.1f\t[%.1f, %.1f]\n",
				e.Name, e.IRR.Median, e.IRR.Lower, e.IRR.Upper,
				e.ProbReduction, e.WindowDays,
				e.Averted.Median, e.Averted.Lower, e.Averted.Upper)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(r.Coefficients) > 0 {
		fmt.Fprintf(w, "\n== Coefficients ==\n")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "parameter\tmean\tsd\tinterval\tIRR")
		for _, c := range r.Coefficients {
			irr := "-"
			if c.IRR.Level != 0 {
				irr = fmt.Sprintf("%.3f", c.IRR.Median)
			}
			fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t[%.3f, %.3f]\t%s\n",
				c.Name, c.Coef.Mean, c.Coef.SD, c.Coef.Lower, c.Coef.Upper, irr)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(r.Trend) > 0 {
		fmt.Fprintf(w, "\n== Marginal trend (monthly) ==\n")
		if err := renderCurve(w, monthlyThin(r.Trend)); err != nil {
			return err
		}
	}

	if len(r.Seasonal) > 0 {
		fmt.Fprintf(w, "\n== Seasonal curve (monthly) ==\n")
		if err := renderCurve(w, monthlyThin(r.Seasonal)); err != nil {
			return err
		}
	}

	if len(r.Predictive) > 0 {
		fmt.Fprintf(w, "\n== Posterior predictive ==\n")
		fmt.Fprintf(w, "interval coverage: %.3f over %d days\n", r.Coverage, len(r.Predictive))
		outliers := 0
		for _, p := range r.Predictive {
			obs := float64(p.Observed)
			if obs < p.Lower || obs > p.Upper {
				outliers++
			}
		}
		fmt.Fprintf(w, "days outside interval: %d\n", outliers)
	}

	return nil
}

// renderCurve prints a thinned posterior curve as a table.
func renderCurve(w io.Writer, points []posterior.TrendPoint) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "date\tmean\tinterval")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%.2f\t[%.2f, %.2f]\n",
			p.Date.Format(series.DateLayout), p.Mean, p.Lower, p.Upper)
	}
	return tw.Flush()
}

// monthlyThin keeps the first point of each month so the text table stays
// readable; JSON output carries the full daily curves.
func monthlyThin(points []posterior.TrendPoint) []posterior.TrendPoint {
	var out []posterior.TrendPoint
	lastMonth := -1
	lastYear := -1
	for _, p := range points {
		if p.Date.Year() != lastYear || int(p.Date.Month()) != lastMonth {
			out = append(out, p)
			lastYear = p.Date.Year()
			lastMonth = int(p.Date.Month())
		}
	}
	return out
}
