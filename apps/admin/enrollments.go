package main

import (
	"context"
	"fmt"
	"text/tabwriter"
)

func (cli *commandLine) checkEnrollments(fix bool) error {
	report, err := cli.policies.CheckEnrollmentPolicy(context.Background(), fix)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "checked %d classes at %s\n", report.Classes, report.CheckedAt.Format("2006-01-02 15:04:05"))
	if len(report.Violations) == 0 {
		fmt.Fprintln(cli.out, "no violations")
		return nil
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENROLLMENT\tUSER\tCLASS\tREASON")
	for _, v := range report.Violations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.EnrollmentID, v.UserID, v.ClassID, v.Reason)
	}
	if err = w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d violations, %d fixed\n", len(report.Violations), report.Fixed)
	return nil
}
