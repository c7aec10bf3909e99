package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/izin-asrama-api/internal/app"
)

func newOverdueCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List home leaves past their planned return",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *app.Container) error {
				apps, err := c.LeaveService.ListOverdue(cmd.Context(), operatorActor)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), apps)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tRESIDENT\tPLANNED RETURN\tLATE BY")
				now := time.Now()
				for _, a := range apps {
					home, ok := a.Home()
					if !ok {
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.ResidentID,
						home.PlannedReturnTime.Local().Format("2006-01-02 15:04"),
						now.Sub(home.PlannedReturnTime).Truncate(time.Minute))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
