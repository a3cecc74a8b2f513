// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded masking runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		st, err := current.store()
		if err != nil {
			return err
		}
		runs, err := st.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if json, _ := cmd.Flags().GetBool("json"); json {
			return writeJSON(runs)
		}
		fmt.Println(renderRunList(runs))
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a recorded run result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := current.store()
		if err != nil {
			return err
		}
		res, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if json, _ := cmd.Flags().GetBool("json"); json {
			return writeJSON(res)
		}
		fmt.Println(renderRun(res))
		return nil
	},
}

func init() {
	runsCmd.PersistentFlags().Bool("json", false, "output as JSON")
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
