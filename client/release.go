package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var releaseCmd = &cobra.Command{
	Use:   "release SITE [JOB]",
	Short: "Release a reservation, or all of them with --all",
	Args:  cobra.RangeArgs(1, 2),

	RunE: func(cmd *cobra.Command, args []string) error {
		site := args[0]

		if lo.Must(cmd.Flags().GetBool("all")) {
			user := viper.GetString("api-user")
			deadline := lo.Must(cmd.Flags().GetDuration("deadline"))
			if err := controller.ReleaseAll(cmd.Context(), site, user, deadline); err != nil {
				return err
			}
			cmd.PrintErrln(color.HiGreenString("Released all reservations of '%s' on '%s'", user, site))
			return nil
		}

		if len(args) < 2 {
			return fmt.Errorf("no job given (pass a job uid or --all)")
		}
		uid, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		job, err := g5kClient.Job(cmd.Context(), site, uid)
		if err != nil {
			return err
		}
		if err := controller.Release(cmd.Context(), job); err != nil {
			return err
		}
		cmd.PrintErrln(color.HiGreenString("Released reservation %d", uid))
		return nil
	},
}

func init() {
	releaseCmd.Flags().Bool("all", false, "release every current reservation")
	releaseCmd.Flags().Duration("deadline", 5*time.Minute, "overall deadline for --all")
}
