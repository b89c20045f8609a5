package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/gammadia/jeeves/client/ui"
	"github.com/gammadia/jeeves/reservation"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// demoCmd walks the whole lifecycle once: reserve, wait, deploy, release.
// Handy to validate credentials and site access before scripting anything.
var demoCmd = &cobra.Command{
	Use:   "demo SITE",
	Short: "Run a full reserve/deploy/release round-trip on a site",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		site := args[0]
		environment := lo.Must(cmd.Flags().GetString("environment"))

		spinner := spinnerUnlessVerbose("Submitting demo reservation")
		job, err := controller.Submit(cmd.Context(), site, reservation.Request{
			Nodes:    1,
			Walltime: lo.Must(cmd.Flags().GetDuration("walltime")),
			Mode:     reservation.ModeDeploy,
			Name:     "jeeves-demo",
		})
		if err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success(fmt.Sprintf("Submitted demo reservation %d", job.Uid))

		// Whatever happens next, don't leave the reservation behind; the
		// release must go through even if the demo was interrupted.
		defer func() {
			spinner := spinnerUnlessVerbose("Releasing demo reservation")
			if err := controller.Release(context.WithoutCancel(cmd.Context()), job); err != nil {
				spinner.Fail()
				cmd.PrintErrln(color.HiRedString(fmt.Sprint(err)))
			} else {
				spinner.Success()
			}
		}()

		if job, err = waitWithSpinner(cmd, job); err != nil {
			return err
		}

		spinner = spinnerUnlessVerbose(fmt.Sprintf("Deploying '%s'", environment))
		if _, err = controller.Deploy(cmd.Context(), site, job, environment, reservation.DeployOptions{}); err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success()

		cmd.Println(color.HiGreenString("Demo complete: %s is ready on %d node(s)", environment, len(job.AssignedNodes)))
		return nil
	},
}

func init() {
	demoCmd.Flags().String("environment", "debian11-x64-base", "OS image to deploy")
	demoCmd.Flags().Duration("walltime", 30*time.Minute, "duration of the demo reservation")
}

func spinnerUnlessVerbose(msg string) *ui.Spinner {
	if verbose {
		return nil
	}
	return ui.NewSpinner(msg)
}
