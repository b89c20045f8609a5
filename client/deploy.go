package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/gammadia/jeeves/client/ui"
	"github.com/gammadia/jeeves/reservation"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy SITE JOB ENVIRONMENT",
	Short: "Install an OS image on the nodes of a running reservation",
	Args:  cobra.ExactArgs(3),

	RunE: func(cmd *cobra.Command, args []string) error {
		site := args[0]
		uid, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		environment := args[2]

		job, err := g5kClient.Job(cmd.Context(), site, uid)
		if err != nil {
			return err
		}

		key := ""
		if keyFile := lo.Must(cmd.Flags().GetString("key")); keyFile != "" {
			buf, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("failed to read public key '%s': %w", keyFile, err)
			}
			key = string(buf)
		}

		var spinner *ui.Spinner
		if !verbose {
			spinner = ui.NewSpinner(fmt.Sprintf("Deploying '%s' on %d nodes", environment, len(job.AssignedNodes)))
		}

		outcome, err := controller.Deploy(cmd.Context(), site, job, environment, reservation.DeployOptions{Key: key})
		if err != nil {
			spinner.Fail()
			for node, state := range outcome {
				if state != "OK" {
					cmd.PrintErrln(color.HiRedString("%s: %s", node, state))
				}
			}
			return err
		}
		spinner.Success(fmt.Sprintf("Deployed '%s' on %d nodes", environment, len(outcome)))
		return nil
	},
}

func init() {
	deployCmd.Flags().String("key", "", "public SSH key file to install on the nodes")
}
