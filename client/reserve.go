package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/gammadia/jeeves/client/ui"
	"github.com/gammadia/jeeves/g5k"
	"github.com/gammadia/jeeves/resfile"
	"github.com/gammadia/jeeves/reservation"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var reserveCmd = &cobra.Command{
	Use:   "reserve (SITE | -f RESFILE)",
	Short: "Reserve compute nodes",
	Args:  cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		site, request, err := reservationArguments(cmd, args)
		if err != nil {
			return err
		}

		if lo.Must(cmd.Flags().GetBool("dry-run")) {
			spec, err := reservation.Compile(request)
			if err != nil {
				return err
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(spec)
		}

		var spinner *ui.Spinner
		if !verbose {
			spinner = ui.NewSpinner("Submitting reservation")
		}
		job, err := controller.Submit(cmd.Context(), site, request)
		if err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success(fmt.Sprintf("Submitted reservation %d on '%s'", job.Uid, site))

		if request.Async {
			cmd.Println(color.HiGreenString("Reservation %d is %s", job.Uid, job.State))
			return nil
		}

		if job, err = waitWithSpinner(cmd, job); err != nil {
			return err
		}

		cmd.Println(color.HiGreenString("Reservation %d is running", job.Uid))
		for _, node := range job.AssignedNodes {
			cmd.Println(node)
		}
		return nil
	},
}

func init() {
	reserveCmd.Flags().StringP("file", "f", "", "read the reservation from a file")
	reserveCmd.Flags().Bool("dry-run", false, "compile the reservation without submitting it")
	reserveCmd.Flags().Bool("async", false, "submit and return without waiting")

	reserveCmd.Flags().String("cluster", "", "constrain the reservation to a cluster")
	reserveCmd.Flags().Int("nodes", 0, "number of nodes to reserve")
	reserveCmd.Flags().StringSlice("hosts", nil, "reserve these specific hosts")
	reserveCmd.Flags().Int("switches", 0, "number of switches to span")
	reserveCmd.Flags().Duration("walltime", 0, "duration of the reservation")
	reserveCmd.Flags().String("mode", "", "reservation mode (deploy, allow_classic_ssh)")
	reserveCmd.Flags().String("vlan", "", "network isolation (routed, isolated)")
	reserveCmd.Flags().Int("slash", 0, "subnet bit width")
	reserveCmd.Flags().String("command", "", "command to run once granted")
	reserveCmd.Flags().String("name", "", "display name of the reservation")
}

// reservationArguments assembles the request from a resfile, flags, or both;
// flags win over the file.
func reservationArguments(cmd *cobra.Command, args []string) (string, reservation.Request, error) {
	var site string
	var request reservation.Request

	if file := lo.Must(cmd.Flags().GetString("file")); file != "" {
		loaded, err := resfile.Read(file)
		if err != nil {
			return "", request, fmt.Errorf("failed to read reservation from '%s': %w", file, err)
		}
		site = loaded.Site
		request = loaded.Request()
	}
	if len(args) > 0 {
		site = args[0]
	}
	if site == "" {
		return "", request, fmt.Errorf("no site given (either as argument or in the reservation file)")
	}

	flags := cmd.Flags()
	if flags.Changed("cluster") {
		request.Cluster = lo.Must(flags.GetString("cluster"))
	}
	if flags.Changed("nodes") {
		request.Nodes = lo.Must(flags.GetInt("nodes"))
	}
	if flags.Changed("hosts") {
		request.Hosts = lo.Must(flags.GetStringSlice("hosts"))
	}
	if flags.Changed("switches") {
		request.Switches = lo.Must(flags.GetInt("switches"))
	}
	if flags.Changed("walltime") {
		request.Walltime = lo.Must(flags.GetDuration("walltime"))
	}
	if flags.Changed("mode") {
		request.Mode = reservation.Mode(lo.Must(flags.GetString("mode")))
	}
	if flags.Changed("vlan") {
		request.Vlan = reservation.Vlan(lo.Must(flags.GetString("vlan")))
	}
	if flags.Changed("slash") {
		request.Slash = lo.Must(flags.GetInt("slash"))
	}
	if flags.Changed("command") {
		request.Command = lo.Must(flags.GetString("command"))
	}
	if flags.Changed("name") {
		request.Name = lo.Must(flags.GetString("name"))
	}
	request.Async = lo.Must(flags.GetBool("async"))

	return site, request, nil
}

// waitWithSpinner blocks until the job runs, relaying scheduling progress on
// the spinner.
func waitWithSpinner(cmd *cobra.Command, job *g5k.Job) (*g5k.Job, error) {
	var spinner *ui.Spinner
	if !verbose {
		spinner = ui.NewSpinner(fmt.Sprintf("Waiting for reservation %d to run", job.Uid))
		controller.Progress = spinner.UpdateMessage
		defer func() { controller.Progress = nil }()
	}

	job, err := controller.WaitUntilRunning(cmd.Context(), job, 0)
	if err != nil {
		spinner.Fail()
		return job, err
	}
	spinner.Success(fmt.Sprintf("Reservation %d is running", job.Uid))
	return job, nil
}
