package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/gammadia/jeeves/g5k"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// jobsFilter narrows listings to the current jobs of the configured user.
func jobsFilter() g5k.JobsFilter {
	return g5k.JobsFilter{
		User:   viper.GetString("api-user"),
		States: []g5k.JobState{g5k.JobWaiting, g5k.JobLaunching, g5k.JobRunning},
	}
}

var statusCmd = &cobra.Command{
	Use:   "status SITE [JOB]",
	Short: "Show the current jobs of a site, or one job in detail",
	Args:  cobra.RangeArgs(1, 2),

	RunE: func(cmd *cobra.Command, args []string) error {
		site := args[0]

		if len(args) == 1 {
			jobs, err := g5kClient.Jobs(cmd.Context(), site, jobsFilter())
			if err != nil {
				return err
			}
			for _, job := range jobs {
				cmd.Printf("%d\t%s\t%s\n", job.Uid, job.State, strings.Join(job.AssignedNodes, ","))
			}
			return nil
		}

		uid, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		job, err := g5kClient.Job(cmd.Context(), site, uid)
		if err != nil {
			return err
		}

		cmd.Printf("job:   %d\n", job.Uid)
		cmd.Printf("state: %s\n", job.State)
		if start := job.ScheduledStart(); !start.IsZero() {
			cmd.Printf("start: %s\n", start.Format(time.RFC3339))
		}
		for _, node := range job.AssignedNodes {
			cmd.Printf("node:  %s\n", node)
		}
		return nil
	},
}
