package main

import (
	"github.com/gammadia/jeeves/g5k"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the sites of the platform",

	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := g5kClient.Sites(cmd.Context())
		if err != nil {
			return err
		}
		for _, site := range sites {
			cmd.Println(site.Uid)
		}
		return nil
	},
}

var clustersCmd = &cobra.Command{
	Use:   "clusters SITE",
	Short: "List the clusters of a site",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		clusters, err := g5kClient.Clusters(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, name := range lo.Map(clusters, func(c g5k.Cluster, _ int) string { return c.Uid }) {
			cmd.Println(name)
		}
		return nil
	},
}
