package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "gstbill",
	Short:         "GST-compliant invoicing backend for Indian small businesses",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var nodeID int64

func main() {
	rootCmd.PersistentFlags().Int64Var(&nodeID, "node-id", 1, "snowflake node id, unique per replica")
	rootCmd.AddCommand(serveCmd(), migrateCmd(), sweepCmd(), tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gstbill: %v\n", err)
		os.Exit(1)
	}
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}
