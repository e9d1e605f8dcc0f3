package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/wkalt/strata/client"
)

var flushStreamID uint64

// flushCmd represents the flush command
var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Force migration of a stream's cached data to object storage",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c := client.NewRemote(serverURL, sharedKey)
		defer c.Close()
		s, err := c.Open(ctx, flushStreamID)
		checkErr(err)
		checkErr(s.Flush(ctx))
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)

	flushCmd.Flags().Uint64VarP(&flushStreamID, "stream", "s", 0, "Stream ID")

	flushCmd.MarkFlagRequired("stream")
}
