package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wkalt/strata/cli/util"
	"github.com/wkalt/strata/client"
)

var (
	fetchStreamID uint64
	fetchStart    uint64
	fetchEnd      uint64
	fetchMaxBytes int
	fetchRaw      bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a window of records from a stream",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if fetchRaw && !util.StdoutRedirected() {
			bailf("refusing to write raw payloads to a terminal; redirect stdout or drop --raw")
		}
		c := client.NewRemote(serverURL, sharedKey)
		defer c.Close()
		s, err := c.Open(ctx, fetchStreamID)
		checkErr(err)
		result, err := s.Fetch(ctx, fetchStart, fetchEnd, fetchMaxBytes)
		checkErr(err)
		for _, record := range result.Records {
			if fetchRaw {
				_, err := os.Stdout.Write(record.Payload)
				checkErr(err)
				continue
			}
			c := getColor(record.StreamID)
			c.Printf("[%d, %d) %d records %d bytes\n",
				record.BaseOffset, record.EndOffset(), record.Count, len(record.Payload))
		}
		if !fetchRaw {
			fmt.Printf("next offset: %d (%d bytes)\n", result.NextOffset, result.SizeBytes)
		}
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().Uint64VarP(&fetchStreamID, "stream", "s", 0, "Stream ID")
	fetchCmd.Flags().Uint64VarP(&fetchStart, "start", "", 0, "First offset of the window")
	fetchCmd.Flags().Uint64VarP(&fetchEnd, "end", "", 0, "Offset past the last record of the window")
	fetchCmd.Flags().IntVarP(&fetchMaxBytes, "max-bytes", "m", 0, "Byte budget for the response (0 for no budget)")
	fetchCmd.Flags().BoolVarP(&fetchRaw, "raw", "r", false, "Write record payloads to stdout instead of summaries")

	fetchCmd.MarkFlagRequired("stream")
	fetchCmd.MarkFlagRequired("end")
}
