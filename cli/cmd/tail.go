/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/wkalt/strata/client"
)

var (
	tailStreamID uint64
	tailStart    uint64
	tailWindow   uint64
	tailMaxBytes int
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow a stream from an offset, printing payloads as they arrive",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c := client.NewResilient(client.NewRemote(serverURL, sharedKey))
		defer c.Close()
		s, err := c.Open(ctx, tailStreamID).Wait(ctx)
		checkErr(err)

		pos := tailStart
		for {
			result, err := s.Fetch(ctx, pos, pos+tailWindow, tailMaxBytes).Wait(ctx)
			checkErr(err)
			for _, record := range result.Records {
				_, err := os.Stdout.Write(record.Payload)
				checkErr(err)
			}
			if result.NextOffset == pos {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			pos = result.NextOffset
		}
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.PersistentFlags().Uint64VarP(&tailStreamID, "stream", "s", 0, "Stream ID")
	tailCmd.PersistentFlags().Uint64VarP(&tailStart, "start", "", 0, "Offset to start tailing from")
	tailCmd.PersistentFlags().Uint64VarP(&tailWindow, "window", "w", 1024, "Offsets to request per fetch")
	tailCmd.PersistentFlags().IntVarP(&tailMaxBytes, "max-bytes", "m", 1<<20, "Byte budget per fetch")

	tailCmd.MarkFlagRequired("stream")
}
