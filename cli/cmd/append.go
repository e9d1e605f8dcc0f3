package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/wkalt/strata/client"
	"github.com/wkalt/strata/stream"
)

var (
	appendStreamID   uint64
	appendBaseOffset uint64
	appendCount      uint32
)

// appendCmd represents the append command
var appendCmd = &cobra.Command{
	Use:   "append [payload]",
	Short: "Append a batch of records to a stream",
	Long: `Append a batch of records to a stream. The payload is taken from the
argument, or from stdin when the argument is omitted or "-". The batch
covers offsets [base-offset, base-offset+count).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		var payload []byte
		if len(args) == 0 || args[0] == "-" {
			data, err := io.ReadAll(os.Stdin)
			checkErr(err)
			payload = data
		} else {
			payload = []byte(args[0])
		}

		c := client.NewRemote(serverURL, sharedKey)
		defer c.Close()
		s, err := c.Open(ctx, appendStreamID)
		checkErr(err)
		offset, err := s.Append(ctx, stream.RecordBatch{
			StreamID:   appendStreamID,
			BaseOffset: appendBaseOffset,
			Count:      appendCount,
			Payload:    payload,
		})
		checkErr(err)
		fmt.Println(offset)
	},
}

func init() {
	rootCmd.AddCommand(appendCmd)

	appendCmd.Flags().Uint64VarP(&appendStreamID, "stream", "s", 0, "Stream ID")
	appendCmd.Flags().Uint64VarP(&appendBaseOffset, "base-offset", "", 0, "First offset covered by the batch")
	appendCmd.Flags().Uint32VarP(&appendCount, "count", "c", 1, "Number of records in the batch")

	appendCmd.MarkFlagRequired("stream")
	appendCmd.MarkFlagRequired("base-offset")
}
