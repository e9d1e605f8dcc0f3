package cmd

import (
	"net/http"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/wkalt/strata/cli/util"
	"github.com/wkalt/strata/client"
	"github.com/wkalt/strata/engine"
	"github.com/wkalt/strata/util/httputil"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print server confirmation and cache statistics",
	Run: func(cmd *cobra.Command, args []string) {
		httpc := client.NewHTTPClient(sharedKey)
		resp, err := httpc.Get(serverURL + "/stats")
		checkErr(err)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			response := httputil.ErrorResponse{}
			if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
				bailf("unexpected status: %s", resp.Status)
			}
			bailf("%s", response.Error)
		}
		stats := engine.Stats{}
		checkErr(json.NewDecoder(resp.Body).Decode(&stats))

		headers := []string{"Log confirm", "Processed confirm", "Cache bytes", "Cache blocks"}
		data := [][]string{{
			strconv.FormatUint(stats.LogConfirmOffset, 10),
			strconv.FormatUint(stats.ProcessedConfirmOffset, 10),
			strconv.Itoa(stats.CacheSizeBytes),
			strconv.Itoa(stats.CacheBlocks),
		}}
		util.PrintTable(os.Stdout, headers, data)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
