package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wkalt/strata/stream"
	"github.com/wkalt/strata/wal"
)

var walInspectFile string

var colors = []*color.Color{
	color.New(color.FgRed),
	color.New(color.FgBlue),
	color.New(color.FgYellow),
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgMagenta),
	color.New(color.FgWhite),
	color.New(color.FgHiRed),
	color.New(color.FgHiBlue),
	color.New(color.FgHiYellow),
	color.New(color.FgHiCyan),
	color.New(color.FgHiGreen),
	color.New(color.FgHiMagenta),
	color.New(color.FgHiWhite),
}

func getColor(streamID uint64) *color.Color {
	return colors[streamID%uint64(len(colors))]
}

func listWALFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		bailf("failed to open WAL file: %v", err)
	}
	defer f.Close()
	reader, err := wal.NewReader(f)
	if err != nil {
		bailf("failed to create WAL reader: %v", err)
	}
	for {
		offset := reader.Offset()
		rectype, record, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			bailf("failed to read record: %v", err)
		}
		switch rectype {
		case wal.WALAppend:
			entry := wal.ParseAppendEntry(record)
			flat, _, err := stream.ParseFlat(entry.Data)
			if err != nil {
				bailf("failed to parse batch at seq %d: %v", entry.Seq, err)
			}
			c := getColor(flat.StreamID)
			c.Printf("%d: seq %d append stream %d [%d, %d) %d records %d bytes\n",
				offset, entry.Seq, flat.StreamID, flat.BaseOffset, flat.EndOffset(), flat.Count, len(record))
		case wal.WALTrim:
			fmt.Printf("%d: trim %d\n", offset, wal.ParseTrimEntry(record))
		default:
			bailf("unknown record type: %v", rectype)
		}
	}
}

// walinspectCmd represents the walinspect command
var walinspectCmd = &cobra.Command{
	Use: "walinspect --file [file] | less",
	Run: func(cmd *cobra.Command, args []string) {
		if walInspectFile == "" {
			bailf("must specify --file")
		}
		listWALFile(walInspectFile)
	},
}

func init() {
	rootCmd.AddCommand(walinspectCmd)

	walinspectCmd.Flags().StringVarP(&walInspectFile, "file", "", "", "WAL file to inspect")
}
