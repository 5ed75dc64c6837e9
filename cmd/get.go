package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fetchkit/fetchd/internal/download"
	"github.com/fetchkit/fetchd/internal/engine"
	"github.com/fetchkit/fetchd/internal/jobs"
	"github.com/fetchkit/fetchd/internal/output"
	"github.com/fetchkit/fetchd/internal/settings"
)

var (
	getQuality string
	getAudio   bool
	getTitle   string
)

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Download a single video from the command line",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := settings.Load(settingsPath)
		if err != nil {
			output.PrintError("Could not load settings: " + err.Error())
			os.Exit(1)
		}
		if err := os.MkdirAll(cfg.DownloadDir(), 0755); err != nil {
			output.PrintError("Could not create download directory: " + err.Error())
			os.Exit(1)
		}
		eng, err := engine.NewYTDLP()
		if err != nil {
			output.PrintError("Could not initialize download engine: " + err.Error())
			os.Exit(1)
		}
		svc := download.NewService(eng, cfg, nil)
		format := "video"
		if getAudio {
			format = "audio"
		}
		id, err := svc.Submit(download.Request{
			URL:           args[0],
			Format:        format,
			Quality:       getQuality,
			TitleOverride: getTitle,
		})
		if err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
		output.PrintPending("Queued " + args[0])
		pollUntilDone(svc, id)
	},
}

func pollUntilDone(svc *download.Service, id string) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		snap, ok := svc.Job(id)
		if !ok {
			output.PrintError("Job disappeared from the store")
			os.Exit(1)
		}
		switch snap.Status {
		case jobs.StatusDone:
			fmt.Println()
			output.PrintSuccess(fmt.Sprintf("Saved %s %s %s", snap.DisplayTitle, output.StyleSymbols["arrow"], snap.FilePath))
			return
		case jobs.StatusError:
			fmt.Println()
			output.PrintError(snap.Error)
			os.Exit(1)
		default:
			line := fmt.Sprintf("\r%s %s", output.ProgressBar(snap.Progress, 30), snap.Status)
			if snap.Speed != "" {
				line += " " + snap.Speed
			}
			if snap.ETA != "" {
				line += " ETA " + snap.ETA
			}
			fmt.Print(line + "   ")
		}
	}
}

func init() {
	getCmd.Flags().StringVarP(&getQuality, "quality", "q", "", "Quality token (low/medium/high) or an explicit height like 720")
	getCmd.Flags().BoolVarP(&getAudio, "audio", "x", false, "Extract audio only")
	getCmd.Flags().StringVarP(&getTitle, "title", "t", "", "Override the output title")
	rootCmd.AddCommand(getCmd)
}
