// Command nimbus is the CLI client: it speaks the daemon/UI protocol to
// add, list, pause, resume and remove torrents, and to watch one
// download's progress.
package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/jackpal/bencode-go"
	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nimbus-bt/nimbus/internal/rpc"
)

// exit codes per the daemon/UI protocol's usage contract.
const (
	exitSuccess      = 0
	exitInvalidUsage = 64
	exitFatal        = 1
)

// statsEntry/statsListPayload/addedTorrentPayload mirror the shapes
// session.Handler bencodes its stats, torrent-list and added-torrent
// responses into.
type statsEntry struct {
	Name         string `bencode:"name"`
	InfoHash     string `bencode:"info_hash"`
	Status       string `bencode:"status"`
	Paused       bool   `bencode:"paused"`
	Size         int64  `bencode:"size"`
	Downloaded   int64  `bencode:"downloaded"`
	Uploaded     int64  `bencode:"uploaded"`
	DownloadRate int64  `bencode:"download_rate"`
	UploadRate   int64  `bencode:"upload_rate"`
	Seeders      int    `bencode:"seeders"`
	Leechers     int    `bencode:"leechers"`
	Error        string `bencode:"error,omitempty"`
}
type statsListPayload struct {
	Torrents []statsEntry `bencode:"torrents"`
}
type addedTorrentPayload struct {
	InfoHash string `bencode:"info_hash"`
}

func main() {
	var daemonAddr string

	root := &cobra.Command{
		Use:   "nimbus",
		Short: "control a running nimbusd daemon",
	}
	root.PersistentFlags().StringVar(&daemonAddr, "daemon", "127.0.0.1:7246", "daemon RPC address")

	root.AddCommand(
		addTorrentCmd(&daemonAddr),
		addMagnetCmd(&daemonAddr),
		listCmd(&daemonAddr),
		pauseCmd(&daemonAddr),
		resumeCmd(&daemonAddr),
		removeCmd(&daemonAddr),
		watchCmd(&daemonAddr),
		quitCmd(&daemonAddr),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorstring.Color("[red]"+err.Error()))
		if _, ok := err.(usageError); ok {
			os.Exit(exitInvalidUsage)
		}
		os.Exit(exitFatal)
	}
}

// usageError marks an error as a bad-invocation problem rather than a
// runtime failure, so main can choose the right exit code.
type usageError struct{ error }

func dial(addr string) (*rpc.Client, error) { return rpc.Dial("tcp", addr) }

func call(addr string, req rpc.Request) (rpc.Response, error) {
	c, err := dial(addr)
	if err != nil {
		return rpc.Response{}, fmt.Errorf("connecting to daemon at %s: %w", addr, err)
	}
	defer c.Close()
	return c.Call(req)
}

func addTorrentCmd(addr *string) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "add-torrent <file>",
		Short: "add a torrent from a .torrent file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ioutil.ReadFile(args[0])
			if err != nil {
				return usageError{err}
			}
			resp, err := call(*addr, rpc.Request{Command: rpc.CommandAddTorrent, Torrent: data, DataDir: dataDir})
			if err != nil {
				return err
			}
			var out addedTorrentPayload
			if err := bencode.Unmarshal(bytes.NewReader(resp.Payload), &out); err != nil {
				return err
			}
			fmt.Println(colorstring.Color("[green]added[reset] " + out.InfoHash))
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory to write torrent content to (defaults to the daemon's configured data dir)")
	return cmd
}

func addMagnetCmd(addr *string) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "add-magnet <uri>",
		Short: "add a torrent from a magnet URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := call(*addr, rpc.Request{Command: rpc.CommandAddMagnet, Magnet: args[0], DataDir: dataDir})
			if err != nil {
				if isBadMagnet(err) {
					return usageError{err}
				}
				return err
			}
			var out addedTorrentPayload
			if err := bencode.Unmarshal(bytes.NewReader(resp.Payload), &out); err != nil {
				return err
			}
			fmt.Println(colorstring.Color("[green]added[reset] " + out.InfoHash))
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory to write torrent content to (defaults to the daemon's configured data dir)")
	return cmd
}

func isBadMagnet(err error) bool {
	return err != nil && len(err.Error()) > 0 && bytes.Contains([]byte(err.Error()), []byte("magnet"))
}

func listCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list every torrent the daemon manages",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := call(*addr, rpc.Request{Command: rpc.CommandListTorrents})
			if err != nil {
				return err
			}
			var out statsListPayload
			if err := bencode.Unmarshal(bytes.NewReader(resp.Payload), &out); err != nil {
				return err
			}
			for _, s := range out.Torrents {
				printStats(s)
			}
			return nil
		},
	}
}

func printStats(s statsEntry) {
	color := "green"
	if s.Error != "" {
		color = "red"
	} else if s.Paused {
		color = "yellow"
	}
	line := fmt.Sprintf("[%s]%-40s[reset] %-20s %6.1f%%  ↓%8d/s ↑%8d/s",
		color, s.Name, s.Status, percent(s.Downloaded, s.Size), s.DownloadRate, s.UploadRate)
	fmt.Println(colorstring.Color(line))
	if s.Error != "" {
		fmt.Println(colorstring.Color("  [red]error: " + s.Error))
	}
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(done) / float64(total)
}

func pauseCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <info-hash>",
		Short: "pause a torrent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := call(*addr, rpc.Request{Command: rpc.CommandPause, InfoHash: args[0]})
			return err
		},
	}
}

func resumeCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <info-hash>",
		Short: "resume a paused torrent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := call(*addr, rpc.Request{Command: rpc.CommandResume, InfoHash: args[0]})
			return err
		},
	}
}

func removeCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <info-hash>",
		Short: "stop a torrent and delete its resume state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := call(*addr, rpc.Request{Command: rpc.CommandRemoveTorrent, InfoHash: args[0]})
			return err
		},
	}
}

func quitCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quit <info-hash>",
		Short: "alias for remove, kept for the daemon/UI protocol's Quit naming",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := call(*addr, rpc.Request{Command: rpc.CommandRemoveTorrent, InfoHash: args[0]})
			return err
		},
	}
}

// watchCmd blocks, polling Stats and rendering a progress bar, until the
// named torrent finishes downloading or is removed.
func watchCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <info-hash>",
		Short: "show a live progress bar for one torrent until it completes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infoHash := args[0]
			var bar *progressbar.ProgressBar
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for range ticker.C {
				resp, err := call(*addr, rpc.Request{Command: rpc.CommandStats, InfoHash: infoHash})
				if err != nil {
					return err
				}
				var s statsEntry
				if err := bencode.Unmarshal(bytes.NewReader(resp.Payload), &s); err != nil {
					return err
				}
				if s.Error != "" {
					return fmt.Errorf("torrent failed: %s", s.Error)
				}
				if bar == nil && s.Size > 0 {
					bar = progressbar.DefaultBytes(s.Size, s.Name)
				}
				if bar != nil {
					bar.Set64(s.Downloaded)
				}
				if s.Status == "seeding" {
					if bar != nil {
						bar.Finish()
					}
					fmt.Println(colorstring.Color("\n[green]download complete"))
					return nil
				}
			}
			return nil
		},
	}
}
