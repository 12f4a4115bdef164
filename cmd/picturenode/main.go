// Copyright 2026 The picturechain Authors
// This file is part of the picturechain library.
//
// The picturechain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The picturechain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the picturechain library. If not, see <http://www.gnu.org/licenses/>.

// Command picturenode is the interactive client binary (§6): it joins a
// network through a tracker, then drops into a REPL exposing create,
// transfer, get, chain, images, me, and exit.
package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	uuid "github.com/hashicorp/go-uuid"
	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/klaytn/picturechain/internal/log"
	"github.com/klaytn/picturechain/node"
)

func main() {
	app := cli.NewApp()
	app.Name = "picturenode"
	app.Usage = "join a picturechain network and mine, transfer, and fetch images"
	app.ArgsUsage = "<listen_port> <tracker_host> <tracker_port>"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "TOML configuration file"},
		cli.StringFlag{Name: "username", Usage: "display name to announce to the tracker"},
		cli.BoolFlag{Name: "debug", Usage: "enable verbose logging"},
		cli.IntFlag{Name: "http-port", Usage: "serve /status, /peers, /images, /metrics on this port if nonzero"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := defaultNodeConfig()
	if path := c.String("config"); path != "" {
		if err := loadConfig(path, &cfg); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}
	if c.NArg() >= 3 {
		port, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError("listen_port must be numeric", 1)
		}
		cfg.ListenPort = uint16(port)
		cfg.TrackerAddr = fmt.Sprintf("%s:%s", c.Args().Get(1), c.Args().Get(2))
	}
	if u := c.String("username"); u != "" {
		cfg.Username = u
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	log.SetDebug(cfg.Debug)

	resolveIdentity := func() (string, string, error) {
		userID, err := uuid.GenerateUUID()
		if err != nil {
			return "", "", err
		}
		username := cfg.Username
		if username == "" {
			username = "anonymous"
		}
		return strings.ReplaceAll(userID, "-", ""), username, nil
	}

	ctx := context.Background()
	n, tc, err := node.Bootstrap(ctx, cfg.TrackerAddr, cfg.ListenPort, resolveIdentity)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("bootstrap: %v", err), 1)
	}
	defer tc.Close()
	go func() {
		if kaErr := tc.KeepAlive(); kaErr != nil {
			logger.Warn("tracker connection lost", "err", kaErr)
		}
	}()

	if err := n.Listen(cfg.ListenPort); err != nil {
		return cli.NewExitError(fmt.Sprintf("listen: %v", err), 1)
	}
	n.Start(ctx)
	defer n.Shutdown()

	if httpPort := c.Int("http-port"); httpPort != 0 {
		addr := fmt.Sprintf(":%d", httpPort)
		go func() {
			if err := http.ListenAndServe(addr, n.DebugHandler()); err != nil {
				logger.Warn("debug http server stopped", "err", err)
			}
		}()
		color.Green("debug endpoint on http://localhost:%d/status", httpPort)
	}

	color.Green("joined as %s (%s) on port %d, %d peer(s) known",
		n.Self().Username, n.Self().UserID, n.Self().ListenPort, n.PeerCount())

	repl(n)
	return nil
}

var logger = log.NewModuleLogger("picturenode")

func repl(n *node.Node) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(color.CyanString("picturechain> "))
		if err != nil {
			return
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "create", "mint":
			handleMint(n, fields)
		case "transfer", "send":
			handleTransfer(n, fields)
		case "get":
			handleGet(n, fields)
		case "chain":
			handleChain(n)
		case "images":
			handleImages(n, fields)
		case "me":
			fmt.Printf("%s (%s), %d peer(s)\n", n.Self().Username, n.Self().UserID, n.PeerCount())
		case "exit", "quit":
			return
		default:
			color.Yellow("unknown command %q (try create, transfer, get, chain, images, me, exit)", fields[0])
		}
	}
}

func handleMint(n *node.Node, fields []string) {
	if len(fields) != 2 {
		color.Yellow("usage: create <path-to-file>")
		return
	}
	content, err := ioutil.ReadFile(fields[1])
	if err != nil {
		color.Red("reading %s: %v", fields[1], err)
		return
	}
	imageID, err := n.Mint(content)
	if err != nil {
		color.Red("mint failed: %v", err)
		return
	}
	color.Green("minted image %s", imageID)
}

func handleTransfer(n *node.Node, fields []string) {
	if len(fields) != 3 {
		color.Yellow("usage: transfer <image_id> <receiver_user_id>")
		return
	}
	if err := n.Transfer(fields[1], fields[2]); err != nil {
		color.Red("transfer failed: %v", err)
		return
	}
	color.Green("transferred %s to %s", fields[1], fields[2])
}

func handleGet(n *node.Node, fields []string) {
	if len(fields) != 2 {
		color.Yellow("usage: get <image_id>")
		return
	}
	imageID := fields[1]
	data, ok := n.Fetch(imageID)
	if !ok {
		color.Yellow("image %s not found locally or on any known peer", imageID)
		return
	}
	if err := ioutil.WriteFile(imageID, data, 0644); err != nil {
		color.Red("writing %s: %v", imageID, err)
		return
	}
	color.Green("wrote %s (%d bytes) to %s", imageID, len(data), imageID)
}

func handleChain(n *node.Node) {
	for i, b := range n.Chain().Blocks() {
		fmt.Printf("#%d %s\n", i, b.String())
	}
}

func handleImages(n *node.Node, fields []string) {
	if len(fields) == 2 {
		for _, img := range n.Chain().FindImagesOf(fields[1]) {
			fmt.Println(img)
		}
		return
	}
	for _, img := range n.Chain().AllImages() {
		fmt.Println(img)
	}
}
