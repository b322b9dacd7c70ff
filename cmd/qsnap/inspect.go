package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/snapshot"
)

var errNoInput = errors.New("missing input file")

func readDocument(cmd *cli.Command) (*dom.Node, error) {
	name := cmd.Args().First()
	if name == "" {
		return nil, errNoInput
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dom.Parse(f)
}

func inspect(ctx context.Context, cmd *cli.Command) error {
	doc, err := readDocument(cmd)
	if err != nil {
		return err
	}
	data, err := snapshot.Extract(doc)
	if err != nil {
		return err
	}
	infos, err := snapshot.Inspect(data)
	if err != nil {
		return err
	}

	subscribed := 0
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Kind", "Size", "Subscribers", "Value"})
	for _, info := range infos {
		if len(info.Subscribers) > 0 {
			subscribed++
		}
		table.Append([]string{
			info.ID,
			info.Kind,
			humanize.Bytes(uint64(info.Size)),
			strings.Join(info.Subscribers, " "),
			info.Summary,
		})
	}
	table.Render()

	fmt.Printf(
		"%s payload, %s entries, %s subscribed\n",
		humanize.Bytes(uint64(len(data))),
		humanize.Comma(int64(len(infos))),
		humanize.Comma(int64(subscribed)),
	)
	return nil
}
