package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/scheduler"
	"github.com/delaneyj/resumeparty/snapshot"
	"github.com/delaneyj/resumeparty/store"
)

func resume(ctx context.Context, cmd *cli.Command) error {
	log := logger(cmd)

	m, err := loadManifest(cmd.String(manifestKey))
	if err != nil {
		return err
	}
	loader, err := m.Loader()
	if err != nil {
		return err
	}

	doc, err := readDocument(cmd)
	if err != nil {
		return err
	}
	c, report, err := snapshot.ResumeContainer(doc, store.WithLoader(loader), store.WithLogger(log))
	if err != nil {
		return err
	}
	log.Info("resumed",
		"entries", report.Entries,
		"subscriptions", report.Subscriptions,
		"elements", report.Elements,
		"diagnostics", len(report.Diagnostics),
	)

	s := scheduler.Attach(c)
	if event := cmd.String(eventKey); event != "" {
		id := cmd.String(elementKey)
		el := doc.Find(func(n *dom.Node) bool {
			v, ok := n.ID()
			return ok && v == id
		})
		if el == nil {
			return fmt.Errorf("no element with %s=%q", dom.AttrID, id)
		}
		if err := c.Dispatch(ctx, el, event); err != nil {
			return fmt.Errorf("dispatch %s: %w", event, err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out := cmd.String(outKey); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err = snapshot.WriteHTML(w, c, doc)
	return err
}
