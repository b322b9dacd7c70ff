package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/delaneyj/resumeparty/dom"
	"github.com/delaneyj/resumeparty/scheduler"
	"github.com/delaneyj/resumeparty/snapshot"
	"github.com/delaneyj/resumeparty/store"
)

func main() {
	flag.Parse()

	f, err := os.Create("default.pgo")
	if err != nil {
		log.Fatal(err)
	}
	pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()

	log.Printf("warming up")

	benchmarkPropagate(true)
	benchmarkPause(true)
	benchmarkResume(true)
}

var (
	ww    = []int{1, 10, 100, 1_000}
	hh    = []int{1, 10, 100}
	iters = 100
)

func key(j int) string {
	return fmt.Sprintf("k%d", j)
}

// app renders w hosts that each read h keys of one shared store.
func app(w, h int) (*store.Container, *dom.Node, *store.Object) {
	root := dom.NewElement("div")
	c := store.New(root)

	props := make(map[string]any, h)
	for j := 0; j < h; j++ {
		props[key(j)] = j
	}
	state := c.NewStore(props)

	for i := 0; i < w; i++ {
		host := dom.NewElement("p")
		root.Append(host)
		c.Context(host).Seq = []any{state}
		read(c.NewInvocation(host, host, store.EventRender), state, h)
	}
	return c, root, state
}

func read(inv *store.Invocation, state *store.Object, h int) {
	for j := 0; j < h; j++ {
		state.Get(inv, key(j))
	}
}

func newTable(title string, extra ...any) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	header := table.Row{"benchmark", "avg", "min", "p75", "p99", "max"}
	tbl.AppendHeader(append(header, extra...))
	return tbl
}

func row(name string, calc *tachymeter.Metrics, extra ...any) table.Row {
	r := table.Row{
		name,
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P75,
		calc.Time.P99,
		calc.Time.Max,
	}
	return append(r, extra...)
}

func benchmarkPropagate(shouldRender bool) {
	ctx := context.Background()
	tbl := newTable("Propagate")

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			c, _, state := app(w, h)
			s := scheduler.Attach(c, scheduler.WithRenderer(
				func(ctx context.Context, inv *store.Invocation, ec *store.ElementContext) error {
					read(inv, ec.Seq[0].(*store.Object), h)
					return nil
				},
			))

			for i := 0; i < iters; i++ {
				start := time.Now()
				if err := state.Set(nil, key(0), i+h); err != nil {
					log.Panic(err)
				}
				if err := s.Flush(ctx); err != nil {
					log.Panic(err)
				}
				tach.AddTime(time.Since(start))
			}

			tbl.AppendRows([]table.Row{
				row(fmt.Sprintf("propagate: %d * %d", w, h), tach.Calc()),
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
}

func benchmarkPause(shouldRender bool) {
	tbl := newTable("Pause", "payload")

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			c, root, _ := app(w, h)
			var size int
			for i := 0; i < iters; i++ {
				start := time.Now()
				snap, err := snapshot.Pause(c, root)
				if err != nil {
					log.Panic(err)
				}
				data, err := snap.JSON()
				if err != nil {
					log.Panic(err)
				}
				tach.AddTime(time.Since(start))
				size = len(data)
			}

			tbl.AppendRows([]table.Row{
				row(fmt.Sprintf("pause: %d * %d", w, h), tach.Calc(), humanize.Bytes(uint64(size))),
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
}

func benchmarkResume(shouldRender bool) {
	tbl := newTable("Resume", "html")

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			c, root, _ := app(w, h)
			var buf bytes.Buffer
			if _, err := snapshot.WriteHTML(&buf, c, root); err != nil {
				log.Panic(err)
			}
			page := buf.Bytes()

			for i := 0; i < iters; i++ {
				doc, err := dom.Parse(bytes.NewReader(page))
				if err != nil {
					log.Panic(err)
				}
				start := time.Now()
				_, report, err := snapshot.ResumeContainer(doc)
				if err != nil {
					log.Panic(err)
				}
				if err := report.Err(); err != nil {
					log.Panic(err)
				}
				tach.AddTime(time.Since(start))
			}

			tbl.AppendRows([]table.Row{
				row(fmt.Sprintf("resume: %d * %d", w, h), tach.Calc(), humanize.Bytes(uint64(len(page)))),
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
}
