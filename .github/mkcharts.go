// mkcharts draws the wait schedules of the weenie runners into ./charts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"andy.dev/weenie"
)

const maxRetries = 40

type schedule struct {
	name   string
	short  string
	runner func(opts ...weenie.Option) *weenie.Runner
	waits  []time.Duration
}

// simClock advances instantly, so a schedule spanning minutes is drawn in
// microseconds.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func main() {
	log.SetFlags(log.Lshortfile)
	schedules := []*schedule{
		{
			name:  "Exponential (1s, 2m budget)",
			short: "exponential",
			runner: func(opts ...weenie.Option) *weenie.Runner {
				return weenie.NewExponential(weenie.ExponentialConfig{InitialWait: time.Second, MaxRetry: 2 * time.Minute}, opts...)
			},
		},
		{
			name:  "Periodic (1s, then 10s, 2m budget)",
			short: "periodic",
			runner: func(opts ...weenie.Option) *weenie.Runner {
				return weenie.NewPeriodic(weenie.PeriodicConfig{InitialWait: time.Second, Interval: 10 * time.Second, MaxRetry: 2 * time.Minute}, opts...)
			},
		},
		{
			name:  "Backoff (1s, 30s max wait)",
			short: "backoff",
			runner: func(opts ...weenie.Option) *weenie.Runner {
				return weenie.NewBackoff(weenie.BackoffConfig{InitialWait: time.Second, MaxJobWait: 30 * time.Second}, opts...)
			},
		},
	}

	for _, s := range schedules {
		s.waits = simulate(s)
		fmt.Printf("%-12s %v\n", s.short, s.waits)
	}
	makeCumulative(schedules)
	makeWaits(schedules)
}

// simulate runs a job that always fails and records every wait the runner
// schedules before it gives up.
func simulate(s *schedule) []time.Duration {
	var waits []time.Duration
	clock := &simClock{now: time.Unix(0, 0)}
	r := s.runner(
		weenie.WithClock(clock),
		weenie.Each(func(st weenie.Status) {
			if !st.GivingUp {
				waits = append(waits, st.NextWait)
			}
		}),
	)
	tries := 0
	_, err := r.Run(context.Background(), func(context.Context) (bool, error) {
		tries++
		if tries > maxRetries {
			return false, errors.New("too many retries to chart")
		}
		return false, nil
	}, nil, s.short)
	if err != nil && !weenie.TimedOut(err) {
		log.Fatal(err)
	}
	return waits
}

func makeCumulative(schedules []*schedule) {
	p := plot.New()
	p.X.Label.Text = "Retry"
	p.Y.Label.Text = "Seconds since first attempt"
	p.Legend.Top = true
	p.Legend.Left = true

	for i, s := range schedules {
		pts := make(plotter.XYs, 0, len(s.waits)+1)
		pts = append(pts, plotter.XY{})
		total := 0.0
		for n, w := range s.waits {
			total += w.Seconds()
			pts = append(pts, plotter.XY{X: float64(n + 1), Y: total})
		}
		l, sc, err := plotter.NewLinePoints(pts)
		if err != nil {
			log.Fatal(err)
		}
		l.Color = plotutil.Color(i)
		l.Width = vg.Points(1)
		sc.Color = plotutil.Color(i)
		sc.Shape = plotutil.Shape(i)
		p.Add(l, sc)
		p.Legend.Add(s.name, l, sc)
	}
	save(p, chartname("cumulative"))
}

func makeWaits(schedules []*schedule) {
	p := plot.New()
	p.X.Label.Text = "Retry"
	p.Y.Label.Text = "Wait (seconds)"
	p.Legend.Top = true

	w := vg.Points(6)
	for i, s := range schedules {
		vals := make(plotter.Values, len(s.waits))
		for n, d := range s.waits {
			vals[n] = d.Seconds()
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			log.Fatal(err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = w * vg.Length(i-len(schedules)/2)
		p.Add(bars)
		p.Legend.Add(s.name, bars)
	}
	p.Legend.ThumbnailWidth = 2 * w
	save(p, chartname("waits"))
}

func save(p *plot.Plot, file string) {
	fmt.Println(file)
	if err := p.Save(8*vg.Inch, 4*vg.Inch, file); err != nil {
		log.Fatal(err)
	}
}

func chartname(parts ...any) string {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal("os.Getwd():", err)
	}
	fname := []byte(filepath.Join(cwd, "charts") + string(filepath.Separator))
	for i, p := range parts {
		fname = fmt.Append(fname, p)
		if i < len(parts)-1 {
			fname = fmt.Append(fname, "_")
		}
	}
	fname = fmt.Append(fname, ".png")
	return string(fname)
}
