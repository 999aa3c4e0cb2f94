package watch

import (
	"cmp"
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/dnetui/pkg/dnet/api"
	"github.com/odvcencio/dnetui/pkg/logging"
)

// Source is the part of the API client the watcher polls.
type Source interface {
	Health(ctx context.Context) (bool, error)
	Models(ctx context.Context) ([]api.ModelInfo, error)
	Topology(ctx context.Context) (*api.TopologyInfo, error)
	Devices(ctx context.Context) (map[string]api.DeviceProperties, error)
}

// Kind names a polled resource.
type Kind int

const (
	KindHealth Kind = iota
	KindTopology
	KindDevices
	KindModels
)

func (k Kind) String() string {
	switch k {
	case KindHealth:
		return "health"
	case KindTopology:
		return "topology"
	case KindDevices:
		return "devices"
	case KindModels:
		return "models"
	default:
		return "unknown"
	}
}

// Intervals sets the polling cadence. A zero interval polls once at start
// and then only on Refresh.
type Intervals struct {
	Health   time.Duration
	Topology time.Duration
	Devices  time.Duration
	Models   time.Duration
}

// Watcher owns one poller per resource.
type Watcher struct {
	Health   Cell[bool]
	Topology Cell[*api.TopologyInfo]
	Devices  Cell[[]api.DeviceProperties]
	Models   Cell[[]api.ModelInfo]

	src       Source
	intervals Intervals
	logger    *logging.Logger
	now       func() time.Time
	kicks     map[Kind]chan struct{}
}

// New creates a watcher. Nothing is fetched until Run.
func New(src Source, intervals Intervals, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.Discard()
	}
	w := &Watcher{
		src:       src,
		intervals: intervals,
		logger:    logger.WithComponent("watch"),
		now:       time.Now,
		kicks:     make(map[Kind]chan struct{}),
	}
	for _, k := range []Kind{KindHealth, KindTopology, KindDevices, KindModels} {
		w.kicks[k] = make(chan struct{}, 1)
	}
	return w
}

// Run polls until ctx is cancelled. It returns nil on cancellation; fetch
// errors are published into the cells, never returned.
func (w *Watcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.poll(ctx, KindHealth, w.intervals.Health, func(ctx context.Context) error {
			ok, err := w.src.Health(ctx)
			if err != nil {
				w.Health.Fail(err, w.now())
				return err
			}
			w.Health.Publish(ok, w.now())
			return nil
		})
	})
	g.Go(func() error {
		return w.poll(ctx, KindTopology, w.intervals.Topology, func(ctx context.Context) error {
			topo, err := w.src.Topology(ctx)
			if err != nil {
				w.Topology.Fail(err, w.now())
				return err
			}
			w.Topology.Publish(topo, w.now())
			return nil
		})
	})
	g.Go(func() error {
		return w.poll(ctx, KindDevices, w.intervals.Devices, func(ctx context.Context) error {
			devices, err := w.src.Devices(ctx)
			if err != nil {
				w.Devices.Fail(err, w.now())
				return err
			}
			w.Devices.Publish(SortDevices(devices), w.now())
			return nil
		})
	})
	g.Go(func() error {
		return w.poll(ctx, KindModels, w.intervals.Models, func(ctx context.Context) error {
			models, err := w.src.Models(ctx)
			if err != nil {
				w.Models.Fail(err, w.now())
				return err
			}
			w.Models.Publish(models, w.now())
			return nil
		})
	})

	return g.Wait()
}

// Refresh asks the poller for k to fetch now. It never blocks.
func (w *Watcher) Refresh(k Kind) {
	select {
	case w.kicks[k] <- struct{}{}:
	default:
	}
}

func (w *Watcher) poll(ctx context.Context, k Kind, interval time.Duration, fetch func(context.Context) error) error {
	run := func() {
		start := time.Now()
		err := fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		w.logger.Fetch(k.String(), time.Since(start), err)
	}

	run()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			run()
		case <-w.kicks[k]:
			run()
		}
	}
}

// SortDevices flattens the device map ordered by ip:port.
func SortDevices(devices map[string]api.DeviceProperties) []api.DeviceProperties {
	out := make([]api.DeviceProperties, 0, len(devices))
	for _, d := range devices {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b api.DeviceProperties) int {
		return cmp.Or(
			cmp.Compare(a.LocalIP, b.LocalIP),
			cmp.Compare(a.ServerPort, b.ServerPort),
			cmp.Compare(a.Instance, b.Instance),
		)
	})
	return out
}
