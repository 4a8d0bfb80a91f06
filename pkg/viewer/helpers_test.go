package viewer_test

import (
	"sync"
	"time"

	"github.com/aretw0/tops/pkg/viewer"
)

type countingObserver struct {
	mu    sync.Mutex
	total int
	fails int
	names []string
}

func (o *countingObserver) ObservePoll(name string, _ time.Duration, _ int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total++
	o.names = append(o.names, name)
	if err != nil {
		o.fails++
	}
}

func (o *countingObserver) polls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.total
}

func (o *countingObserver) failures() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fails
}

type logRecorder struct {
	mu      sync.Mutex
	rows    []viewer.LogRow
	removed int
	count   int
	updates int
}

func (r *logRecorder) AppendRow(row viewer.LogRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
}

func (r *logRecorder) RemoveOldestRow() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = r.rows[1:]
	r.removed++
}

func (r *logRecorder) SetCount(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = n
}

func (r *logRecorder) SetLastUpdate(time.Time, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
}

func (r *logRecorder) bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.rows))
	for i, row := range r.rows {
		out[i] = row.Record.Body
	}
	return out
}

func (r *logRecorder) last() viewer.LogRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[len(r.rows)-1]
}

type channelRecorder struct {
	mu      sync.Mutex
	names   []string
	values  []viewer.ChannelValue
	alerts  []string
	updates int
}

func (r *channelRecorder) ClearChannels() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = nil
}

func (r *channelRecorder) AddChannel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *channelRecorder) SetValues(values []viewer.ChannelValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = values
}

func (r *channelRecorder) Alert(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, msg)
}

func (r *channelRecorder) SetLastUpdate(time.Time, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
}

func (r *channelRecorder) alertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}
