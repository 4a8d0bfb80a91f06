package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/viewer"
)

const timeLayout = "15:04:05.000"

var levelColors = map[domain.Level]string{
	domain.LevelLocal:    "#22d3ee",
	domain.LevelDebug:    "#9ca3af",
	domain.LevelInfo:     "#e5e7eb",
	domain.LevelWarning:  "#facc15",
	domain.LevelError:    "#f87171",
	domain.LevelCritical: "#ef4444",
}

// LogView streams log rows to the terminal. A terminal cannot take rows
// back, so trimming only affects the retained history used by Rows.
type LogView struct {
	out *Output

	mu      sync.Mutex
	rows    []string
	count   int
	updated time.Time
	status  string
}

// NewLogView creates a view writing to out.
func NewLogView(out *Output) *LogView {
	return &LogView{out: out}
}

// FormatRecord renders one record without styling.
func FormatRecord(r domain.LogRecord) string {
	return fmt.Sprintf("%s %-8s %-20s %s", r.Timestamp.Format(timeLayout), r.Level, r.Source, r.Body)
}

// AppendRow implements viewer.LogView.
func (v *LogView) AppendRow(row viewer.LogRow) {
	line := FormatRecord(row.Record)
	color, ok := levelColors[row.Record.Level]
	if !ok {
		color = levelColors[domain.LevelInfo]
	}
	style := v.out.Color(line, color)
	if row.Zebra {
		style = style.Faint()
	}
	if row.Record.Level >= domain.LevelCritical {
		style = style.Bold()
	}

	v.mu.Lock()
	v.rows = append(v.rows, line)
	v.mu.Unlock()
	v.out.Println(style)
}

// RemoveOldestRow implements viewer.LogView.
func (v *LogView) RemoveOldestRow() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.rows) > 0 {
		v.rows = v.rows[1:]
	}
}

// SetCount implements viewer.LogView.
func (v *LogView) SetCount(displayed int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.count = displayed
}

// SetLastUpdate implements viewer.LogView.
func (v *LogView) SetLastUpdate(at time.Time, status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.updated, v.status = at, status
}

// Rows returns the retained rows, oldest first.
func (v *LogView) Rows() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.rows...)
}

// Status summarizes the message count and last update.
func (v *LogView) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.updated.IsZero() {
		return fmt.Sprintf("%d messages, never updated", v.count)
	}
	return fmt.Sprintf("%d messages, last update %s %s", v.count, v.updated.Format(timeLayout), v.status)
}

// ChannelView prints archiver channels and their values.
type ChannelView struct {
	out *Output

	mu      sync.Mutex
	names   []string
	values  []viewer.ChannelValue
	alerts  int
	updated time.Time
}

// NewChannelView creates a view writing to out.
func NewChannelView(out *Output) *ChannelView {
	return &ChannelView{out: out}
}

// ClearChannels implements viewer.ChannelView.
func (v *ChannelView) ClearChannels() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.names = nil
}

// AddChannel implements viewer.ChannelView.
func (v *ChannelView) AddChannel(name string) {
	v.mu.Lock()
	v.names = append(v.names, name)
	v.mu.Unlock()
	v.out.Println(v.out.Color("+ "+name, "#818cf8"))
}

// SetValues implements viewer.ChannelView. Only changed values are printed.
func (v *ChannelView) SetValues(values []viewer.ChannelValue) {
	v.mu.Lock()
	previous := make(map[string]string, len(v.values))
	for _, cv := range v.values {
		previous[cv.Name] = cv.Value
	}
	v.values = values
	v.mu.Unlock()

	for _, cv := range values {
		if old, ok := previous[cv.Name]; ok && old == cv.Value {
			continue
		}
		v.out.Printf("%s = %s\n", cv.Name, v.out.Color(cv.Value, "#e5e7eb").Bold())
	}
}

// Alert implements viewer.ChannelView.
func (v *ChannelView) Alert(msg string) {
	v.mu.Lock()
	v.alerts++
	v.mu.Unlock()
	v.out.Println(v.out.Color("! "+msg, "#f87171").Bold())
}

// SetLastUpdate implements viewer.ChannelView.
func (v *ChannelView) SetLastUpdate(at time.Time, _ string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.updated = at
}

// Channels returns the listed channel names.
func (v *ChannelView) Channels() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.names...)
}

// Alerts returns the number of alerts shown.
func (v *ChannelView) Alerts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alerts
}
