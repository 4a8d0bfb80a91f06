// Package feedtest provides an in-process feed endpoint for tests and demos.
package feedtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/aretw0/tops/pkg/domain"
)

// Server is a fake feed endpoint serving both log records and channel values.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	records  []domain.LogRecord
	filters  map[string]domain.LogFilter
	channels map[string]string
	subs     map[string][]string
	cursors  map[string]int
	status   int
	polls    int
}

// New starts a fake feed endpoint. Close it when done.
func New() *Server {
	s := &Server{
		filters:  make(map[string]domain.LogFilter),
		channels: make(map[string]string),
		subs:     make(map[string][]string),
		cursors:  make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", s.handle)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddRecord buffers a record for every session. Each session receives it once.
func (s *Server) AddRecord(r domain.LogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Drain forgets every buffered record.
func (s *Server) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.cursors = make(map[string]int)
}

// SetChannel creates or updates a channel.
func (s *Server) SetChannel(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[name] = value
}

// FailWith makes every request answer with status; 0 restores normal operation.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Filter returns the filter stored for uid.
func (s *Server) Filter(uid string) (domain.LogFilter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filters[uid]
	return f, ok
}

// Polls returns the number of GET requests served.
func (s *Server) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	uid := r.Form.Get("uid")

	switch r.Method {
	case http.MethodGet:
		s.polls++
		s.write(w, s.poll(uid))
	case http.MethodPost:
		if pattern := r.PostForm.Get("pattern"); pattern != "" {
			s.write(w, map[string]any{"channels": s.subscribe(uid, pattern)})
			return
		}
		filter, err := domain.NewLogFilter(r.PostForm.Get("sourceFilter"), r.PostForm.Get("minLevel"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.filters[uid] = filter
		s.write(w, map[string]any{})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) poll(uid string) map[string]any {
	filter, ok := s.filters[uid]
	items := []map[string]any{}
	pending := s.records[s.cursors[uid]:]
	s.cursors[uid] = len(s.records)
	for _, rec := range pending {
		if ok && !filter.Selects(rec) {
			continue
		}
		items = append(items, map[string]any{
			"tstamp": rec.Timestamp.UnixMilli(),
			"level":  rec.Level.String(),
			"source": rec.Source,
			"body":   rec.Body,
		})
	}
	values := []string{}
	for _, name := range s.subs[uid] {
		values = append(values, s.channels[name])
	}
	return map[string]any{"items": items, "values": values}
}

func (s *Server) subscribe(uid, pattern string) []map[string]string {
	out := []map[string]string{}
	p, err := domain.ParseSourcePattern(pattern)
	if err != nil {
		delete(s.subs, uid)
		return out
	}
	var names []string
	for name := range s.channels {
		if p.Matches(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	s.subs[uid] = names
	for _, name := range names {
		out = append(out, map[string]string{"name": name})
	}
	return out
}

func (s *Server) write(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/javascript")
	_, _ = w.Write([]byte("("))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte(")"))
}
