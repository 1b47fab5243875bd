// Package logview pages through recorded requests and keeps the current page
// fresh while live.
package logview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/types"

	"github.com/olekukonko/tablewriter"
)

const (
	DefaultLimit    = 20
	DefaultInterval = 3 * time.Second
	MinInterval     = 3 * time.Second
	MaxInterval     = 5 * time.Second
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Notifier shows short, non-fatal messages.
type Notifier interface {
	Notify(message string)
}

// Config wires a Viewer. Out receives a fresh rendering whenever the
// displayed page changes; nil disables rendering.
type Config struct {
	API       client.IAPIClient
	Interval  time.Duration
	Limit     int
	Out       io.Writer
	Confirmer Confirmer
	Notifier  Notifier
}

// PageInfo describes the pagination controls.
type PageInfo struct {
	Page    int
	Pages   int
	HasPrev bool
	HasNext bool
}

func (p PageInfo) String() string {
	return fmt.Sprintf("Page %d of %d", p.Page, p.Pages)
}

// Pagination computes the controls for page of a collection with total
// entries. There is always at least one page.
func Pagination(page, limit, total int) PageInfo {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if page < 1 {
		page = 1
	}
	pages := (total + limit - 1) / limit
	if pages < 1 {
		pages = 1
	}
	return PageInfo{
		Page:    page,
		Pages:   pages,
		HasPrev: page > 1,
		HasNext: page < pages,
	}
}

// ClampInterval bounds the poll interval; zero selects the default.
func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	}
	return d
}

// Viewer holds the log page state. The poll loop and user actions run on
// different goroutines; mu guards everything below it.
type Viewer struct {
	api       client.IAPIClient
	interval  time.Duration
	limit     int
	out       io.Writer
	confirmer Confirmer
	notifier  Notifier

	mu       sync.Mutex
	page     int
	live     bool
	issued   uint64
	applied  uint64
	floor    uint64
	cache    *types.LogPage
	shown    *types.LogPage
	expanded map[int64]bool
}

// New creates a live Viewer on page 1.
func New(cfg Config) *Viewer {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Viewer{
		api:       cfg.API,
		interval:  ClampInterval(cfg.Interval),
		limit:     limit,
		out:       cfg.Out,
		confirmer: cfg.Confirmer,
		notifier:  cfg.Notifier,
		page:      1,
		live:      true,
		expanded:  map[int64]bool{},
	}
}

// Interval returns the effective poll interval.
func (v *Viewer) Interval() time.Duration {
	return v.interval
}

// Run polls until ctx is cancelled. Fetch errors are reported and polling
// continues.
func (v *Viewer) Run(ctx context.Context) error {
	v.poll(ctx)

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			v.poll(ctx)
		}
	}
}

func (v *Viewer) poll(ctx context.Context) {
	if err := v.Fetch(ctx); err != nil && ctx.Err() == nil {
		v.notify("Failed to fetch logs: %s", client.ErrorText(err))
	}
}

// Fetch requests the current page once. A response that arrives after a
// newer one, after a page change or after a clear is discarded.
func (v *Viewer) Fetch(ctx context.Context) error {
	seq, page := v.begin()
	result, err := v.api.ListLogs(ctx, page, v.limit)
	if err != nil {
		return err
	}
	v.apply(seq, page, result)
	return nil
}

func (v *Viewer) begin() (uint64, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issued++
	return v.issued, v.page
}

// apply stores result if it is still relevant and reports whether it was.
func (v *Viewer) apply(seq uint64, page int, result *types.LogPage) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if seq <= v.applied || seq <= v.floor || page != v.page {
		return false
	}
	v.applied = seq
	v.cache = result
	if v.live {
		v.shown = result
		v.renderLocked()
	}
	return true
}

// SetLive switches between live and paused. Resuming shows the page cached
// while paused.
func (v *Viewer) SetLive(live bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.live == live {
		return
	}
	v.live = live
	if live && v.cache != v.shown {
		v.shown = v.cache
		v.renderLocked()
	}
}

// Live reports whether the displayed page follows the poll loop.
func (v *Viewer) Live() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.live
}

// SetPage moves to page. Responses for the previous page are dropped.
func (v *Viewer) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if page != v.page {
		v.page = page
		v.cache = nil
	}
}

// Page returns the current page number.
func (v *Viewer) Page() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// ToggleDetails expands or collapses entry id and returns the new state.
func (v *Viewer) ToggleDetails(id int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.expanded[id] {
		delete(v.expanded, id)
	} else {
		v.expanded[id] = true
	}
	v.renderLocked()
	return v.expanded[id]
}

// Expanded reports whether entry id shows its details.
func (v *Viewer) Expanded(id int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded[id]
}

// Logs returns the displayed entries and the collection total.
func (v *Viewer) Logs() ([]types.LogEntry, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.shown == nil {
		return nil, 0
	}
	return v.shown.Logs, v.shown.Total
}

// Clear deletes every log after confirmation. The view is emptied and moved
// to page 1 before the request is sent; polls already in flight are ignored.
// It returns false when the user declined.
func (v *Viewer) Clear(ctx context.Context) (bool, error) {
	if v.confirmer != nil && !v.confirmer.Confirm("Clear all logs?") {
		return false, nil
	}

	v.mu.Lock()
	v.page = 1
	v.floor = v.issued
	v.cache = &types.LogPage{Logs: []types.LogEntry{}}
	v.shown = v.cache
	v.expanded = map[int64]bool{}
	v.renderLocked()
	v.mu.Unlock()

	deleted, err := v.api.ClearLogs(ctx)
	if err != nil {
		return true, err
	}
	v.notify("Cleared %d logs", deleted)
	return true, nil
}

func (v *Viewer) notify(format string, args ...interface{}) {
	if v.notifier != nil {
		v.notifier.Notify(fmt.Sprintf(format, args...))
	}
}

// Render writes the displayed page to w.
func (v *Viewer) Render(w io.Writer) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.render(w)
}

func (v *Viewer) renderLocked() {
	if v.out == nil {
		return
	}
	if err := v.render(v.out); err != nil {
		v.notify("Failed to render logs: %v", err)
	}
}

func (v *Viewer) render(w io.Writer) error {
	var logs []types.LogEntry
	total := 0
	if v.shown != nil {
		logs, total = v.shown.Logs, v.shown.Total
	}

	if len(logs) == 0 {
		if _, err := fmt.Fprintln(w, "No logs recorded."); err != nil {
			return err
		}
	} else {
		table := tablewriter.NewWriter(w)
		table.Header([]string{"ID", "TIME", "METHOD", "PATH", "RULE", "STATUS"})
		for _, entry := range logs {
			rule := "-"
			if entry.MatchedRuleID != nil {
				rule = strconv.FormatInt(*entry.MatchedRuleID, 10)
			}
			status := ""
			if entry.StatusCode != 0 {
				status = strconv.Itoa(entry.StatusCode)
			}
			table.Append([]string{
				strconv.FormatInt(entry.ID, 10),
				entry.Timestamp.Local().Format(time.DateTime),
				entry.Method,
				entry.Path,
				rule,
				status,
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
		for _, entry := range logs {
			if v.expanded[entry.ID] {
				if err := writeDetails(w, entry); err != nil {
					return err
				}
			}
		}
	}

	info := Pagination(v.page, v.limit, total)
	mode := "live"
	if !v.live {
		mode = "paused"
	}
	_, err := fmt.Fprintf(w, "%s (%d total, %s)\n", info, total, mode)
	return err
}

func writeDetails(w io.Writer, entry types.LogEntry) error {
	headers, _ := json.MarshalIndent(entry.Headers, "", "  ")
	query, _ := json.MarshalIndent(entry.Query, "", "  ")
	_, err := fmt.Fprintf(w, "--- #%d %s %s\nHeaders: %s\nQuery:   %s\nBody:    %s\nResponse: %s\n",
		entry.ID, entry.Method, entry.Path, headers, query, entry.Body, entry.Response.Body)
	return err
}
