// Package report renders posting activity into plain-text and HTML summaries.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// Builder creates reports from content log entries
type Builder struct {
	maxEntries int
	template   *template.Template
}

// New creates a new report builder
func New(maxEntries int) (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = 50
	}

	return &Builder{
		maxEntries: maxEntries,
		template:   tmpl,
	}, nil
}

// Report represents a compiled report ready for saving or sending
type Report struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	Posted    int
	Failed    int
	CreatedAt time.Time
}

// Data is the template data structure
type Data struct {
	Title   string
	Account string
	Date    string
	Entries []EntryData
	Stats   StatsData
}

// EntryData is one post attempt in the report
type EntryData struct {
	Time     string
	Topic    string
	Context  string
	Text     string
	Success  bool
	Attempts int
	Error    string
	Model    string
}

// StatsData contains report statistics
type StatsData struct {
	Posted int
	Failed int
	Total  int
}

// Build creates a report over entries. title names the period, e.g. "Run" or "Daily".
func (b *Builder) Build(account, title string, entries []types.ContentLogEntry) (*Report, error) {
	sorted := append([]types.ContentLogEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PostedAt.After(sorted[j].PostedAt)
	})

	now := time.Now()
	data := Data{
		Title:   fmt.Sprintf("xpilot %s Report", title),
		Account: account,
		Date:    now.Format("Monday, January 2 15:04"),
	}
	for _, e := range sorted {
		if e.Success {
			data.Stats.Posted++
		} else {
			data.Stats.Failed++
		}
	}
	data.Stats.Total = len(sorted)

	if len(sorted) > b.maxEntries {
		sorted = sorted[:b.maxEntries]
	}
	for _, e := range sorted {
		data.Entries = append(data.Entries, EntryData{
			Time:     e.PostedAt.Local().Format("Jan 2 15:04"),
			Topic:    e.Topic,
			Context:  e.Context,
			Text:     e.Text,
			Success:  e.Success,
			Attempts: e.RetryCount,
			Error:    e.Error,
			Model:    e.Model.Model,
		})
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Report{
		Subject:   fmt.Sprintf("xpilot %s - @%s: %d posted, %d failed", title, account, data.Stats.Posted, data.Stats.Failed),
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		Posted:    data.Stats.Posted,
		Failed:    data.Stats.Failed,
		CreatedAt: now,
	}, nil
}

func buildPlainText(data Data) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%s (@%s)\n%s\n", data.Title, data.Account, data.Date))
	buf.WriteString(fmt.Sprintf("%d posted, %d failed\n\n", data.Stats.Posted, data.Stats.Failed))

	if len(data.Entries) == 0 {
		buf.WriteString("No post attempts.\n")
	}
	for i, e := range data.Entries {
		status := "posted"
		if !e.Success {
			status = "FAILED"
		}
		buf.WriteString(fmt.Sprintf("%d. [%s] %s %s after %d attempt(s)\n", i+1, e.Time, e.Topic, status, e.Attempts))
		buf.WriteString(fmt.Sprintf("   %s\n", e.Text))
		if e.Error != "" {
			buf.WriteString(fmt.Sprintf("   error: %s\n", e.Error))
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #1da1f2; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .entry { border-bottom: 1px solid #eee; padding: 15px 0; }
        .entry:last-child { border-bottom: none; }
        .topic { font-weight: bold; color: #333; }
        .context { color: #666; }
        .text { margin: 10px 0; line-height: 1.4; }
        .ok { color: #17bf63; }
        .failed { color: #e0245e; }
        .meta { color: #666; font-size: 13px; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">@{{.Account}} · {{.Date}}</div>

        {{range .Entries}}
        <div class="entry">
            <div class="topic">{{.Topic}} <span class="context">{{.Context}}</span></div>
            <div class="text">{{.Text}}</div>
            <div class="meta">
                {{if .Success}}<span class="ok">posted</span>{{else}}<span class="failed">failed</span>{{end}}
                · {{.Time}} · {{.Attempts}} attempt(s){{if .Model}} · {{.Model}}{{end}}
            </div>
            {{if .Error}}<div class="meta failed">{{.Error}}</div>{{end}}
        </div>
        {{end}}

        <div class="footer">
            {{.Stats.Posted}} posted · {{.Stats.Failed}} failed · Generated by xpilot
        </div>
    </div>
</body>
</html>`
