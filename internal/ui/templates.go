package ui

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/coresim/pkg/model"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"outcomeColor": func(o model.Outcome) string {
		switch o {
		case model.OutcomeTerminated:
			return "green"
		case model.OutcomeLivelock:
			return "red"
		case model.OutcomeMaxTicks:
			return "yellow"
		default:
			return "gray"
		}
	},
	"taskNames": func(views []model.TaskView) string {
		names := make([]string, len(views))
		for i, v := range views {
			names[i] = v.Name
		}
		return strings.Join(names, ", ")
	},
}

// renderTemplate renders a page inside the layout.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}
	if _, err := tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	// Add shared components.
	for compName, compContent := range templates {
		if strings.HasPrefix(compName, "components/") {
			if _, err := tmpl.New(filepath.Base(compName)).Parse(compContent); err != nil {
				return fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
	}

	return tmpl.Execute(w, data)
}

var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen">
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-7xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex h-16">
                <a href="{{.Base}}/" class="flex items-center px-2 py-2 text-xl font-bold text-indigo-600">coresim</a>
                <div class="hidden sm:ml-6 sm:flex sm:space-x-8">
                    <a href="{{.Base}}/" class="text-gray-500 hover:text-gray-700 inline-flex items-center px-1 pt-1 text-sm font-medium">Dashboard</a>
                    <a href="{{.Base}}/runs" class="text-gray-500 hover:text-gray-700 inline-flex items-center px-1 pt-1 text-sm font-medium">Runs</a>
                </div>
            </div>
        </div>
    </nav>
    <main class="max-w-7xl mx-auto py-6 sm:px-6 lg:px-8">
        {{template "content" .}}
    </main>
</body>
</html>`,

	"dashboard": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900 mb-6">Dashboard</h1>
    <div class="grid grid-cols-1 gap-5 sm:grid-cols-2 lg:grid-cols-4 mb-8">
        <div class="bg-white shadow rounded-lg p-5"><dt class="text-sm text-gray-500">Runs</dt><dd class="text-2xl font-semibold" id="total">{{.Total}}</dd></div>
        {{range $outcome, $n := .Outcomes}}
        <div class="bg-white shadow rounded-lg p-5"><dt class="text-sm text-gray-500">{{$outcome}}</dt><dd class="text-2xl font-semibold">{{$n}}</dd></div>
        {{end}}
    </div>
    <h2 class="text-lg font-medium text-gray-900 mb-2">Recent runs</h2>
    {{template "runs_table.html" .Table}}
    <p class="mt-4 text-sm text-gray-400">Up {{.Uptime}}</p>
</div>
{{end}}`,

	"runs": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900 mb-6">Runs</h1>
    {{template "runs_table.html" .Table}}
    {{template "pagination.html" .Pagination}}
</div>
{{end}}`,

	"run": `{{define "content"}}
{{with .Run}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900">{{.ID}}</h1>
    <p class="mt-1 text-sm">
        <span class="text-{{outcomeColor .Outcome}}-700 font-medium">{{.Outcome}}</span>
        after {{.Ticks}} ticks &middot; {{.Policy}} on {{.Cores}} cores (hold {{.Hold}}) &middot; {{formatTime .CreatedAt}}
    </p>
    <h2 class="mt-6 text-lg font-medium">Workload</h2>
    <p class="text-sm">Resources: A={{.Workload.Resources.A}} B={{.Workload.Resources.B}} C={{.Workload.Resources.C}}</p>
    <table class="min-w-full text-sm mt-2">
        <thead><tr><th class="text-left">Task</th><th class="text-left">Kind</th><th class="text-right">Total</th></tr></thead>
        <tbody>
        {{range .Workload.Tasks}}<tr><td>{{.Name}}</td><td>{{.Kind}}</td><td class="text-right">{{.Total}}</td></tr>{{end}}
        </tbody>
    </table>
    {{with .Result}}
    <h2 class="mt-6 text-lg font-medium">Result</h2>
    <p class="text-sm">Completed: {{taskNames .Completed}}</p>
    {{if .Stuck}}<p class="text-sm text-red-700">Waiting forever: {{taskNames .Stuck}}</p>{{end}}
    {{end}}
</div>
{{end}}
<div class="px-4 sm:px-0">
    <h2 class="text-lg font-medium">Trace</h2>
    {{if .Trace}}
    <pre class="mt-2 p-4 bg-gray-900 text-gray-100 text-xs overflow-x-auto rounded">{{.Trace}}</pre>
    {{else}}
    <p class="text-sm text-gray-500">No trace recorded for this run.</p>
    {{end}}
</div>
{{end}}`,

	"error": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900">{{.Title}}</h1>
    <p class="mt-2 text-gray-600">{{.Message}}</p>
</div>
{{end}}`,

	"components/runs_table.html": `<table class="min-w-full divide-y divide-gray-200 bg-white shadow rounded-lg text-sm">
    <thead><tr>
        <th class="px-4 py-2 text-left">ID</th><th class="px-4 py-2 text-left">Policy</th>
        <th class="px-4 py-2 text-left">Outcome</th><th class="px-4 py-2 text-right">Ticks</th>
        <th class="px-4 py-2 text-left">Created</th>
    </tr></thead>
    <tbody>
    {{range .Runs}}
    <tr>
        <td class="px-4 py-2"><a class="text-indigo-600" href="{{$.Base}}/runs/{{.ID}}">{{.ID}}</a></td>
        <td class="px-4 py-2">{{.Policy}}</td>
        <td class="px-4 py-2 text-{{outcomeColor .Outcome}}-700">{{.Outcome}}</td>
        <td class="px-4 py-2 text-right">{{.Ticks}}</td>
        <td class="px-4 py-2">{{formatTime .CreatedAt}}</td>
    </tr>
    {{else}}
    <tr><td class="px-4 py-2 text-gray-500" colspan="5">No runs yet.</td></tr>
    {{end}}
    </tbody>
</table>`,

	"components/pagination.html": `{{if or .HasPrev .HasMore}}
<div class="mt-4 flex justify-between text-sm">
    {{if .HasPrev}}<a class="text-indigo-600" href="?offset={{.PrevOffset}}&limit={{.Limit}}">Previous</a>{{else}}<span></span>{{end}}
    <span class="text-gray-500">{{.Total}} runs</span>
    {{if .HasMore}}<a class="text-indigo-600" href="?offset={{.NextOffset}}&limit={{.Limit}}">Next</a>{{end}}
</div>
{{end}}`,
}
