package web

const defaultDatastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

const pageCSS = `
:root { color-scheme: light dark; font-family: system-ui, sans-serif; }
body { margin: 0; }
header { padding: .75rem 1rem; border-bottom: 1px solid #8884; display: flex; gap: 1rem; align-items: baseline; }
header a { font-weight: 600; text-decoration: none; color: inherit; }
.summary { margin: .75rem 1rem; color: #888; }
.columns { display: grid; grid-template-columns: repeat(5, minmax(12rem, 1fr)); gap: .75rem; padding: 0 1rem 1rem; }
.column h2 { font-size: 1rem; margin: 0 0 .5rem; }
.count { color: #888; font-weight: normal; }
.overdue, .is-overdue .due { color: #d33; }
.card { border: 1px solid #8886; border-radius: 6px; padding: .5rem; margin-bottom: .5rem; }
.card a { color: inherit; }
.meta { margin: .25rem 0 0; font-size: .85rem; color: #888; }
.empty { color: #888; font-style: italic; }
#task { max-width: 48rem; padding: 1rem; }
.comment { border-top: 1px solid #8884; padding: .5rem 0; }
.comment time { font-size: .8rem; color: #888; }
`

const pageTemplates = `
{{define "page"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="{{.DatastarURL}}"></script>
<style>{{.CSS}}</style>
</head>
<body>
<header><a href="/">Taskboard</a>{{with .Filter}}<span class="count">{{.}}</span>{{end}}</header>
{{if .Board}}{{template "board" .Board}}{{else}}{{template "task" .Task}}{{end}}
</body>
</html>{{end}}

{{define "board"}}<main id="board">
<p class="summary">{{.Summary.Overdue}} overdue · {{.Summary.Unassigned}} unassigned <button type="button" data-on:click="@get('/board/refresh' + location.search)">Reload</button></p>
<div class="columns">
{{range .Columns}}<section class="column" data-stage="{{.Stage}}">
<h2>{{.Label}} <span class="count">{{.Count}}</span>{{if .OverdueCount}} <span class="overdue">{{.OverdueCount}} overdue</span>{{end}}</h2>
{{range .Cards}}<article class="card{{if .Overdue}} is-overdue{{end}}" id="card-{{.ID}}">
<a href="/tasks/{{.ID}}">{{.Title}}</a>
<p class="meta">{{.ID}} · {{.Priority}}{{with .DueDate}} · <span class="due">due {{.}}</span>{{end}} · {{with .Assignee}}@{{.}}{{else}}unassigned{{end}}</p>
</article>
{{else}}<p class="empty">(empty)</p>
{{end}}</section>
{{end}}</div>
</main>{{end}}

{{define "task"}}<main id="task">
<h1>{{.Task.Title}}</h1>
<p class="meta">{{.Task.ID}} · {{.StageLabel}} · {{.Task.Priority}}{{with .Task.DueDate}} · due {{.}}{{end}} · {{with .Task.Assignee}}@{{.}}{{else}}unassigned{{end}}{{with .Task.ProjectName}} · {{.}}{{end}}</p>
{{with .Task.Description}}<div class="description">{{description .}}</div>{{end}}
<h2>Comments ({{len .Comments}})</h2>
{{range .Comments}}<div class="comment"><time>{{stamp .CreatedAt}}</time>{{comment .Body}}</div>
{{else}}<p class="empty">No comments.</p>
{{end}}</main>{{end}}
`
