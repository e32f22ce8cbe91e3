package httpadapter

import (
	"html/template"
	"net/http"

	"vanguard/internal/domain"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Vanguard SAI-838</title>
</head>
<body>
<h1>VANGUARD SAI-838</h1>
<table>
<thead><tr><th>ID</th><th>Target</th><th>Cost</th><th>Status</th><th>Report</th></tr></thead>
<tbody>
{{- range .Jobs}}
<tr>
<td>{{.ID}}</td>
<td>{{.Target}}</td>
<td>${{.Cost}}</td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{if .PDF}}<a href="/reports/{{.PDF}}">{{.PDF}}</a>{{end}}</td>
</tr>
{{- else}}
<tr><td colspan="5">No jobs yet.</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

type indexData struct {
	Jobs []domain.Job
}

// index renders the job listing, most recent first.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.auditor.Jobs(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, indexData{Jobs: jobs}); err != nil {
		s.log.Error("render index", "err", err)
	}
}
