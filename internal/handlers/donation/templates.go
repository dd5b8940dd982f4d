package donation

import "html/template"

var (
	formTemplate   = template.Must(template.New("form").Parse(layoutTemplate + formBody))
	resultTemplate = template.Must(template.New("result").Parse(layoutTemplate + resultBody))
)

const layoutTemplate = `{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="/static/donate.css">
</head>
<body>
<main>
{{end}}
{{define "foot"}}</main>
</body>
</html>
{{end}}`

const formBody = `{{template "head" .}}
  <h1>Make a donation</h1>
  {{if .Notice}}<p class="notice" role="status">{{.Notice}}</p>{{end}}
  {{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
  <form method="post" action="/donate">
    <input type="hidden" name="form_id" value="{{.FormID}}">
    <fieldset>
      <legend>Amount ({{.Currency}})</legend>
      {{range .Presets}}
      <label class="preset"><input type="radio" name="amount" value="{{.}}"{{if eq . $.Amount}} checked{{end}}> {{.}}</label>
      {{end}}
      <label for="custom_amount">Other amount</label>
      <input id="custom_amount" name="custom_amount" inputmode="decimal" value="{{.CustomAmount}}" placeholder="e.g. 35.00">
    </fieldset>
    <label for="name">Name (optional)</label>
    <input id="name" name="name" autocomplete="name" value="{{.Name}}">
    <label for="email">Email (optional)</label>
    <input id="email" name="email" type="email" autocomplete="email" value="{{.Email}}">
    <button type="submit">Donate</button>
  </form>
{{template "foot" .}}`

const resultBody = `{{template "head" .}}
  {{if .Paid}}
  <h1>Thank you!</h1>
  <p class="success" role="status">{{.Message}}</p>
  {{else}}
  <h1>Payment not completed</h1>
  <p class="error" role="alert">{{.Message}}</p>
  {{end}}
  {{if .Details}}
  <dl>
    {{range $k, $v := .Details}}<dt>{{$k}}</dt><dd>{{$v}}</dd>
    {{end}}
  </dl>
  {{end}}
  <p><a href="/donation">Make another donation</a></p>
{{template "foot" .}}`

const stylesheet = `body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1d1f23}
main{max-width:28rem;margin:3rem auto;padding:2rem;background:#fff;border-radius:8px}
label{display:block;margin-top:1rem}
label.preset{display:inline-block;margin-right:1rem}
input:not([type=radio]){width:100%;padding:.5rem;box-sizing:border-box}
button{margin-top:1.5rem;width:100%;padding:.75rem;font-size:1rem}
.error{color:#a61b1b}
.notice{color:#6b4e00}
.success{color:#1b6b2f}
dt{font-weight:600}
`

type formPage struct {
	FormID       string
	Title        string
	Currency     string
	Presets      []string
	Amount       string
	CustomAmount string
	Name         string
	Email        string
	Notice       string
	Error        string
}

type resultPage struct {
	Title   string
	Paid    bool
	Message string
	Details map[string]string
}
