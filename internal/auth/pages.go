package auth

import "html/template"

// Browser-facing pages rendered by the callback listener. Deliberately plain
// and non-technical; the HTTP status code is the only machine-readable part.
const callbackSuccessHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Login successful</title>
  <style>
    body { font-family: sans-serif; text-align: center; margin-top: 4em; color: #2d3748; }
    p { color: #718096; }
  </style>
</head>
<body>
  <h1>Login successful</h1>
  <p>You are signed in. You can close this window and return to the terminal.</p>
</body>
</html>`

const callbackErrorHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Login failed</title>
  <style>
    body { font-family: sans-serif; text-align: center; margin-top: 4em; color: #2d3748; }
    p { color: #718096; }
  </style>
</head>
<body>
  <h1>Login failed</h1>
  {{if .Message}}<p>{{.Message}}</p>{{end}}
  <p>Close this window and try again from the terminal.</p>
</body>
</html>`

const callbackHandledHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Login already completed</title>
  <style>
    body { font-family: sans-serif; text-align: center; margin-top: 4em; color: #2d3748; }
  </style>
</head>
<body>
  <h1>Login already completed</h1>
  <p>This login attempt has already been handled. You can close this window.</p>
</body>
</html>`

var (
	successPage = template.Must(template.New("success").Parse(callbackSuccessHTML))
	errorPage   = template.Must(template.New("error").Parse(callbackErrorHTML))
	handledPage = template.Must(template.New("handled").Parse(callbackHandledHTML))
)
