package httpapi

import (
	"html/template"
	"net/http"

	"github.com/custodia-labs/socialrelay/internal/logger"
)

// callbackPage is shown in the popup or tab that completed the OAuth flow.
//
//nolint:misspell,lll // CSS properties use American spelling
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: #FAFAFA;
        }
        .container {
            text-align: center;
            background: white;
            padding: 48px 64px;
            max-width: 520px;
            border-radius: 16px;
            border: 1px solid #C7C8CC;
            box-shadow: 0 4px 24px rgba(0,0,0,0.08);
        }
        h1 {
            color: {{if .Success}}#333F50{{else}}#B42318{{end}};
            margin: 0 0 8px 0;
            font-size: 24px;
            font-weight: 600;
        }
        p {
            color: #7B8088;
            margin: 0 0 8px 0;
            font-size: 16px;
        }
        ul {
            list-style: none;
            padding: 0;
            color: #333F50;
        }
        .hint {
            margin-top: 16px;
            padding: 12px 16px;
            background: #FFF8E6;
            border-radius: 8px;
            color: #7A5A00;
            text-align: left;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
        {{if .Accounts}}<ul>{{range .Accounts}}<li>{{.}}</li>{{end}}</ul>{{end}}
        {{if .Remediation}}<div class="hint">{{.Remediation}}</div>{{end}}
        <p>You can close this window and return to the application.</p>
    </div>
</body>
</html>`))

// callbackView is the data rendered into callbackPage.
type callbackView struct {
	Success     bool
	Title       string
	Message     string
	Accounts    []string
	Remediation string
}

func renderCallback(w http.ResponseWriter, status int, view callbackView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, view); err != nil {
		logger.Warn("http: render callback page: %v", err)
	}
}
