/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: templates.go
Description: HTML template for the Akaylee model report. A single static page listing the
modeled edges with their conditions, the branch locations, the context map and the fuzzing
statistics of the session that produced the record.
*/

package reporting

// modelTemplate is the HTML template for a ModelReport
const modelTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Target}} - Akaylee Control-Flow Model</title>
    <style>
        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            min-height: 100vh;
            color: #333;
            margin: 0;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
        }

        .card {
            background: rgba(255, 255, 255, 0.95);
            border-radius: 15px;
            padding: 25px;
            margin-bottom: 25px;
            box-shadow: 0 8px 32px rgba(0, 0, 0, 0.1);
        }

        h1 { color: #4a5568; margin: 0 0 10px 0; }
        h2 { color: #4a5568; font-size: 1.2rem; margin-top: 0; }
        .meta { color: #718096; }

        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #e2e8f0; }
        th { color: #4a5568; text-transform: uppercase; font-size: 0.8rem; letter-spacing: 0.5px; }
        code { font-family: 'Fira Code', monospace; }

        .perfect { color: #38a169; font-weight: 700; }
        .partial { color: #d69e2e; }
        .none { color: #a0aec0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">
            <h1>{{.Target}}</h1>
            <p class="meta">Generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}}{{if .SessionID}} &middot; session {{.SessionID}}{{end}}</p>
            <p class="meta">{{.Signatures}} signatures &middot; {{len .Branches}} branches &middot; {{len .Edges}} edges</p>
        </div>

        <div class="card">
            <h2>Edge conditions</h2>
            <table>
                <tr><th>Edge</th><th>Condition</th><th>Confidence</th><th>Accepts</th><th>Rejects</th><th>Trials</th></tr>
                {{range .Edges}}
                <tr>
                    <td><code>{{.Source}} &rarr; {{.Dest}}</code></td>
                    <td>{{if .Formula}}<code>{{deref .Formula}}</code>{{else}}<span class="none">none</span>{{end}}</td>
                    <td>{{if .Confidence}}<span class="{{confidenceClass .Confidence}}">{{printf "%.3f" (derefFloat .Confidence)}}</span>{{else}}<span class="none">none</span>{{end}}</td>
                    <td>{{.Accepts}}</td>
                    <td>{{.Rejects}}</td>
                    <td>{{.Trials}}</td>
                </tr>
                {{end}}
            </table>
        </div>

        {{if .ContextMap}}
        <div class="card">
            <h2>Context map</h2>
            <table>
                <tr><th>Call site</th><th>Window</th></tr>
                {{range .ContextMap}}
                <tr><td><code>{{.CallSite}}</code></td><td>[{{.Lo}}, {{.Hi}})</td></tr>
                {{end}}
            </table>
        </div>
        {{end}}

        {{if .Stats}}
        <div class="card">
            <h2>Fuzzing</h2>
            <table>
                <tr><td>Executions</td><td>{{.Stats.Executions}}</td></tr>
                <tr><td>Failures</td><td>{{.Stats.Failures}}</td></tr>
                <tr><td>Unresolved</td><td>{{.Stats.Unresolved}}</td></tr>
                <tr><td>Signatures</td><td>{{.Stats.Signatures}}</td></tr>
                <tr><td>Recorded inputs</td><td>{{.Stats.RecordedInputs}}</td></tr>
                <tr><td>Covered events</td><td>{{.Stats.CoveredEvents}}</td></tr>
            </table>
        </div>
        {{end}}
    </div>
</body>
</html>
`
