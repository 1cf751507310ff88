package main

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/gosuda/discord-bridge/bridge-chat/chat"
)

// listPolicy keeps only the markup the message list is built from. Avatars
// must point at http or https.
var listPolicy = bluemonday.NewPolicy().
	AllowElements("div", "span", "img").
	AllowAttrs("class").OnElements("div", "span", "img").
	AllowAttrs("src", "alt").OnElements("img").
	AllowURLSchemes("http", "https").
	AllowRelativeURLs(false)

type transcriptNode struct {
	Class  string
	Notice string
	Block  *chat.Block
}

// transcript mirrors the chat page as an HTML document. It also keeps a
// row-based scroll model of the message container.
type transcript struct {
	title        string
	status       chat.Status
	username     string
	nodes        []transcriptNode
	clientHeight int
	scrollTop    int
}

func newTranscript(title string, clientHeight int) *transcript {
	return &transcript{title: title, clientHeight: clientHeight}
}

func (t *transcript) RenderMessage(b chat.Block) {
	t.nodes = append(t.nodes, transcriptNode{Class: "message " + b.Origin.Class(), Block: &b})
}

func (t *transcript) RenderNotice(text string) {
	t.nodes = append(t.nodes, transcriptNode{Class: "message system-message", Notice: text})
}

func (t *transcript) SetStatus(s chat.Status)   { t.status = s }
func (t *transcript) SetUsername(name string)   { t.username = name }
func (t *transcript) SetMode(chat.Mode)         {}
func (t *transcript) ClearMessageInput()        {}
func (t *transcript) FocusMessageInput()        {}
func (t *transcript) ScrollToBottom()           { t.scrollTop = t.maxScrollTop() }
func (t *transcript) ScrollTop() int            { return t.scrollTop }
func (t *transcript) ScrollHeight() int         { return t.scrollHeight() }
func (t *transcript) Len() int                  { return len(t.nodes) }
func (t *transcript) Node(i int) transcriptNode { return t.nodes[i] }

func (t *transcript) scrollHeight() int {
	h := 0
	for _, n := range t.nodes {
		if n.Block == nil {
			h++
			continue
		}
		h += 1 + strings.Count(n.Block.Content, "\n") + 1
	}
	return h
}

func (t *transcript) maxScrollTop() int {
	return max(t.scrollHeight()-t.clientHeight, 0)
}

var listTmpl = template.Must(template.New("list").Parse(`{{range .}}<div class="{{.Class}}">{{if .Block}}<div class="message-header">{{if .Block.AvatarURL}}<img class="avatar" src="{{.Block.AvatarURL}}" alt="">{{end}}<span class="username">{{.Block.Username}}</span><span class="timestamp">{{.Block.Time}}</span></div><div class="message-content">{{.Block.Content}}</div>{{else}}{{.Notice}}{{end}}</div>
{{end}}`))

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:sans-serif;background:#36393f;color:#dcddde}
.message{padding:6px 10px;margin:4px 0;border-left:3px solid transparent;white-space:pre-wrap}
.web-message{border-color:#7289da}
.discord-message{border-color:#5865f2}
.system-message{color:#8e9297;font-style:italic}
.avatar{width:24px;height:24px;border-radius:50%;vertical-align:middle;margin-right:6px}
.username{font-weight:bold;margin-right:8px}
.timestamp{color:#8e9297;font-size:12px}
#statusText{color:{{.StatusColor}}}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p><span id="statusText">{{.Status}}</span>{{if .Username}} · <span id="usernameDisplay">Username: {{.Username}}</span>{{end}}</p>
<div id="messageContainer">
{{.List}}</div>
</body>
</html>
`))

// fragment renders the sanitized message list.
func (t *transcript) fragment() (string, error) {
	var buf bytes.Buffer
	if err := listTmpl.Execute(&buf, t.nodes); err != nil {
		return "", fmt.Errorf("render message list: %w", err)
	}
	return listPolicy.Sanitize(buf.String()), nil
}

// HTML renders the whole page.
func (t *transcript) HTML() ([]byte, error) {
	list, err := t.fragment()
	if err != nil {
		return nil, err
	}
	color := "#f04747"
	if t.status == chat.Connected {
		color = "#43b581"
	}
	var buf bytes.Buffer
	err = pageTmpl.Execute(&buf, struct {
		Title       string
		Status      string
		StatusColor template.CSS
		Username    string
		List        template.HTML
	}{
		Title:       t.title,
		Status:      t.status.String(),
		StatusColor: template.CSS(color),
		Username:    t.username,
		List:        template.HTML(list),
	})
	if err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile saves the page to path.
func (t *transcript) WriteFile(path string) error {
	page, err := t.HTML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
