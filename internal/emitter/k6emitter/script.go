package k6emitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/mark3labs/swagger2k6/internal/spec"
)

// ScriptConfig is everything a per-operation script embeds.
type ScriptConfig struct {
	URL            string
	Method         string
	Headers        []Header
	Thresholds     []Threshold
	Payload        []byte // indented JSON literal; nil for a bodyless request
	ExpectedStatus int
	ThinkTime      int
}

// Script is one rendered per-operation k6 script.
type Script struct {
	ID       string // "METHOD path", unique within a suite
	Method   string
	Path     string
	Folder   string
	FileName string
	// RelPath is Folder/FileName with forward slashes.
	RelPath string
	Payload []byte
	Content []byte
}

// NewScriptConfig applies the fixed policy to one operation. payload nil
// means the request carries no body.
func NewScriptConfig(baseURL string, op spec.Operation, payload any) (ScriptConfig, error) {
	cfg := ScriptConfig{
		URL:            baseURL + op.Path,
		Method:         strings.ToUpper(strings.TrimSpace(op.Method)),
		Headers:        DefaultHeaders(),
		Thresholds:     DefaultThresholds(),
		ExpectedStatus: ExpectedStatus,
		ThinkTime:      ThinkTimeSeconds,
	}
	if cfg.Method == "" {
		return cfg, fmt.Errorf("k6emitter: operation %q has no method", op.Path)
	}
	if payload != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return cfg, fmt.Errorf("k6emitter: encode payload for %s: %w", op.ID(), err)
		}
		cfg.Payload = bytes.TrimRight(buf.Bytes(), "\n")
	}
	return cfg, nil
}

// RenderScript renders the k6 script for op. It fails only when the
// operation has no method or the payload cannot be encoded as JSON.
func RenderScript(baseURL string, op spec.Operation, payload any) (Script, error) {
	cfg, err := NewScriptConfig(baseURL, op, payload)
	if err != nil {
		return Script{}, err
	}
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, cfg); err != nil {
		return Script{}, fmt.Errorf("k6emitter: render %s: %w", op.ID(), err)
	}
	folder := FolderName(op.Path)
	file := cfg.Method + ScriptExt
	return Script{
		ID:       cfg.Method + " " + op.Path,
		Method:   cfg.Method,
		Path:     op.Path,
		Folder:   folder,
		FileName: file,
		RelPath:  folder + "/" + file,
		Payload:  cfg.Payload,
		Content:  buf.Bytes(),
	}, nil
}

// FolderName maps an API path to a single directory name: the leading slash
// is dropped, the remaining slashes become underscores, and characters that
// common file systems reject become underscores too, as do '#' and '%', which
// would break the master's import specifiers. "/" maps to "root".
func FolderName(path string) string {
	name := strings.TrimPrefix(path, "/")
	if name == "" {
		return "root"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/', r < 0x20, strings.ContainsRune(`<>:"\|?*#%`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	name = b.String()
	if strings.Trim(name, ".") == "" {
		name = strings.Repeat("_", len(name))
	}
	return name
}

// jsString renders s as a double-quoted JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimRight(buf.String(), "\n")
}

func jsStrings(list []string) string {
	quoted := make([]string, len(list))
	for i, s := range list {
		quoted[i] = jsString(s)
	}
	return strings.Join(quoted, ", ")
}

var templateFuncs = template.FuncMap{
	"js":    jsString,
	"jsArr": jsStrings,
	"raw":   func(b []byte) string { return string(b) },
}

var scriptTemplate = template.Must(template.New("script").Funcs(templateFuncs).Parse(`import http from 'k6/http';
import { check, sleep } from 'k6';
import { Trend, Rate } from 'k6/metrics';

const businessLatency = new Trend('` + LatencyMetric + `');
const businessErrors = new Rate('` + ErrorMetric + `');

export const options = {
  thresholds: {
{{- range .Thresholds}}
    {{js .Metric}}: [{{jsArr .Conditions}}],
{{- end}}
  },
};
{{if .Payload}}
const payload = {{raw .Payload}};
{{end}}
export default function () {
  const url = {{js .URL}};
  const params = {
    headers: {
{{- range .Headers}}
      {{js .Name}}: {{js .Value}},
{{- end}}
    },
  };
  const start = Date.now();
  const res = http.request({{js .Method}}, url, {{if .Payload}}JSON.stringify(payload){{else}}null{{end}}, params);
  businessLatency.add(Date.now() - start);
  const ok = check(res, { 'status {{.ExpectedStatus}}': (r) => r.status === {{.ExpectedStatus}} });
  businessErrors.add(!ok);
  sleep({{.ThinkTime}});
}
`))
