package k6emitter

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"
)

// ConsistencyError reports scripts that cannot coexist in one suite: the same
// operation twice, or two operations that map to the same file.
type ConsistencyError struct {
	Kind  string // "identifier" or "path"
	Value string
	First string
	Dup   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("k6emitter: duplicate %s %q (%s and %s)", e.Kind, e.Value, e.First, e.Dup)
}

type suiteEntry struct {
	Ident  string
	Import string
	Name   string
}

type suiteData struct {
	Entries    []suiteEntry
	Count      int
	Thresholds []Threshold
	ThinkTime  int
}

// Aggregate renders the master script that runs every script exactly once, in
// order, on a single VU. importDir is the output directory as seen from the
// master script ("./tests"). Zero scripts yield a master that does nothing.
func Aggregate(scripts []Script, importDir string) ([]byte, error) {
	if err := checkConsistency(scripts); err != nil {
		return nil, err
	}
	dir := importDir
	if dir == "" {
		dir = "."
	}

	data := suiteData{
		Count:      len(scripts),
		Thresholds: suiteThresholds(len(scripts)),
		ThinkTime:  ThinkTimeSeconds,
	}
	for i, s := range scripts {
		data.Entries = append(data.Entries, suiteEntry{
			Ident:  fmt.Sprintf("test%d", i),
			Import: importPath(dir, s.RelPath),
			Name:   s.ID,
		})
	}

	var buf bytes.Buffer
	if err := masterTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("k6emitter: render master: %w", err)
	}
	return buf.Bytes(), nil
}

// importPath joins dir and rel into a relative ES module specifier. k6 needs
// the leading "./" that path.Join drops.
func importPath(dir, rel string) string {
	p := path.Join(dir, rel)
	if strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return p
	}
	return "./" + p
}

func checkConsistency(scripts []Script) error {
	ids := make(map[string]string, len(scripts))
	paths := make(map[string]string, len(scripts))
	for _, s := range scripts {
		if first, dup := ids[s.ID]; dup {
			return &ConsistencyError{Kind: "identifier", Value: s.ID, First: first, Dup: s.Path}
		}
		ids[s.ID] = s.Path
		if first, dup := paths[s.RelPath]; dup {
			return &ConsistencyError{Kind: "path", Value: s.RelPath, First: first, Dup: s.ID}
		}
		paths[s.RelPath] = s.ID
	}
	return nil
}

var masterTemplate = template.Must(template.New("master").Funcs(templateFuncs).Parse(`import exec from 'k6/execution';
import { group, sleep } from 'k6';
import { Counter } from 'k6/metrics';
{{- range .Entries}}
import {{.Ident}} from {{js .Import}};
{{- end}}

const suiteFailures = new Counter('` + SuiteFailureMetric + `');

const tests = [
{{- range .Entries}}
  { name: {{js .Name}}, run: {{.Ident}} },
{{- end}}
];

export const options = {
{{- if .Count}}
  scenarios: {
    all_tests: {
      executor: 'per-vu-iterations',
      vus: 1,
      iterations: {{.Count}},
    },
  },
{{- end}}
  thresholds: {
{{- range .Thresholds}}
    {{js .Metric}}: [{{jsArr .Conditions}}],
{{- end}}
  },
};

export default function () {
  const test = tests[exec.scenario.iterationInTest];
  if (!test) {
    return;
  }
  try {
    group(test.name, test.run);
  } catch (err) {
    suiteFailures.add(1, { test: test.name });
    console.error(` + "`${test.name} failed: ${err}`" + `);
  }
  sleep({{.ThinkTime}});
}
`))
