package spec

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "log/slog"
    "net/http"
    "net/url"
    "os"
    "path/filepath"
    "regexp"
    "strings"
    "time"

    openapi2 "github.com/getkin/kin-openapi/openapi2"
    "github.com/getkin/kin-openapi/openapi2conv"
    "github.com/getkin/kin-openapi/openapi3"
    "gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
    InputError      ErrorCode = "InputError"
    NetworkError    ErrorCode = "NetworkError"
    ParseError      ErrorCode = "ParseError"
    ValidationError ErrorCode = "ValidationError"
    ConversionError ErrorCode = "ConversionError"
    RefError        ErrorCode = "RefError"
)

// ErrLoad matches every *LoadError via errors.Is.
var ErrLoad = errors.New("spec load error")

// LoadError is returned when a document cannot be read, parsed or fully
// dereferenced. Nothing downstream runs after one.
type LoadError struct {
    Code        ErrorCode
    Message     string
    Location    string // file path or URL
    JSONPointer string // e.g. "#/paths/~1pets/post/requestBody"
    Cause       error
}

func (e *LoadError) Error() string        { return e.Message }
func (e *LoadError) Unwrap() error        { return e.Cause }
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Settings configures loader behavior.
type Settings struct {
    // HTTPTimeout bounds each HTTP request.
    HTTPTimeout time.Duration
    // MaxRetries for transient HTTP failures (>=500, 429, or network errors).
    MaxRetries int
    // BackoffBase is the base delay for exponential backoff.
    BackoffBase time.Duration
    // AllowFileRefs permits file refs from a remote root. Local roots always
    // allow them so multi-file specs work.
    AllowFileRefs bool
    // Strict turns document validation failures into errors instead of warnings.
    Strict bool
    Logger *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
    return Settings{
        HTTPTimeout:   10 * time.Second,
        MaxRetries:    3,
        BackoffBase:   200 * time.Millisecond,
        AllowFileRefs: false,
        Logger:        slog.Default(),
    }
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option    { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithStrict(strict bool) Option          { return func(s *Settings) { s.Strict = strict } }

func WithLogger(l *slog.Logger) Option {
    return func(s *Settings) {
        if l != nil {
            s.Logger = l
        }
    }
}

// loaded is a parsed OpenAPI v3 document plus the raw source it came from.
// The raw bytes keep what kin-openapi discards: key order and the v2 host/basePath.
type loaded struct {
    doc      *openapi3.T
    raw      []byte
    location string
}

// load reads and dereferences input. If the input is Swagger v2.0 it is
// converted to v3 via kin-openapi openapi2conv first.
//
// input may be a filesystem path or an http/https URL. file:// URLs are blocked.
func load(ctx context.Context, input string, settings Settings) (*loaded, error) {
    if strings.TrimSpace(input) == "" {
        return nil, &LoadError{Code: InputError, Message: "spec: input is empty"}
    }

    // Classify input as URL or file path.
    u, uerr := url.Parse(input)
    isURL := uerr == nil && u.Scheme != "" && u.Host != ""

    var (
        raw      []byte
        location *url.URL
        display  string
        rootFile bool
    )
    if isURL {
        scheme := strings.ToLower(u.Scheme)
        if scheme == "file" {
            return nil, &LoadError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
        }
        if scheme != "http" && scheme != "https" {
            return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
        }
        body, err := fetchWithRetry(ctx, input, settings)
        if err != nil {
            return nil, &LoadError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
        }
        raw, location, display = body, u, input
    } else {
        abs, err := filepath.Abs(input)
        if err != nil {
            return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
        }
        body, err := os.ReadFile(abs)
        if err != nil {
            return nil, &LoadError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
        }
        raw, location, display, rootFile = body, &url.URL{Path: filepath.ToSlash(abs)}, abs, true
    }

    version, err := detectSpecVersion(raw)
    if err != nil {
        return nil, &LoadError{Code: ParseError, Message: err.Error(), Location: display, Cause: err}
    }

    loader := newLoader(settings, rootFile)
    var doc *openapi3.T
    switch version {
    case 3:
        doc, err = loader.LoadFromDataWithPath(raw, location)
        if err != nil {
            return nil, classifyLoadErr(err, display)
        }
    case 2:
        // Preprocess incompatible v2 constructs to improve conversion success.
        src := raw
        if fixed, changed, _ := normalizeV2Bodies(raw); changed {
            src = fixed
        }
        doc, err = convertV2ToV3(src)
        if err != nil {
            return nil, &LoadError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: display, Cause: err}
        }
        if err := loader.ResolveRefsIn(doc, location); err != nil {
            return nil, classifyLoadErr(err, display)
        }
    default:
        return nil, &LoadError{Code: ParseError, Message: "spec: unknown or unsupported OpenAPI/Swagger version", Location: display}
    }

    if err := doc.Validate(ctx); err != nil {
        if settings.Strict {
            return nil, &LoadError{Code: ValidationError, Message: err.Error(), Location: display, JSONPointer: extractJSONPointer(err), Cause: err}
        }
        settings.Logger.Warn("spec failed validation, continuing", "location", display, "err", err)
    }
    return &loaded{doc: doc, raw: raw, location: display}, nil
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
    loader := openapi3.NewLoader()
    loader.IsExternalRefsAllowed = true
    client := &http.Client{Timeout: settings.HTTPTimeout}
    allowFile := settings.AllowFileRefs || rootIsFile
    loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
        switch strings.ToLower(uri.Scheme) {
        case "", "file":
            if !allowFile {
                return nil, fmt.Errorf("blocked file ref: %s", uri.String())
            }
            path := uri.Path
            if path == "" {
                path = uri.Opaque
            }
            return os.ReadFile(filepath.FromSlash(path))
        case "http", "https":
            req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
            if err != nil {
                return nil, err
            }
            resp, err := client.Do(req)
            if err != nil {
                return nil, err
            }
            defer resp.Body.Close()
            if resp.StatusCode >= 400 {
                return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
            }
            return io.ReadAll(resp.Body)
        default:
            return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
        }
    }
    return loader
}

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else error.
func detectSpecVersion(data []byte) (int, error) {
    var root map[string]any
    if err := yaml.Unmarshal(data, &root); err != nil {
        return 0, fmt.Errorf("parse spec: %w", err)
    }
    if v, ok := root["openapi"]; ok {
        if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
            return 3, nil
        }
    }
    if v, ok := root["swagger"]; ok {
        if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
            return 2, nil
        }
    }
    return 0, fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

// convertV2ToV3 goes through JSON so openapi2.T's json tags ($ref, basePath, ...) apply.
func convertV2ToV3(data []byte) (*openapi3.T, error) {
    js, err := yamlToJSON(data)
    if err != nil {
        return nil, err
    }
    var v2 openapi2.T
    if err := json.Unmarshal(js, &v2); err != nil {
        return nil, err
    }
    return openapi2conv.ToV3(&v2)
}

// yamlToJSON re-encodes YAML (or JSON) as JSON. Non-string mapping keys such as
// unquoted response codes are stringified.
func yamlToJSON(data []byte) ([]byte, error) {
    var v any
    if err := yaml.Unmarshal(data, &v); err != nil {
        return nil, err
    }
    return json.Marshal(jsonCompatible(v))
}

func jsonCompatible(v any) any {
    switch t := v.(type) {
    case map[string]any:
        for k, val := range t {
            t[k] = jsonCompatible(val)
        }
        return t
    case map[any]any:
        out := make(map[string]any, len(t))
        for k, val := range t {
            out[fmt.Sprint(k)] = jsonCompatible(val)
        }
        return out
    case []any:
        for i := range t {
            t[i] = jsonCompatible(t[i])
        }
        return t
    default:
        return v
    }
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
    client := &http.Client{Timeout: settings.HTTPTimeout}
    var lastErr error
    backoff := settings.BackoffBase
    if backoff <= 0 {
        backoff = 200 * time.Millisecond
    }
    attempts := settings.MaxRetries
    if attempts <= 0 {
        attempts = 1
    }
    for i := 0; i < attempts; i++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
        if err != nil {
            return nil, err
        }
        resp, err := client.Do(req)
        if err == nil && resp.StatusCode < 300 {
            body, rerr := io.ReadAll(resp.Body)
            resp.Body.Close()
            return body, rerr
        }
        if err != nil {
            lastErr = err
        } else {
            status := resp.StatusCode
            if status >= 500 || status == http.StatusTooManyRequests {
                resp.Body.Close()
                lastErr = fmt.Errorf("transient http error %d", status)
            } else {
                body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
                resp.Body.Close()
                return nil, fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body)))
            }
        }
        if i == attempts-1 {
            break
        }
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(backoff):
        }
        backoff *= 2
    }
    if lastErr == nil {
        lastErr = errors.New("fetch failed")
    }
    return nil, lastErr
}

// classifyLoadErr maps kin-openapi loader failures onto error codes. The loader
// reports broken refs and syntax errors through plain strings.
func classifyLoadErr(err error, location string) error {
    msg := strings.ToLower(err.Error())
    code := ValidationError
    switch {
    case strings.Contains(msg, "ref"), strings.Contains(msg, "resolve"), strings.Contains(msg, "bad data in"),
        strings.Contains(msg, "no such file"), strings.Contains(msg, "blocked file"),
        strings.Contains(msg, "map key"), strings.Contains(msg, "not found"):
        code = RefError
    case strings.Contains(msg, "parse"), strings.Contains(msg, "invalid character"), strings.Contains(msg, "yaml"), strings.Contains(msg, "unmarshal"):
        code = ParseError
    }
    return &LoadError{Code: code, Message: err.Error(), Location: location, JSONPointer: extractJSONPointer(err), Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
    if err == nil {
        return ""
    }
    if me, ok := err.(openapi3.MultiError); ok {
        if len(me) > 0 {
            return extractJSONPointer(me[0])
        }
    }
    var se *openapi3.SchemaError
    if errors.As(err, &se) {
        if parts := se.JSONPointer(); len(parts) > 0 {
            return "#/" + strings.Join(parts, "/")
        }
        if se.SchemaField != "" {
            return se.SchemaField
        }
    }
    if m := jsonPtrRe.FindString(err.Error()); m != "" {
        return m
    }
    return ""
}
