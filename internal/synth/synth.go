// Package synth produces example JSON request bodies that satisfy a request
// schema. Values come from a seedable faker so that runs can be made
// reproducible.
package synth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/mark3labs/swagger2k6/internal/schema"
)

const (
	defaultMaxItems = 3
	// Unbounded numbers are drawn from this span.
	defaultNumberSpan = 1000.0
	uniqueAttempts    = 10
	patternAttempts   = 10
)

// Synthesizer generates payloads. It is not safe for concurrent use: the
// faker's random source is shared by every call.
type Synthesizer struct {
	faker    *gofakeit.Faker
	optional bool
	maxItems int
	validate bool
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithSeed makes output reproducible. Zero keeps a random seed.
func WithSeed(seed int64) Option {
	return func(s *Synthesizer) { s.faker = gofakeit.New(seed) }
}

// WithOptionalFields controls whether non-required properties are populated.
func WithOptionalFields(on bool) Option {
	return func(s *Synthesizer) { s.optional = on }
}

// WithMaxItems caps how many items an array gets unless minItems asks for more.
func WithMaxItems(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxItems = n
		}
	}
}

// WithValidation toggles the final conformance check of each payload.
func WithValidation(on bool) Option {
	return func(s *Synthesizer) { s.validate = on }
}

func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		faker:    gofakeit.New(0),
		optional: true,
		maxItems: defaultMaxItems,
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns a JSON-compatible value (maps, slices, strings, float64,
// int64, bool or nil) for sch. Failures are always *Error.
func (s *Synthesizer) Synthesize(sch schema.Schema) (value any, err error) {
	if sch == nil {
		return nil, newError("#", "no schema")
	}
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, &Error{Pointer: "#", Reason: "generator panicked", Cause: fmt.Errorf("%v", r)}
		}
	}()

	value, err = s.generate(sch, "#", "")
	if err != nil {
		return nil, err
	}
	if s.validate {
		if verr := Conforms(sch, value); verr != nil {
			return nil, &Error{Pointer: "#", Reason: "generated payload does not conform", Cause: verr}
		}
	}
	return value, nil
}

func (s *Synthesizer) generate(sch schema.Schema, ptr, name string) (any, error) {
	switch v := sch.(type) {
	case *schema.Object:
		return s.object(v, ptr)
	case *schema.Array:
		return s.array(v, ptr, name)
	case *schema.String:
		return s.text(v, ptr, name)
	case *schema.Number:
		return s.number(v, ptr, name)
	case *schema.Boolean:
		return s.faker.Bool(), nil
	case *schema.Null:
		return nil, nil
	case *schema.Enum:
		if len(v.Values) == 0 {
			return nil, newError(ptr, "enum has no values")
		}
		return v.Values[s.faker.Rand.Intn(len(v.Values))], nil
	case *schema.Choice:
		return s.choice(v, ptr, name)
	case *schema.Any:
		return s.faker.Word(), nil
	case *schema.Invalid:
		return nil, newError(ptr, "%s", v.Reason)
	default:
		return nil, newError(ptr, "unsupported schema %T", sch)
	}
}

func (s *Synthesizer) object(o *schema.Object, ptr string) (any, error) {
	if o.MaxProperties != nil && o.MinProperties > *o.MaxProperties {
		return nil, newError(ptr, "minProperties %d exceeds maxProperties %d", o.MinProperties, *o.MaxProperties)
	}
	out := make(map[string]any, len(o.Properties))
	var optional []string
	for _, p := range o.Properties {
		required := o.IsRequired(p.Name)
		if !required && !s.optional {
			continue
		}
		v, err := s.generate(p.Schema, ptr+"/properties/"+escape(p.Name), p.Name)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
		if !required {
			optional = append(optional, p.Name)
		}
	}
	for _, r := range o.Required {
		if _, ok := out[r]; !ok {
			out[r] = s.faker.Word()
		}
	}

	extra := o.Additional
	if extra == nil {
		extra = &schema.Any{}
	}
	for i := 1; uint64(len(out)) < o.MinProperties; i++ {
		key := fmt.Sprintf("additionalProp%d", i)
		if _, taken := out[key]; taken {
			continue
		}
		v, err := s.generate(extra, ptr+"/additionalProperties", key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}

	if o.MaxProperties != nil {
		for len(optional) > 0 && uint64(len(out)) > *o.MaxProperties {
			delete(out, optional[len(optional)-1])
			optional = optional[:len(optional)-1]
		}
		if uint64(len(out)) > *o.MaxProperties {
			return nil, newError(ptr, "%d required properties exceed maxProperties %d", len(out), *o.MaxProperties)
		}
	}
	return out, nil
}

func (s *Synthesizer) array(a *schema.Array, ptr, name string) (any, error) {
	if a.MaxItems != nil && a.MinItems > *a.MaxItems {
		return nil, newError(ptr, "minItems %d exceeds maxItems %d", a.MinItems, *a.MaxItems)
	}
	if a.Items == nil {
		if a.MinItems > 0 {
			return nil, newError(ptr, "array must stay empty but minItems is %d", a.MinItems)
		}
		return []any{}, nil
	}

	lo := int(a.MinItems)
	if lo == 0 {
		lo = 1
	}
	hi := s.maxItems
	if hi < lo {
		hi = lo
	}
	if a.MaxItems != nil {
		if limit := int(*a.MaxItems); hi > limit {
			hi = limit
		}
		if lo > hi {
			lo = hi
		}
	}
	count := lo
	if hi > lo {
		count += s.faker.Rand.Intn(hi - lo + 1)
	}

	itemPtr := ptr + "/items"
	out := make([]any, 0, count)
	seen := map[string]bool{}
	for attempts := 0; len(out) < count && attempts < count*uniqueAttempts; attempts++ {
		v, err := s.generate(a.Items, itemPtr, name)
		if err != nil {
			return nil, err
		}
		if a.Unique {
			key, err := json.Marshal(v)
			if err != nil {
				return nil, &Error{Pointer: itemPtr, Reason: "item is not JSON", Cause: err}
			}
			if seen[string(key)] {
				continue
			}
			seen[string(key)] = true
		}
		out = append(out, v)
	}
	if uint64(len(out)) < a.MinItems {
		return nil, newError(ptr, "could only produce %d unique items of the %d required", len(out), a.MinItems)
	}
	return out, nil
}

func (s *Synthesizer) choice(c *schema.Choice, ptr, name string) (any, error) {
	if len(c.Options) == 0 {
		return nil, newError(ptr, "choice has no options")
	}
	start := s.faker.Rand.Intn(len(c.Options))
	var firstErr error
	for i := range c.Options {
		opt := c.Options[(start+i)%len(c.Options)]
		v, err := s.generate(opt, ptr, name)
		if err == nil {
			return v, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func (s *Synthesizer) text(str *schema.String, ptr, name string) (any, error) {
	if str.MaxLength != nil && str.MinLength > *str.MaxLength {
		return nil, newError(ptr, "minLength %d exceeds maxLength %d", str.MinLength, *str.MaxLength)
	}
	if v, ok := s.formatted(str.Format); ok {
		return v, nil
	}
	if str.Pattern != "" {
		return s.patterned(str, ptr)
	}
	v := s.fromName(name)
	if v == "" {
		v = s.faker.Word()
	}
	return fitLength(v, str, s.faker), nil
}

// formatted returns a value for the well-known string formats.
func (s *Synthesizer) formatted(format string) (string, bool) {
	f := s.faker
	switch strings.ToLower(format) {
	case "date-time":
		return f.Date().UTC().Format(time.RFC3339), true
	case "date":
		return f.Date().UTC().Format("2006-01-02"), true
	case "time":
		return f.Date().UTC().Format("15:04:05Z"), true
	case "email":
		return f.Email(), true
	case "uuid":
		id, err := uuid.NewRandomFromReader(f.Rand)
		if err != nil {
			return uuid.NewString(), true
		}
		return id.String(), true
	case "uri", "url":
		return f.URL(), true
	case "hostname":
		return f.DomainName(), true
	case "ipv4":
		return f.IPv4Address(), true
	case "ipv6":
		return f.IPv6Address(), true
	case "byte":
		return base64.StdEncoding.EncodeToString([]byte(f.LetterN(12))), true
	case "binary":
		return f.LetterN(16), true
	case "password":
		return f.Password(true, true, true, false, false, 12), true
	default:
		return "", false
	}
}

func (s *Synthesizer) patterned(str *schema.String, ptr string) (any, error) {
	for i := 0; i < patternAttempts; i++ {
		v := s.faker.Regex(str.Pattern)
		n := uint64(utf8.RuneCountInString(v))
		if n >= str.MinLength && (str.MaxLength == nil || n <= *str.MaxLength) {
			return v, nil
		}
	}
	return nil, newError(ptr, "no value matching pattern %q fits the length bounds", str.Pattern)
}

// fromName guesses a realistic value from the property name. It returns ""
// when nothing fits.
func (s *Synthesizer) fromName(name string) string {
	if name == "" {
		return ""
	}
	f := s.faker
	lower := strings.ToLower(name)
	has := func(subs ...string) bool {
		for _, sub := range subs {
			if strings.Contains(lower, sub) {
				return true
			}
		}
		return false
	}
	switch {
	case has("email"):
		return f.Email()
	case lower == "id" || strings.HasSuffix(lower, "_id") || strings.HasSuffix(name, "Id") || lower == "uuid":
		id, err := uuid.NewRandomFromReader(f.Rand)
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	case has("url", "uri", "website", "link"):
		return f.URL()
	case has("phone", "mobile"):
		return f.Phone()
	case has("username", "login", "handle"):
		return f.Username()
	case has("firstname", "first_name", "given"):
		return f.FirstName()
	case has("lastname", "last_name", "surname", "family"):
		return f.LastName()
	case has("name"):
		return f.Name()
	case has("password", "secret"):
		return f.Password(true, true, true, false, false, 12)
	case has("city"):
		return f.City()
	case has("country"):
		return f.Country()
	case has("company", "organization", "organisation"):
		return f.Company()
	case has("street", "address"):
		return f.Street()
	case has("zip", "postal"):
		return f.Zip()
	case has("color", "colour"):
		return f.Color()
	case has("currency"):
		return f.CurrencyShort()
	case has("created", "updated", "timestamp", "_at"):
		return f.Date().UTC().Format(time.RFC3339)
	case has("description", "comment", "bio", "summary", "message", "body", "text"):
		return f.Sentence(8)
	case has("title", "subject"):
		return strings.TrimSuffix(f.Sentence(3), ".")
	default:
		return ""
	}
}

// fitLength pads or truncates v to satisfy the length bounds.
func fitLength(v string, str *schema.String, f *gofakeit.Faker) string {
	n := uint64(utf8.RuneCountInString(v))
	if n < str.MinLength {
		v += f.LetterN(uint(str.MinLength - n))
	}
	if str.MaxLength != nil && uint64(utf8.RuneCountInString(v)) > *str.MaxLength {
		v = string([]rune(v)[:*str.MaxLength])
	}
	return v
}

func (s *Synthesizer) number(n *schema.Number, ptr, name string) (any, error) {
	lo, hi := -math.MaxFloat64, math.MaxFloat64
	if n.Min != nil {
		lo = *n.Min
	}
	if n.Max != nil {
		hi = *n.Max
	}
	switch {
	case n.Min == nil && n.Max == nil:
		lo, hi = nameRange(name)
	case n.Min == nil:
		lo = hi - defaultNumberSpan
	case n.Max == nil:
		hi = lo + defaultNumberSpan
	}
	if lo > hi {
		return nil, newError(ptr, "minimum %v exceeds maximum %v", lo, hi)
	}
	exclLo := n.Min != nil && n.ExclusiveMin
	exclHi := n.Max != nil && n.ExclusiveMax

	if n.MultipleOf != nil {
		return s.multiple(n, lo, hi, exclLo, exclHi, ptr)
	}
	if n.Integer {
		ilo, ihi := math.Ceil(lo), math.Floor(hi)
		if exclLo && ilo == lo {
			ilo++
		}
		if exclHi && ihi == hi {
			ihi--
		}
		if ilo > ihi {
			return nil, newError(ptr, "no integer lies between %v and %v", lo, hi)
		}
		if ihi-ilo > defaultNumberSpan {
			ihi = ilo + defaultNumberSpan
		}
		return int64(ilo) + s.faker.Rand.Int63n(int64(ihi-ilo)+1), nil
	}
	if lo == hi {
		if exclLo || exclHi {
			return nil, newError(ptr, "empty range at %v", lo)
		}
		return lo, nil
	}
	// Stay clear of the ends so exclusive bounds hold without special cases.
	v := lo + (hi-lo)*(0.1+0.8*s.faker.Rand.Float64())
	if r := math.Round(v*100) / 100; r > lo && r < hi {
		v = r
	}
	return v, nil
}

func (s *Synthesizer) multiple(n *schema.Number, lo, hi float64, exclLo, exclHi bool, ptr string) (any, error) {
	m := *n.MultipleOf
	if m <= 0 {
		return nil, newError(ptr, "multipleOf must be positive, got %v", m)
	}
	klo, khi := math.Ceil(lo/m), math.Floor(hi/m)
	if exclLo && klo*m <= lo {
		klo++
	}
	if exclHi && khi*m >= hi {
		khi--
	}
	if klo > khi {
		return nil, newError(ptr, "no multiple of %v lies between %v and %v", m, lo, hi)
	}
	if khi-klo > defaultNumberSpan {
		khi = klo + defaultNumberSpan
	}
	decimals := decimalPlaces(m)
	span := int64(khi - klo)
	start := s.faker.Rand.Int63n(span + 1)
	for i := int64(0); i <= span && i < 1000; i++ {
		k := klo + float64((start+i)%(span+1))
		v := roundTo(k*m, decimals)
		if !n.Integer {
			return v, nil
		}
		if v == math.Trunc(v) {
			return int64(v), nil
		}
	}
	return nil, newError(ptr, "no integer multiple of %v lies between %v and %v", m, lo, hi)
}

// nameRange picks a plausible range for unbounded numbers from the property name.
func nameRange(name string) (float64, float64) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "age"):
		return 18, 90
	case strings.Contains(lower, "percent"), strings.Contains(lower, "progress"):
		return 0, 100
	case strings.Contains(lower, "port"):
		return 1024, 65535
	case strings.Contains(lower, "year"):
		return 1970, 2030
	case strings.Contains(lower, "count"), strings.Contains(lower, "total"), strings.Contains(lower, "quantity"):
		return 1, 100
	default:
		return 1, defaultNumberSpan
	}
}

func decimalPlaces(f float64) int {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func roundTo(v float64, decimals int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return r
}

func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}
