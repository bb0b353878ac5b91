// Package urlcodec encodes render options into compact URL path segments and
// back.
//
// A segment is a comma-separated list of key_value tokens. Known option keys
// use short aliases (width→w, height→h, component→c, …) and scalar component
// props are flattened to top-level tokens:
//
//	w_1200,h_630,c_Banner,title_Hello+World
//
// Values that are not plain scalars, or that contain a slash, are carried as
// base64url JSON behind a "b64:" marker. Segments longer than [MaxSegmentLen]
// switch to hash mode ("o_<hash>") and the options must be looked up out of
// band.
package urlcodec

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MaxSegmentLen is the longest segment emitted before falling back to hash mode.
const MaxSegmentLen = 200

// HashLen is the number of hex characters returned by [Hash].
const HashLen = 10

const (
	hashKey    = "o"
	hashPrefix = hashKey + "_"
	b64Marker  = "b64:"
	propPrefix = "p."
	propsKey   = "props"
)

// ErrMalformed is returned for segments that cannot be decoded.
var ErrMalformed = errors.New("malformed options segment")

// aliases maps option keys to their short form, in emission order.
var aliases = []struct{ long, short string }{
	{"width", "w"},
	{"height", "h"},
	{"component", "c"},
	{"renderer", "r"},
	{"emojis", "e"},
	{"colorMode", "m"},
	{"cacheMaxAgeSeconds", "t"},
	{"url", "u"},
}

// optionKeys are top-level option names that are never props.
var optionKeys = map[string]bool{
	"width": true, "height": true, "component": true, "renderer": true,
	"emojis": true, "colorMode": true, "cacheMaxAgeSeconds": true, "url": true,
	"extension": true, "fonts": true, "html": true, "screenshot": true,
}

// ignoredKeys never take part in encoding or hashing.
var ignoredKeys = map[string]bool{"path": true, "purge": true}

var shortToLong = func() map[string]string {
	m := make(map[string]string, len(aliases))
	for _, a := range aliases {
		m[a.short] = a.long
	}
	return m
}()

var longToShort = func() map[string]string {
	m := make(map[string]string, len(aliases))
	for _, a := range aliases {
		m[a.long] = a.short
	}
	return m
}()

// Encode turns options into a path segment. When the segment would exceed
// MaxSegmentLen it returns "o_<hash>" and the hash; otherwise hash is empty.
func Encode(opts map[string]any) (segment, hash string) {
	var tokens []string

	for _, a := range aliases {
		if v, ok := opts[a.long]; ok && v != nil {
			tokens = append(tokens, token(a.short, v))
		}
	}
	for _, k := range sortedKeys(opts) {
		if _, aliased := longToShort[k]; aliased || k == propsKey || ignoredKeys[k] || strings.HasPrefix(k, "_") {
			continue
		}
		if v := opts[k]; v != nil {
			tokens = append(tokens, token(propName(k), v))
		}
	}
	if props, ok := opts[propsKey].(map[string]any); ok {
		for _, k := range sortedKeys(props) {
			v := props[k]
			if v == nil {
				continue
			}
			tokens = append(tokens, token(propName(k), v))
		}
	}

	segment = strings.Join(tokens, ",")
	if len(segment) > MaxSegmentLen {
		h := Hash(opts)
		return hashPrefix + h, h
	}
	return segment, ""
}

// Decode inverts Encode. For a hash-mode segment it returns a nil map and the
// hash to look up.
func Decode(segment string) (opts map[string]any, hash string, err error) {
	if h, ok := hashOf(segment); ok {
		return nil, h, nil
	}

	opts = make(map[string]any)
	if segment == "" {
		return opts, "", nil
	}
	props := make(map[string]any)

	for _, tok := range strings.Split(segment, ",") {
		if tok == "" {
			continue
		}
		rawKey, rawVal, ok := splitToken(tok)
		if !ok {
			return nil, "", fmt.Errorf("%w: token %q", ErrMalformed, tok)
		}
		key, err := unescape(rawKey)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		val, err := decodeValue(rawVal)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}

		switch {
		case strings.HasPrefix(key, propPrefix):
			props[strings.TrimPrefix(key, propPrefix)] = val
		case shortToLong[key] != "":
			opts[shortToLong[key]] = val
		case optionKeys[key]:
			opts[key] = val
		default:
			props[key] = val
		}
	}
	if len(props) > 0 {
		opts[propsKey] = props
	}
	return opts, "", nil
}

// Hash is a deterministic digest of opts. Map key order does not matter and
// request-only keys (path, purge, and anything starting with "_") are
// excluded.
func Hash(opts map[string]any) string {
	clean := make(map[string]any, len(opts))
	for k, v := range opts {
		if ignoredKeys[k] || strings.HasPrefix(k, "_") {
			continue
		}
		clean[k] = v
	}
	data, _ := json.Marshal(clean)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:HashLen]
}

// hashOf reports whether segment is a hash-mode segment. A prop named "o"
// is always written as "p.o" and an escaped key starts "o__", so neither
// can be mistaken for one.
func hashOf(segment string) (string, bool) {
	rest, ok := strings.CutPrefix(segment, hashPrefix)
	if !ok || rest == "" || strings.HasPrefix(rest, "_") || strings.Contains(rest, ",") {
		return "", false
	}
	return rest, true
}

// propName is the token key of a prop. Names that would read back as an
// option, as another prop or as the hash marker get the "p." prefix.
func propName(k string) string {
	if optionKeys[k] || shortToLong[k] != "" || k == hashKey || strings.HasPrefix(k, propPrefix) {
		return propPrefix + k
	}
	return k
}

func token(key string, v any) string {
	return escapeKey(key) + "_" + encodeValue(v)
}

// escapeKey escapes a token key. A trailing underscore is percent-encoded
// so the separator that follows stays the first odd underscore run.
func escapeKey(k string) string {
	if base, ok := strings.CutSuffix(k, "_"); ok {
		return escape(base) + "%5F"
	}
	return escape(k)
}

func encodeValue(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		if strings.Contains(x, "/") || strings.HasPrefix(x, b64Marker) || coerce(x) != any(x) {
			return encodeB64(x)
		}
		return escape(x)
	}
	return encodeB64(v)
}

func encodeB64(v any) string {
	data, _ := json.Marshal(v)
	return escape(b64Marker + base64.RawURLEncoding.EncodeToString(data))
}

func decodeValue(raw string) (any, error) {
	s, err := unescape(raw)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(s, b64Marker) {
		data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(s, b64Marker))
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return normalizeNumbers(v), nil
	}
	return coerce(s), nil
}

// coerce turns numeric and boolean strings into typed scalars.
func coerce(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil && strconv.Itoa(n) == s {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
		return f
	}
	return s
}

// normalizeNumbers turns integral JSON numbers into ints so decoded values
// compare equal to what was encoded.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case float64:
		if x == float64(int(x)) {
			return int(x)
		}
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
	}
	return v
}

var escaper = strings.NewReplacer(
	"%", "%25",
	"+", "%2B",
	",", "%2C",
	"/", "%2F",
	" ", "+",
	"_", "__",
)

func escape(s string) string { return escaper.Replace(s) }

func unescape(s string) (string, error) {
	s = strings.ReplaceAll(s, "__", "_")
	s = strings.ReplaceAll(s, "+", " ")
	return url.PathUnescape(s)
}

// splitToken finds the key/value separator: the first underscore run of odd
// length. Even runs are escaped underscores.
func splitToken(tok string) (key, val string, ok bool) {
	for i := 0; i < len(tok); {
		if tok[i] != '_' {
			i++
			continue
		}
		j := i
		for j < len(tok) && tok[j] == '_' {
			j++
		}
		if (j-i)%2 == 1 {
			return tok[:i], tok[i+1:], true
		}
		i = j
	}
	return "", "", false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
