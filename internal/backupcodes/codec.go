// Package backupcodes generates two-factor backup codes and parses them back
// out of every storage representation the exchange has ever persisted.
//
// The backup_codes column drifted over the system's history: raw arrays, JSON
// strings, double-escaped JSON, objects wrapping the list under varying
// property names, and comma- or newline-joined blobs all exist in the wild.
// Because parsing sits on the authentication hot path it must never fail:
// every strategy is tried in order of decreasing specificity and total failure
// yields an empty list, never an error.
package backupcodes

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const (
	// DefaultCodeLength is the number of alphanumeric characters per code,
	// excluding the hyphen.
	DefaultCodeLength = 8

	maxUnescapeDepth = 3
	previewLimit     = 120
)

var (
	formattedRe = regexp.MustCompile(`^[A-Za-z0-9]{4}-[A-Za-z0-9]{4}$`)
	scanRe      = regexp.MustCompile(`[A-Za-z0-9]{4}-[A-Za-z0-9]{4}`)
	bareRunRe   = regexp.MustCompile(`\b[A-Za-z0-9]{8}\b`)
	nonAlnumRe  = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// Codec converts between canonical backup-code lists and their persisted form
type Codec struct {
	logger *slog.Logger
}

// NewCodec creates a backup-code codec
func NewCodec(logger *slog.Logger) *Codec {
	return &Codec{logger: logger}
}

// Generate produces count fresh backup codes from cryptographically random
// bytes. Codes of length >= 8 are formatted as two hyphen-joined halves
// (e.g. "3F9A-C04B"); shorter codes are emitted unhyphenated.
func (c *Codec) Generate(count, length int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("backup code count must be positive, got %d", count)
	}
	if length <= 0 {
		length = DefaultCodeLength
	}

	codes := make([]string, count)
	for i := 0; i < count; i++ {
		buf := make([]byte, (length+1)/2)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate random bytes: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))[:length]
		if length >= 8 {
			mid := length / 2
			code = code[:mid] + "-" + code[mid:]
		}
		codes[i] = code
	}

	return codes, nil
}

// Parse converts an arbitrary persisted backup-code representation into the
// canonical ordered list of formatted codes. Strategies run in order of
// decreasing specificity; the first one that extracts at least one code wins.
// Exhausting every strategy returns an empty list and logs a truncated
// preview of the input.
func (c *Codec) Parse(raw any) []string {
	codes := c.parse(raw, 0)
	if len(codes) == 0 {
		c.logger.Warn("backup code parsing exhausted all strategies",
			slog.String("preview", preview(raw)))
	}
	return codes
}

func (c *Codec) parse(raw any, depth int) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		return parseStringSlice(v)
	case []any:
		ss := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				ss = append(ss, s)
			}
		}
		return parseStringSlice(ss)
	case string:
		return c.parseString(v, depth)
	case map[string]any:
		return c.parseObject(v)
	default:
		// Unknown shape: stringify and fall back to a regex scan.
		return scanForCodes(fmt.Sprint(raw))
	}
}

// parseString runs the ordered string strategies: JSON array, JSON object,
// unescape-and-recurse, comma-separated, whitespace-separated, regex scan.
func (c *Codec) parseString(s string, depth int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// JSON array or object
	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		if codes := c.parse(arr, depth); len(codes) > 0 {
			return codes
		}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		if codes := c.parseObject(obj); len(codes) > 0 {
			return codes
		}
	}

	// Escaped JSON: unescape one level and retry. Some rows were stringified
	// twice before being written.
	if depth < maxUnescapeDepth && (strings.Contains(s, `\"`) || strings.Contains(s, `\\`)) {
		unescaped := strings.NewReplacer(`\\`, `\`, `\"`, `"`).Replace(s)
		unescaped = strings.Trim(unescaped, `"`)
		if unescaped != s {
			if codes := c.parseString(unescaped, depth+1); len(codes) > 0 {
				return codes
			}
		}
	}

	// Comma-separated
	if strings.Contains(s, ",") {
		if codes := parseStringSlice(strings.Split(s, ",")); len(codes) > 0 {
			return codes
		}
	}

	// Whitespace/newline-separated
	if fields := strings.Fields(s); len(fields) > 1 {
		if codes := parseStringSlice(fields); len(codes) > 0 {
			return codes
		}
	}

	return scanForCodes(s)
}

// parseObject looks for the array under the property names the field was
// historically nested beneath, then under any array-valued property, then
// falls back to scanning the stringified object.
func (c *Codec) parseObject(obj map[string]any) []string {
	for _, key := range []string{"codes", "backupCodes", "backup_codes", "data"} {
		if val, ok := obj[key]; ok {
			if codes := c.parse(val, 0); len(codes) > 0 {
				return codes
			}
		}
	}

	for _, val := range obj {
		if _, isArr := val.([]any); isArr {
			if codes := c.parse(val, 0); len(codes) > 0 {
				return codes
			}
		}
		if _, isArr := val.([]string); isArr {
			if codes := c.parse(val, 0); len(codes) > 0 {
				return codes
			}
		}
	}

	stringified, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return scanForCodes(string(stringified))
}

// parseStringSlice normalizes each element, dropping anything that cannot be
// coerced into the canonical format.
func parseStringSlice(ss []string) []string {
	codes := make([]string, 0, len(ss))
	for _, s := range ss {
		if code, ok := Normalize(s); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// scanForCodes is the last-resort strategy: regex-extract formatted codes
// from an arbitrary blob, then bare 8-character alphanumeric runs.
func scanForCodes(s string) []string {
	if matches := scanRe.FindAllString(s, -1); len(matches) > 0 {
		codes := make([]string, len(matches))
		for i, m := range matches {
			codes[i] = strings.ToUpper(m)
		}
		return codes
	}

	var codes []string
	for _, m := range bareRunRe.FindAllString(s, -1) {
		if code, ok := Normalize(m); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// Normalize coerces a single raw code into canonical "AAAA-BBBB" form.
// Accepts hyphenated codes directly and unhyphenated variants that are
// exactly 8 alphanumeric characters after stripping separators.
func Normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if formattedRe.MatchString(s) {
		return strings.ToUpper(s), true
	}

	stripped := nonAlnumRe.ReplaceAllString(s, "")
	if len(stripped) != DefaultCodeLength {
		return "", false
	}
	stripped = strings.ToUpper(stripped)
	return stripped[:4] + "-" + stripped[4:], true
}

// preview renders a bounded snippet of an unparseable value for diagnosis
func preview(raw any) string {
	s := fmt.Sprint(raw)
	if len(s) > previewLimit {
		s = s[:previewLimit] + "..."
	}
	return s
}
