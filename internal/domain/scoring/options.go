package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/turtacn/molscore/pkg/errors"
)

// Options are scorer-specific settings. Keys a scorer does not recognise
// are ignored. Values may be numbers or strings; lookups coerce them so
// options from flags, YAML and JSON behave the same.
type Options map[string]any

// Float64 returns the value of key as a float64, or def when absent.
func (o Options) Float64(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, invalidOption(key, v, err)
	}
	return f, nil
}

// Int returns the value of key as an int, or def when absent.
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, invalidOption(key, v, err)
	}
	return i, nil
}

// String returns the value of key as a string, or def when absent or empty.
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", invalidOption(key, v, err)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// Canonical renders the options as "k=v" pairs sorted by key.
func (o Options) Canonical() string {
	if len(o) == 0 {
		return ""
	}
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + cast.ToString(o[k])
	}
	return strings.Join(parts, ",")
}

// ParseOptions builds Options from "key=value" pairs.
func ParseOptions(pairs []string) (Options, error) {
	opts := make(Options, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.New(errors.ErrCodeScorerConfigInvalid, "option must be key=value").WithDetail(p)
		}
		opts[k] = strings.TrimSpace(v)
	}
	return opts, nil
}

func invalidOption(key string, v any, err error) error {
	return errors.Wrap(err, errors.ErrCodeScorerConfigInvalid, "invalid scorer option").
		WithDetail(fmt.Sprintf("%s=%v", key, v))
}
