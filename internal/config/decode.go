package config

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// DecodeStrict decodes a raw config section into out.
// Keys that have no matching field in out are reported as errors, and every
// error is qualified by path. Fields of out that are absent from raw keep
// their current values, so callers pass a struct pre-filled with defaults.
func DecodeStrict(path string, raw map[string]any, out any) error {
	var errs BadConfigErrors

	data, err := toml.Marshal(prune(raw))
	if err != nil {
		errs.Add(path, "cannot encode section: "+err.Error())
		return errs.AsError()
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err = dec.Decode(out)
	if err == nil {
		return nil
	}

	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		for _, de := range strict.Errors {
			errs.Add(JoinPath(path, strings.Join(de.Key(), ".")), "unknown key")
		}
		return errs.AsError()
	}

	var de *toml.DecodeError
	if errors.As(err, &de) {
		errs.Add(JoinPath(path, strings.Join(de.Key(), ".")), de.Error())
		return errs.AsError()
	}

	errs.Add(path, err.Error())
	return errs.AsError()
}

// prune drops null values, which YAML allows and TOML cannot encode.
func prune(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case map[string]any:
			out[k] = prune(v)
		default:
			out[k] = v
		}
	}
	return out
}

// asSection converts a decoded value into a section map.
func asSection(v any) (map[string]any, bool) {
	switch v := v.(type) {
	case map[string]any:
		return v, true
	case nil:
		return map[string]any{}, true
	default:
		return nil, false
	}
}
