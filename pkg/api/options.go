package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"direxpo/pkg/discovery"
	"direxpo/pkg/ignore"
	"direxpo/pkg/selection"
)

// ExportOptions is the options object of a POST /api/run body, as sent by the client.
type ExportOptions struct {
	TargetPath       string             `json:"targetPath"`
	Filter           string             `json:"filter,omitempty"`
	Pattern          string             `json:"pattern,omitempty"`
	Exclude          PatternList        `json:"exclude,omitempty"`
	MaxSize          *float64           `json:"maxSize,omitempty"`
	MaxSizeMb        *float64           `json:"maxSizeMb,omitempty"`
	IncludeTree      bool               `json:"includeTree,omitempty"`
	TreeOnly         bool               `json:"treeOnly,omitempty"`
	SelectionPayload *selection.Payload `json:"selectionPayload,omitempty"`
}

// PatternList accepts either a comma/newline separated string or an array of strings.
// Blank entries are dropped; values of any other JSON type decode to an empty list.
type PatternList []string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PatternList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = nil
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ignore.ParsePatterns(s)
	case '[':
		var items []interface{}
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				*p = append(*p, s)
			}
		}
	}
	return nil
}

// NormalizedOptions is ExportOptions after defaults and coercions have been applied.
type NormalizedOptions struct {
	Filter    string
	Pattern   string
	Exclude   []string
	MaxSizeMb float64
}

// Normalize applies defaults. A non-blank pattern without a filter selects the glob
// filter. The size limit comes from maxSizeMb, else maxSize in bytes, else
// defaultMaxSizeMb; an explicit value <= 0 means unlimited and is reported as 0.
func (o ExportOptions) Normalize(defaultMaxSizeMb float64) NormalizedOptions {
	n := NormalizedOptions{
		Filter:  strings.TrimSpace(o.Filter),
		Pattern: strings.TrimSpace(o.Pattern),
		Exclude: append([]string(nil), o.Exclude...),
	}
	if n.Pattern != "" && n.Filter == "" {
		n.Filter = discovery.FilterGlob
	}
	if n.Filter == "" {
		n.Filter = discovery.FilterAll
	}

	maxSizeMb := defaultMaxSizeMb
	switch {
	case o.MaxSizeMb != nil:
		maxSizeMb = *o.MaxSizeMb
	case o.MaxSize != nil:
		maxSizeMb = *o.MaxSize / (1024 * 1024)
	}
	if maxSizeMb <= 0 || math.IsNaN(maxSizeMb) || math.IsInf(maxSizeMb, 0) {
		maxSizeMb = 0
	}
	n.MaxSizeMb = maxSizeMb
	return n
}
