package config

import (
	"strings"

	"github.com/YangYuS8/wayvid/internal/source"
)

// matchPattern reports whether name matches pattern in full. `*` matches any
// run of characters, `?` matches exactly one.
func matchPattern(pattern, name string) bool {
	/* iterative glob with single-star backtracking */
	px, nx := 0, 0
	star, mark := -1, 0
	for nx < len(name) {
		switch {
		case px < len(pattern) && (pattern[px] == '?' || pattern[px] == name[nx]):
			px++
			nx++
		case px < len(pattern) && pattern[px] == '*':
			star = px
			mark = nx
			px++
		case star != -1:
			px = star + 1
			mark++
			nx = mark
		default:
			return false
		}
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}

func countWildcards(pattern string) int {
	return strings.Count(pattern, "*") + strings.Count(pattern, "?")
}

func isExact(pattern string) bool {
	return countWildcards(pattern) == 0
}

// score ranks a matching override; lower wins. Exact literals are handled
// separately and always beat any wildcard.
func score(o *Override) int {
	return o.Priority*10_000 + countWildcards(o.Pattern)*1_000 - len(o.Pattern)
}

// bestOverride picks the single winning override for a connector name, or
// nil when nothing matches. Exact match wins absolutely; otherwise the
// lowest score, tie-broken by fewer wildcards, then by longer pattern.
func (f *File) bestOverride(name string) *Override {
	var best *Override
	for i := range f.Outputs {
		o := &f.Outputs[i]
		if !matchPattern(o.Pattern, name) {
			continue
		}
		if isExact(o.Pattern) {
			return o
		}
		if best == nil {
			best = o
			continue
		}
		bs, os := score(best), score(o)
		switch {
		case os < bs:
			best = o
		case os == bs:
			bw, ow := countWildcards(best.Pattern), countWildcards(o.Pattern)
			if ow < bw || (ow == bw && len(o.Pattern) > len(best.Pattern)) {
				best = o
			}
		}
	}
	return best
}

// Resolve computes the effective configuration for one connector name: the
// global defaults with the single best-matching override applied field by
// field.
func (f *File) Resolve(name string) Effective {
	eff := Effective{
		Source: f.Source,
		Params: source.DecodeParams{
			HWDecode:    f.HWDecode,
			Loop:        f.Loop,
			StartOffset: f.Start,
			Rate:        f.Rate,
			Mute:        f.Mute,
		},
		Layout: f.Layout,
		Volume: f.Volume,
		MaxFPS: f.MaxFPS,
		HDR:    f.HDR,
	}
	o := f.bestOverride(name)
	if o == nil {
		return eff
	}
	if o.Source != nil {
		eff.Source = *o.Source
	}
	if o.Layout != nil {
		eff.Layout = *o.Layout
	}
	if o.Volume != nil {
		eff.Volume = *o.Volume
	}
	if o.Rate != nil {
		eff.Params.Rate = *o.Rate
	}
	if o.Start != nil {
		eff.Params.StartOffset = *o.Start
	}
	if o.MaxFPS != nil {
		eff.MaxFPS = *o.MaxFPS
	}
	if o.HWDecode != nil {
		eff.Params.HWDecode = *o.HWDecode
	}
	if o.Loop != nil {
		eff.Params.Loop = *o.Loop
	}
	if o.Mute != nil {
		eff.Params.Mute = *o.Mute
	}
	if o.HDR != nil {
		eff.HDR = *o.HDR
	}
	return eff
}
