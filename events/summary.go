package events

import "github.com/pithecene-io/flashgen/types"

// Summary aggregates a sequence of build events.
type Summary struct {
	Total       int64            `json:"total" yaml:"total"`
	Artifacts   int64            `json:"artifacts" yaml:"artifacts"`
	Executables []string         `json:"executables,omitempty" yaml:"executables,omitempty"`
	Diagnostics int64            `json:"diagnostics" yaml:"diagnostics"`
	ByLevel     map[string]int64 `json:"by_level,omitempty" yaml:"by_level,omitempty"`
	Other       int64            `json:"other" yaml:"other"`
}

// Summarize counts events by kind. Diagnostics without a level are
// counted under "unknown".
func Summarize(evs []*types.BuildEvent) *Summary {
	s := &Summary{}
	for _, e := range evs {
		s.Total++
		switch e.Kind {
		case types.EventArtifactProduced:
			s.Artifacts++
			if path, ok := e.ExecutablePath(); ok {
				s.Executables = append(s.Executables, path)
			}
		case types.EventCompilerDiagnostic:
			s.Diagnostics++
			level := e.Level
			if level == "" {
				level = "unknown"
			}
			if s.ByLevel == nil {
				s.ByLevel = make(map[string]int64)
			}
			s.ByLevel[level]++
		default:
			s.Other++
		}
	}
	return s
}
