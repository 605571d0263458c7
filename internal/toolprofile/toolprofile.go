// Package toolprofile loads per-tool command-assembly configuration from
// embedded JSON files and builds invocation strings by template
// substitution (spec §4.3, §6).
package toolprofile

import (
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

//go:embed tools/*.json
var embedded embed.FS

// Capabilities describes what a tool supports.
type Capabilities struct {
	SupportsSessions  bool `json:"supports_sessions"`
	SupportsHeadless  bool `json:"supports_headless"`
}

// ArgMapping names the CLI flags a tool uses for each concern.
type ArgMapping struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
	Quiet     string `json:"quiet"`
}

// Profile is the per-tool JSON configuration (spec §6 "Tool profile file").
type Profile struct {
	ToolName        string       `json:"tool_name"`
	DisplayNameRaw  string       `json:"display_name"`
	VersionCommand  string       `json:"version_command"`
	Capabilities    Capabilities `json:"capabilities"`
	ModelAliases    []string     `json:"model_aliases"`
	ArgMapping      ArgMapping   `json:"arg_mapping"`
	CommandTemplate string       `json:"command_template"`
	YoloFlags       []string     `json:"yolo_flags"`
}

// DisplayName falls back to ToolName when no display name is set.
func (p Profile) DisplayName() string {
	if p.DisplayNameRaw != "" {
		return p.DisplayNameRaw
	}
	return p.ToolName
}

// BuildCommand substitutes {{model}}, {{model_flag}}, {{session_id}}, and
// {{prompt_file}} into the command template. model_flag resolves to
// "<model-flag> <model> " (trailing space) when the tool requires a model
// switch, empty otherwise.
func (p Profile) BuildCommand(model, sessionID, promptFile string) string {
	modelFlag := ""
	if p.ArgMapping.Model != "" {
		modelFlag = p.ArgMapping.Model + " " + model + " "
	}
	cmd := p.CommandTemplate
	cmd = strings.ReplaceAll(cmd, "{{model_flag}}", modelFlag)
	cmd = strings.ReplaceAll(cmd, "{{model}}", model)
	cmd = strings.ReplaceAll(cmd, "{{session_id}}", sessionID)
	cmd = strings.ReplaceAll(cmd, "{{prompt_file}}", promptFile)
	return cmd
}

// WithYolo appends the tool's YOLO (auto-accept) flags to an already-built
// command string.
func (p Profile) WithYolo(cmd string) string {
	if len(p.YoloFlags) == 0 {
		return cmd
	}
	return cmd + " " + strings.Join(p.YoloFlags, " ")
}

// InsertResumeFlag inserts "<resume-flag> <uuid>" immediately after the
// tool's binary name token in cmd. A first-space split (rather than a
// substring search for the tool name) avoids the brittleness called out in
// spec §9's open question: a tool name recurring elsewhere in the command
// (e.g. inside a quoted prompt) could otherwise match twice.
func (p Profile) InsertResumeFlag(cmd, resumeFlag, uuid string) string {
	if resumeFlag == "" {
		return cmd
	}
	idx := strings.IndexByte(cmd, ' ')
	if idx < 0 {
		return cmd + " " + resumeFlag + " " + uuid
	}
	return cmd[:idx] + " " + resumeFlag + " " + uuid + cmd[idx:]
}

// LoadAll loads the three embedded tool profiles, then applies any
// overrides found under overrideDir (a file named "<tool_name>.json" there
// replaces the embedded profile for that tool wholesale). A malformed
// embedded profile is a build-time defect and is skipped with no error
// returned to the caller, mirroring the original's warn-and-skip behavior.
func LoadAll(overrideDir string) ([]Profile, error) {
	entries, err := embedded.ReadDir("tools")
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Profile)
	var order []string
	for _, e := range entries {
		data, err := embedded.ReadFile(filepath.Join("tools", e.Name()))
		if err != nil {
			continue
		}
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		byName[p.ToolName] = p
		order = append(order, p.ToolName)
	}

	if overrideDir != "" {
		if ovEntries, err := os.ReadDir(overrideDir); err == nil {
			for _, e := range ovEntries {
				if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
					continue
				}
				data, err := os.ReadFile(filepath.Join(overrideDir, e.Name()))
				if err != nil {
					continue
				}
				var p Profile
				if err := json.Unmarshal(data, &p); err != nil {
					continue
				}
				if _, existed := byName[p.ToolName]; !existed {
					order = append(order, p.ToolName)
				}
				byName[p.ToolName] = p
			}
		}
	}

	profiles := make([]Profile, 0, len(order))
	for _, name := range order {
		profiles = append(profiles, byName[name])
	}
	return profiles, nil
}

// Registry is a name-indexed lookup over loaded profiles.
type Registry struct {
	byName map[string]Profile
}

func NewRegistry(profiles []Profile) *Registry {
	r := &Registry{byName: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		r.byName[p.ToolName] = p
	}
	return r
}

func (r *Registry) Get(tool string) (Profile, bool) {
	p, ok := r.byName[tool]
	return p, ok
}
