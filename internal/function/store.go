package function

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// FunctionsDirFor returns the functions directory for a workgraph root.
func FunctionsDirFor(workgraphDir string) string {
	return filepath.Join(workgraphDir, FunctionsDir)
}

// Load reads a single trace function from a YAML file.
func Load(path string) (TraceFunction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TraceFunction{}, wgerr.Wrap(wgerr.IOFailure, err, "read %s", path)
	}
	var f TraceFunction
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return TraceFunction{}, wgerr.Wrap(wgerr.ParseFailure, err, "parse %s", path)
	}
	return f, nil
}

// Save writes func as "<id>.yaml" inside dir, creating it if needed.
func Save(f TraceFunction, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", wgerr.Wrap(wgerr.IOFailure, err, "create dir %s", dir)
	}
	out, err := yaml.Marshal(f)
	if err != nil {
		return "", wgerr.Wrap(wgerr.ParseFailure, err, "marshal function %s", f.ID)
	}
	path := filepath.Join(dir, f.ID+".yaml")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", wgerr.Wrap(wgerr.IOFailure, err, "write %s", path)
	}
	return path, nil
}

// LoadAll reads every *.yaml file in dir, sorted by id. A missing dir
// yields an empty slice rather than an error.
func LoadAll(dir string) ([]TraceFunction, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "read dir %s", dir)
	}
	var out []TraceFunction
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		f, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindByPrefix resolves the function whose id starts with prefix. Zero
// matches is NotFound; more than one is Ambiguous with the candidate ids
// attached as Data.
func FindByPrefix(dir, prefix string) (TraceFunction, error) {
	all, err := LoadAll(dir)
	if err != nil {
		return TraceFunction{}, err
	}
	var matches []TraceFunction
	for _, f := range all {
		if strings.HasPrefix(f.ID, prefix) {
			matches = append(matches, f)
		}
	}
	switch len(matches) {
	case 0:
		return TraceFunction{}, wgerr.New(wgerr.NotFound, "no function matching %q", prefix)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, f := range matches {
			ids[i] = f.ID
		}
		return TraceFunction{}, wgerr.New(wgerr.Ambiguous, "prefix %q matches %d functions: %s", prefix, len(matches), strings.Join(ids, ", ")).WithData(ids)
	}
}
