// Package function implements parameterized workflow templates: subgraphs of
// completed tasks extracted into reusable, input-driven blueprints that can
// be instantiated back into new task subgraphs, locally or from a federated
// peer.
package function

// TraceFunction is a parameterized workflow template extracted from a
// completed task subgraph.
type TraceFunction struct {
	Kind        string            `yaml:"kind"`
	Version     uint32            `yaml:"version"`
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	ExtractedFrom []ExtractionSource `yaml:"extracted_from,omitempty"`
	ExtractedBy string            `yaml:"extracted_by,omitempty"`
	ExtractedAt string            `yaml:"extracted_at,omitempty"`
	Tags        []string          `yaml:"tags,omitempty"`
	Inputs      []FunctionInput   `yaml:"inputs,omitempty"`
	Tasks       []TaskTemplate    `yaml:"tasks,omitempty"`
	Outputs     []FunctionOutput  `yaml:"outputs,omitempty"`
}

// ExtractionSource records one task a function was derived from.
type ExtractionSource struct {
	TaskID    string `yaml:"task_id"`
	RunID     string `yaml:"run_id,omitempty"`
	Timestamp string `yaml:"timestamp"`
}

// InputType discriminates how a FunctionInput's value is validated and
// rendered into a task template.
type InputType string

const (
	InputString      InputType = "string"
	InputText        InputType = "text"
	InputFileList    InputType = "file_list"
	InputFileContent InputType = "file_content"
	InputNumber      InputType = "number"
	InputURL         InputType = "url"
	InputEnum        InputType = "enum"
	InputJSON        InputType = "json"
)

// FunctionInput declares one parameter a TraceFunction accepts.
type FunctionInput struct {
	Name        string    `yaml:"name"`
	Type        InputType `yaml:"type"`
	Description string    `yaml:"description"`
	Required    bool      `yaml:"required,omitempty"`
	Default     any       `yaml:"default,omitempty"`
	Example     any       `yaml:"example,omitempty"`
	Min         *float64  `yaml:"min,omitempty"`
	Max         *float64  `yaml:"max,omitempty"`
	Values      []string  `yaml:"values,omitempty"`
}

// TaskTemplate is one node of the function's subgraph, with
// `{{input.<name>}}` placeholders in its string fields.
type TaskTemplate struct {
	TemplateID   string              `yaml:"template_id"`
	Title        string              `yaml:"title"`
	Description  string              `yaml:"description"`
	Skills       []string            `yaml:"skills,omitempty"`
	BlockedBy    []string            `yaml:"blocked_by,omitempty"`
	LoopsTo      []LoopEdgeTemplate  `yaml:"loops_to,omitempty"`
	RoleHint     string              `yaml:"role_hint,omitempty"`
	Deliverables []string            `yaml:"deliverables,omitempty"`
	Verify       string              `yaml:"verify,omitempty"`
	Tags         []string            `yaml:"tags,omitempty"`
}

// LoopEdgeTemplate is a TaskTemplate's loops_to entry, referencing another
// template_id within the same function rather than a real task id.
type LoopEdgeTemplate struct {
	Target        string `yaml:"target"`
	MaxIterations uint32 `yaml:"max_iterations"`
	Guard         string `yaml:"guard,omitempty"`
	Delay         string `yaml:"delay,omitempty"`
}

// FunctionOutput names a value the caller can read back from a completed
// instantiation, sourced from one instantiated task's field.
type FunctionOutput struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	FromTask    string `yaml:"from_task"`
	Field       string `yaml:"field"`
}

// FunctionsDir is the directory name under a workgraph root holding
// extracted trace functions.
const FunctionsDir = "functions"
