package analysis

import "context"

// Analyzer port: one specialized analyzer capability selected by id.
// Adding an agent means adding an implementation, not patching a dispatch
// table.
type Analyzer interface {
	ID() string
	// Weight biases the overall score; security-class agents weigh more
	// than style/gas agents.
	Weight() int
	Analyze(ctx context.Context, info *ContractInfo, mode Mode) (*AgentResult, error)
}

// Preprocessor port: turns raw contract source into a ContractInfo summary.
// Called once per request; the result is shared read-only by all agents.
type Preprocessor interface {
	Preprocess(source, chain string) (*ContractInfo, error)
}

// InferenceClient port: one opaque call to the external language-model
// service. Implementations must honor ctx cancellation.
type InferenceClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
