package config

// ModelsConfig maps model names to the fixed generation options sent with
// every LLM call. Options are configuration, never request-derived.
type ModelsConfig struct {
	DefaultModel string                    `yaml:"default_model"`
	Models       map[string]GenerationOpts `yaml:"models"`
}

// GenerationOpts mirrors the options object of the LLM generate endpoint.
type GenerationOpts struct {
	Temperature   float64  `yaml:"temperature" json:"temperature"`
	TopP          float64  `yaml:"top_p" json:"top_p"`
	TopK          int      `yaml:"top_k" json:"top_k"`
	NumPredict    int      `yaml:"num_predict" json:"num_predict"`
	NumCtx        int      `yaml:"num_ctx" json:"num_ctx"`
	RepeatPenalty float64  `yaml:"repeat_penalty" json:"repeat_penalty"`
	Stop          []string `yaml:"stop" json:"stop,omitempty"`
}

// DefaultGenerationOpts are used for models with no explicit entry.
func DefaultGenerationOpts() GenerationOpts {
	return GenerationOpts{
		Temperature:   0.7,
		TopP:          0.9,
		TopK:          40,
		NumPredict:    1024,
		NumCtx:        8192,
		RepeatPenalty: 1.1,
	}
}

// Resolve returns the model to use and its generation options, falling back
// to the configured default model when requested is empty.
func (m *ModelsConfig) Resolve(requested string) (string, GenerationOpts) {
	model := requested
	if model == "" {
		model = m.DefaultModel
	}
	if opts, ok := m.Models[model]; ok {
		return model, opts
	}
	return model, DefaultGenerationOpts()
}
