package pricing

// defaultTables are the built-in per-provider pricing tables, USD per million
// tokens. Files under PRICING_DIR override these per provider.
var defaultTables = map[string]*ProviderTable{
	"openai": {
		Version: "1",
		Models: map[string]ModelPriceJSON{
			"gpt-4o":        {PromptPerMTokUsd: 2.5, CompletionPerMTokUsd: 10},
			"gpt-4o-mini":   {PromptPerMTokUsd: 0.15, CompletionPerMTokUsd: 0.6},
			"gpt-4.1":       {PromptPerMTokUsd: 2, CompletionPerMTokUsd: 8},
			"gpt-4.1-mini":  {PromptPerMTokUsd: 0.4, CompletionPerMTokUsd: 1.6},
			"gpt-4.1-nano":  {PromptPerMTokUsd: 0.1, CompletionPerMTokUsd: 0.4},
			"o3":            {PromptPerMTokUsd: 2, CompletionPerMTokUsd: 8},
			"o4-mini":       {PromptPerMTokUsd: 1.1, CompletionPerMTokUsd: 4.4},
			"gpt-3.5-turbo": {PromptPerMTokUsd: 0.5, CompletionPerMTokUsd: 1.5},
		},
		ModelFamilyPatterns: []FamilyPattern{
			{Pattern: `^gpt-4o-mini-\d{4}-\d{2}-\d{2}$`, BaseModel: "gpt-4o-mini"},
			{Pattern: `^gpt-4o-\d{4}-\d{2}-\d{2}$`, BaseModel: "gpt-4o"},
			{Pattern: `^o3-\d{4}-\d{2}-\d{2}$`, BaseModel: "o3"},
			{Pattern: `^gpt-3\.5-turbo-`, BaseModel: "gpt-3.5-turbo"},
		},
	},
	"anthropic": {
		Version: "1",
		Models: map[string]ModelPriceJSON{
			"claude-3-5-haiku":  {PromptPerMTokUsd: 0.8, CompletionPerMTokUsd: 4},
			"claude-3-5-sonnet": {PromptPerMTokUsd: 3, CompletionPerMTokUsd: 15},
			"claude-3-7-sonnet": {PromptPerMTokUsd: 3, CompletionPerMTokUsd: 15},
			"claude-3-opus":     {PromptPerMTokUsd: 15, CompletionPerMTokUsd: 75},
		},
		ModelFamilyPatterns: []FamilyPattern{
			{Pattern: `^claude-3-5-haiku-\d{8}$`, BaseModel: "claude-3-5-haiku"},
			{Pattern: `^claude-3-5-sonnet-\d{8}$`, BaseModel: "claude-3-5-sonnet"},
			{Pattern: `^claude-3-7-sonnet-\d{8}$`, BaseModel: "claude-3-7-sonnet"},
			{Pattern: `^claude-3-opus-\d{8}$`, BaseModel: "claude-3-opus"},
		},
	},
	"gemini": {
		Version: "1",
		Models: map[string]ModelPriceJSON{
			"gemini-1.5-pro":   {PromptPerMTokUsd: 1.25, CompletionPerMTokUsd: 5},
			"gemini-1.5-flash": {PromptPerMTokUsd: 0.075, CompletionPerMTokUsd: 0.3},
			"gemini-2.0-flash": {PromptPerMTokUsd: 0.1, CompletionPerMTokUsd: 0.4},
		},
		ModelFamilyPatterns: []FamilyPattern{
			{Pattern: `^gemini-1\.5-pro-\d{3}$`, BaseModel: "gemini-1.5-pro"},
			{Pattern: `^gemini-1\.5-flash-\d{3}$`, BaseModel: "gemini-1.5-flash"},
			{Pattern: `^gemini-2\.0-flash-`, BaseModel: "gemini-2.0-flash"},
		},
	},
	"openrouter": {
		Version: "1",
		Models: map[string]ModelPriceJSON{
			"openai/gpt-4o":                      {PromptPerMTokUsd: 2.5, CompletionPerMTokUsd: 10},
			"openai/gpt-4o-mini":                 {PromptPerMTokUsd: 0.15, CompletionPerMTokUsd: 0.6},
			"anthropic/claude-3.5-sonnet":        {PromptPerMTokUsd: 3, CompletionPerMTokUsd: 15},
			"meta-llama/llama-3.1-70b-instruct":  {PromptPerMTokUsd: 0.3, CompletionPerMTokUsd: 0.4},
			"mistralai/mistral-small-3.1-24b":    {PromptPerMTokUsd: 0.1, CompletionPerMTokUsd: 0.3},
			"deepseek/deepseek-chat":             {PromptPerMTokUsd: 0.27, CompletionPerMTokUsd: 1.1},
			"google/gemini-2.0-flash-001":        {PromptPerMTokUsd: 0.1, CompletionPerMTokUsd: 0.4},
			"qwen/qwen-2.5-72b-instruct":         {PromptPerMTokUsd: 0.35, CompletionPerMTokUsd: 0.4},
		},
	},
}
