package ai

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "qwen/qwen-2.5-72b-instruct"

	openRouterReferer = "https://github.com/p-n-ai/interview-coach"
	openRouterTitle   = "Interview Coach"
)

// NewOpenRouterProvider creates a provider for OpenRouter, which speaks the
// OpenAI chat API and attributes traffic through two extra headers.
func NewOpenRouterProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultOpenRouterBaseURL),
		WithModel(defaultOpenRouterModel),
		WithProviderName("openrouter"),
		WithHeader("HTTP-Referer", openRouterReferer),
		WithHeader("X-Title", openRouterTitle),
	}, opts...)
	return NewOpenAIProvider(apiKey, opts...)
}
