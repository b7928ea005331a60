package driven

// PromptStore provides access to generation prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible
	// default or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptDraftSystem is the grounding system instruction for drafting:
	// answer only from provided context, cite document ID and page per
	// claim, refuse when evidence is insufficient. No format placeholders.
	PromptDraftSystem = "draft_system"

	// PromptDraftUser is the drafting user message. The template expects
	// %s (question) and %s (context block) placeholders.
	PromptDraftUser = "draft_user"

	// PromptQueryRewrite broadens a question for better recall.
	// The template expects a %s placeholder for the original question.
	PromptQueryRewrite = "query_rewrite"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use embedded default prompts.
	SetPromptStore(store PromptStore)
}
