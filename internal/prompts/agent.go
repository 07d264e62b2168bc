package prompts

// EmptyResponseNudge is the prompt injected when the model returns no
// content after executing tool calls. It gives the model one more
// chance to produce a user-visible response.
const EmptyResponseNudge = "You executed tool calls but did not provide a response to the user. Please respond now."

// EmptyResponseFallback is the user-facing message returned when the
// model fails to produce content even after being nudged.
const EmptyResponseFallback = "I processed your request but wasn't able to compose a response. Please try again."

// ExhaustedNudge is injected when the turn's tool budget is spent. The
// model must produce a text answer from what it has, acknowledging
// anything left unfinished.
const ExhaustedNudge = "You have used all available tool calls for this turn. Summarize what you accomplished and answer the user with what you know, noting anything you could not finish."

// ReasoningUnavailableApology is returned when the reasoning model
// cannot be reached at all.
const ReasoningUnavailableApology = "I'm having trouble reaching my reasoning model right now. Please try again in a moment."

// StoreUnavailableApology is returned when repeated storage failures
// make the turn unrecoverable.
const StoreUnavailableApology = "Something is wrong with the studio records right now and I couldn't finish that. Nothing was lost; please try again shortly."
