package warnings

// SetupStep names a state of the setup conversation.
type SetupStep string

const (
	StepWaitForWarnGroup SetupStep = "wait_for_warn_group"
	StepWaitForPoints    SetupStep = "wait_for_points"
	StepWaitForTrigger   SetupStep = "wait_for_trigger"
	StepWaitForOnWarn    SetupStep = "wait_for_on_warn"
)

// SetupWarnState is the accumulated partial warning type of a conversation.
// Fields are filled step by step; ChatID is the chat the new type is for.
// StartedBy is the user who sent /newwarn; only that user drives the
// conversation. 0 means unknown and admits anyone.
type SetupWarnState struct {
	Step      SetupStep     `json:"step"`
	ChatID    int64         `json:"chat_id"`
	StartedBy int64         `json:"started_by,omitempty"`
	Group     *WarningGroup `json:"group,omitempty"`
	Points    uint64        `json:"points,omitempty"`
	Trigger   string        `json:"trigger,omitempty"`
}

// acceptsFrom reports whether userID may advance the conversation.
func (s SetupWarnState) acceptsFrom(userID int64) bool {
	return s.StartedBy == 0 || s.StartedBy == userID
}

// IsSentinel reports the zero "waiting for group in chat 0" state. Stores
// written by older deployments used it to mean "no conversation"; it is never
// a valid live state.
func (s SetupWarnState) IsSentinel() bool {
	return (s.Step == "" || s.Step == StepWaitForWarnGroup) && s.ChatID == 0
}

// Setup prompts and replies.
const (
	msgAlreadyInProgress = "You already setup new warn type."
	msgNewWarnUsage      = "Usage: /newwarn <chat_id>"
	msgAskGroup          = "Good. Send me the name of the warn group the warn must relate to."
	msgUnknownGroup      = "There are no such warn group. Send me the name of the warn group the warn must relate to."
	msgAskPoints         = "Good. Now send me amount of the points the user will receive by this warn."
	msgBadPoints         = "Send me the amount of points as a non-negative whole number."
	msgAskTrigger        = "Good. Now send me a text trigger for the warn. It then will be used by `/warn <trigger>` format."
	msgEmptyTrigger      = "The trigger must not be empty. Send me a text trigger for the warn."
	msgTriggerExists     = "Warn with such trigger already exists."
	msgTriggerTaken      = "Warn with such trigger already exists. Send me another text trigger for the warn."
	msgAskOnWarn         = "Good. Do you want to delete the message you reply to when warning?"
	msgUseButtons        = "Please, use one of the buttons above."
	msgSelected          = "Selected."
	msgCancelled         = "Cancelled."
)

// Callback payloads of the on-warn choice.
const (
	ChoiceDelete  = "delete"
	ChoiceNothing = "nothing"
)

// OnWarnChoices is the two-button prompt of the last setup step.
var OnWarnChoices = []Choice{
	{Label: "Delete message", Data: ChoiceDelete},
	{Label: "Do nothing", Data: ChoiceNothing},
}

// CreatedMessage confirms a new warning type.
func CreatedMessage(trigger string) string {
	return "You have added new warn type. To use it use /warn " + trigger + " command"
}
