package ai

const clarifyTargetQuestion = "Which event do you mean? Title or time?"

// confirmationThreshold is the confidence below which a risky command
// must be confirmed before it touches the log.
const confirmationThreshold = 0.8

// RequireConfirmation flags destructive commands whose target is not
// pinned down. A command is risky when it deletes or moves an event
// without an exact id match; a risky command below the confidence
// threshold is turned into a clarification instead of being executed.
// The command is mutated in place and returned for chaining.
func RequireConfirmation(cmd *Command) *Command {
	risky := (cmd.Action == ActionDeleteEvent || cmd.Action == ActionMoveEvent) && cmd.Target.MatchByID == ""
	if risky && cmd.Confidence < confirmationThreshold {
		cmd.NeedsClarification = true
		cmd.ClarificationQuestion = clarifyTargetQuestion
	}
	return cmd
}
