package worker

import (
	"fmt"
	"strings"

	"github.com/harrison/undercity/internal/models"
)

// efficiencyToolsPrompt is the static block describing the local tools the
// agent may invoke instead of asking the model to do everything by hand
// (spec §4.6.1 item 5).
const efficiencyToolsPrompt = `You have Read, Write, Edit, Bash, and Search tools available.
Prefer Search over reading whole files when you only need to locate something.
Prefer Edit over Write when modifying an existing file.
Run the project's own format/lint/test commands via Bash to check your work before finishing.
When the requested change is already present, reply with a line starting "TASK_ALREADY_COMPLETE: " and a short reason.
When the objective does not name a target that exists in this repository, reply with a line starting "INVALID_TARGET: " and a short reason.
When the objective is too broad for one pass and should be split into smaller tasks, reply with a line starting "NEEDS_DECOMPOSITION: " and a short reason.`

// LearningRef is the minimal shape of a retrieved Learning needed for prompt
// assembly; the full type lives in the learning store.
type LearningRef struct {
	Content string
}

// PromptInputs carries every ordered section from spec §4.6.1 item 5. Only
// Task is required; the rest are optional context the caller supplies when
// available.
type PromptInputs struct {
	Task            models.Task
	WorkerName      string
	HandoffContext  string
	CodebaseBrief   string
	Learnings       []LearningRef
	FailureWarnings []string
	InlineRules     []string
	FileSuggestions []string
	CoModificationHints []string
	PreflightNote   string
	ExecutionPlan   string
	PostMortem      *string
	FewShotExample  string
}

// BuildPrompt assembles the single prompt sent to the model, in the exact
// section order spec §4.6.1 item 5 requires.
func BuildPrompt(in PromptInputs) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Assignment\ntaskId: %s\nworker: %s\n\n", in.Task.ID, in.WorkerName)

	if in.HandoffContext != "" {
		fmt.Fprintf(&b, "# Handoff context\n%s\n\n", in.HandoffContext)
	}

	if in.Task.Ticket != nil {
		b.WriteString("# Ticket\n")
		if in.Task.Ticket.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", in.Task.Ticket.Description)
		}
		for _, c := range in.Task.Ticket.AcceptanceCriteria {
			fmt.Fprintf(&b, "- acceptance: %s\n", c)
		}
		if in.Task.Ticket.TestPlan != "" {
			fmt.Fprintf(&b, "Test plan: %s\n", in.Task.Ticket.TestPlan)
		}
		b.WriteString("\n")
	}

	if in.CodebaseBrief != "" {
		fmt.Fprintf(&b, "# Codebase briefing\n%s\n\n", in.CodebaseBrief)
	}

	fmt.Fprintf(&b, "# Efficiency tools\n%s\n\n", efficiencyToolsPrompt)

	if len(in.Learnings) > 0 {
		b.WriteString("# Relevant learnings\n")
		for i, l := range in.Learnings {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", l.Content)
		}
		b.WriteString("\n")
	}

	if len(in.FailureWarnings) > 0 {
		b.WriteString("# Past failures on similar tasks\n")
		for _, w := range in.FailureWarnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if len(in.InlineRules) > 0 {
		b.WriteString("# Rules derived from recent error patterns\n")
		for _, r := range in.InlineRules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	if len(in.FileSuggestions) > 0 {
		b.WriteString("# Suggested files\n")
		for _, f := range in.FileSuggestions {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if len(in.CoModificationHints) > 0 {
		b.WriteString("# Files historically co-modified with your targets\n")
		for _, f := range in.CoModificationHints {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if in.PreflightNote != "" {
		fmt.Fprintf(&b, "# Pre-flight check\n%s\n\n", in.PreflightNote)
	}

	if in.ExecutionPlan != "" {
		fmt.Fprintf(&b, "# Plan\n%s\n\n", in.ExecutionPlan)
	}

	if in.PostMortem != nil && *in.PostMortem != "" {
		fmt.Fprintf(&b, "# Post-mortem from previous tier\n%s\n\n", *in.PostMortem)
	}

	fmt.Fprintf(&b, "# Task\n%s\n\n", in.Task.Objective)

	b.WriteString("# Rules\nMake the smallest change that satisfies the task. Run the project's checks before concluding. Do not rewrite a file you have already rewritten five times; reconsider your approach instead.\n\n")

	if in.FewShotExample != "" {
		fmt.Fprintf(&b, "# Example\n%s\n", in.FewShotExample)
	}

	return b.String()
}
