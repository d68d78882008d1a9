// Package services — the ten-question interview definition.
//
// The question list is fixed: order and keys are part of the data model
// (profiles store one column per key), so changes here are schema changes.
package services

import (
	"fmt"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
)

// Question describes one interview question and the acceptance rule handed
// to the LLM when deterministic pre-checks do not resolve an answer.
type Question struct {
	Number int
	Key    string
	Prompt string
	// Rule is the per-question acceptance guidance for the LLM judgment.
	Rule string
	// Lenient questions accept any non-empty answer under the length cap
	// without consulting the LLM.
	Lenient bool
}

// lenientMaxLen caps lenient answers; longer ones go to the LLM judgment.
const lenientMaxLen = 500

var questions = []Question{
	{
		Number: 1,
		Key:    domain.KeyGroupName,
		Prompt: "What's your group's name? Make it a good one — it's how other crews will know you.",
		Rule:   "Accept any plausible group name. Reject bare acknowledgements or filler that cannot be a name.",
	},
	{
		Number: 2,
		Key:    domain.KeyGroupSize,
		Prompt: "How many people are in your group?",
		Rule:   "Accept if the answer states a headcount between 1 and 100, in digits or words.",
	},
	{
		Number: 3,
		Key:    domain.KeyFictionalCrew,
		Prompt: "Which fictional character or group best captures your crew's energy?",
		Rule: "Accept a fictional character or group. A lone character is fine only if the declared " +
			"group size is 1; a group of 2 or more should name a duo, team, or ensemble.",
	},
	{
		Number: 4,
		Key:    domain.KeyMusicTaste,
		Prompt: "What music is your group into? Artists, genres, guilty pleasures — all fair game.",
		Rule:   "Accept any description of music taste. Reject answers that plainly are not about music.",
	},
	{
		Number: 5,
		Key:    domain.KeyIdealActivity,
		Prompt: "Describe your group's perfect hangout. What are you doing, where, how does it end?",
		Rule:   "Accept any description of a shared activity or outing.",
	},
	{
		Number: 6,
		Key:    domain.KeyGroupEmoji,
		Prompt: "If your group was a single emoji, which one would it be?",
		Rule:   "Accept any emoji or short symbolic answer. Reject long prose with no symbol in it.",
	},
	{
		Number:  7,
		Key:     domain.KeyRandomObsession,
		Prompt:  "What's a random thing your group is currently obsessed with?",
		Rule:    "Accept anything non-empty.",
		Lenient: true,
	},
	{
		Number:  8,
		Key:     domain.KeySideQuestStory,
		Prompt:  "Tell me about a memorable side quest your group went on — a detour that became the story.",
		Rule:    "Accept anything non-empty.",
		Lenient: true,
	},
	{
		Number: 9,
		Key:    domain.KeyDreamMatch,
		Prompt: "What kind of group would you love to be matched with?",
		Rule:   "Accept any description of a desired match.",
	},
	{
		Number: 10,
		Key:    domain.KeyAvailability,
		Prompt: "Last one: when does your group usually have time to hang out?",
		Rule:   "Accept any indication of days, times, or frequency.",
	},
}

// questionByNumber returns the definition for question n (1..10).
func questionByNumber(n int) (Question, bool) {
	if n < 1 || n > len(questions) {
		return Question{}, false
	}
	return questions[n-1], true
}

// askText renders a question as the outbound prompt, numbered for progress.
func askText(q Question) string {
	return fmt.Sprintf("Question %d of 10: %s", q.Number, q.Prompt)
}
