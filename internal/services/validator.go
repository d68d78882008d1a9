package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
	"github.com/a1baseai/mandy-group-matcher/internal/llm"
)

// ValidationResult is the validator's verdict for one answer. When IsValid is
// false, ClarificationQuestion carries the re-ask to send back to the chat.
type ValidationResult struct {
	IsValid               bool
	ClarificationQuestion string
}

// Validator judges whether a free-text answer satisfies an interview question.
type Validator interface {
	Validate(ctx context.Context, q Question, answer string, state *domain.InterviewState) ValidationResult
}

// AnswerValidator validates interview answers in two tiers: cheap
// deterministic pre-checks that resolve the common cases without a network
// call, and an LLM judgment for everything the pre-checks cannot decide.
//
// The validator is deliberately forgiving: if the LLM is unreachable or
// returns garbage, any non-empty answer is accepted rather than trapping the
// user in a clarification loop over our own outage.
type AnswerValidator struct {
	LLM llm.TextGenerator
}

func NewAnswerValidator(gen llm.TextGenerator) *AnswerValidator {
	return &AnswerValidator{LLM: gen}
}

// trivialAnswers are bare acknowledgements that cannot be a real answer to an
// open question (checked case-insensitively against the trimmed answer).
var trivialAnswers = map[string]struct{}{
	"yes": {}, "yep": {}, "yeah": {}, "no": {}, "nope": {}, "ok": {}, "okay": {},
	"k": {}, "sure": {}, "hi": {}, "hello": {}, "hey": {}, "idk": {}, "thanks": {},
	"cool": {}, "nice": {}, "lol": {}, "hmm": {},
}

func isTrivialAnswer(answer string) bool {
	norm := strings.ToLower(strings.TrimRight(strings.TrimSpace(answer), ".!?"))
	_, ok := trivialAnswers[norm]
	return ok
}

// containsEmoji reports whether s holds at least one pictographic rune.
func containsEmoji(s string) bool {
	for _, r := range s {
		if r >= 0x1F000 || unicode.Is(unicode.So, r) {
			return true
		}
	}
	return false
}

// Validate judges one answer. Pre-checks short-circuit in both directions;
// an answer a pre-check accepts is never second-guessed by the LLM.
func (v *AnswerValidator) Validate(ctx context.Context, q Question, answer string, state *domain.InterviewState) ValidationResult {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		validatorDecisions.WithLabelValues("precheck", "reject").Inc()
		return ValidationResult{ClarificationQuestion: defaultClarification(q)}
	}

	if res, decided := v.precheck(q, trimmed); decided {
		decision := "reject"
		if res.IsValid {
			decision = "accept"
		}
		validatorDecisions.WithLabelValues("precheck", decision).Inc()
		return res
	}

	res, err := v.judge(ctx, q, trimmed, state)
	if err != nil {
		log.Warn().Err(err).Int("question", q.Number).Msg("answer validation fell back to accept")
		validatorDecisions.WithLabelValues("fault", "accept").Inc()
		return ValidationResult{IsValid: true}
	}
	decision := "reject"
	if res.IsValid {
		decision = "accept"
	}
	validatorDecisions.WithLabelValues("llm", decision).Inc()
	return res
}

// precheck resolves answers that need no judgment call. The second return
// value reports whether the pre-check reached a decision at all.
func (v *AnswerValidator) precheck(q Question, answer string) (ValidationResult, bool) {
	switch {
	case q.Lenient:
		if len(answer) <= lenientMaxLen {
			return ValidationResult{IsValid: true}, true
		}
		// Suspiciously long for a casual answer; let the LLM look at it.
		return ValidationResult{}, false

	case q.Key == domain.KeyGroupSize:
		if _, ok := parseGroupSize(answer); ok {
			return ValidationResult{IsValid: true}, true
		}
		// No usable digit; the answer may still spell the number out
		// ("five of us"), so let the LLM read it.
		return ValidationResult{}, false

	case q.Key == domain.KeyGroupName:
		if isTrivialAnswer(answer) {
			return ValidationResult{
				ClarificationQuestion: "That doesn't sound like a group name. What do you actually call yourselves?",
			}, true
		}
		return ValidationResult{}, false

	case q.Key == domain.KeyGroupEmoji:
		if containsEmoji(answer) {
			return ValidationResult{IsValid: true}, true
		}
		return ValidationResult{}, false
	}

	if isTrivialAnswer(answer) {
		return ValidationResult{ClarificationQuestion: defaultClarification(q)}, true
	}
	return ValidationResult{}, false
}

const validatorSystemPrompt = `You validate answers in a lighthearted group-matchmaking interview.
Given a question, its acceptance rule, and a user's answer, decide whether the
answer satisfies the rule. Be generous: playful, weird, or brief answers are
fine as long as they genuinely answer the question.

Respond with JSON only, no prose:
{"valid": true|false, "clarification": "<friendly re-ask, only when valid is false>"}`

// judge asks the LLM whether the answer satisfies the question's rule.
func (v *AnswerValidator) judge(ctx context.Context, q Question, answer string, state *domain.InterviewState) (ValidationResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d: %s\n", q.Number, q.Prompt)
	fmt.Fprintf(&b, "Acceptance rule: %s\n", q.Rule)
	if state != nil {
		if size, ok := state.Answers[domain.KeyGroupSize]; ok {
			fmt.Fprintf(&b, "Declared group size: %s\n", size)
		}
	}
	fmt.Fprintf(&b, "Answer: %s\n", answer)

	raw, err := v.LLM.GenerateText(ctx, b.String(), llm.Options{
		SystemPrompt: validatorSystemPrompt,
		Temperature:  0,
	})
	if err != nil {
		return ValidationResult{}, err
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &parsed); err != nil {
		return ValidationResult{}, fmt.Errorf("unparseable validator reply: %w", err)
	}
	if llm.CoerceBool(parsed["valid"]) {
		return ValidationResult{IsValid: true}, nil
	}
	clar := strings.TrimSpace(llm.CoerceString(parsed["clarification"]))
	if clar == "" {
		clar = defaultClarification(q)
	}
	return ValidationResult{ClarificationQuestion: clar}, nil
}

func defaultClarification(q Question) string {
	return fmt.Sprintf("I didn't quite catch that. %s", q.Prompt)
}
