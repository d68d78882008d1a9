package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/agents"
	"github.com/a1baseai/mandy-group-matcher/internal/domain"
	"github.com/a1baseai/mandy-group-matcher/internal/llm"
	"github.com/a1baseai/mandy-group-matcher/internal/platform"
	"github.com/a1baseai/mandy-group-matcher/internal/repo"
)

// InterviewService drives the ten-question interview state machine for each
// chat: question order, the clarification loop, name uniqueness, and profile
// completion. Turns for the same chat are serialized with a per-chat lock;
// turns for different chats run freely in parallel.
type InterviewService struct {
	DB        *gorm.DB
	Validator Validator
	LLM       llm.TextGenerator
	Agents    *agents.Registry

	locks *chatLocks
	title cases.Caser
}

func NewInterviewService(db *gorm.DB, v Validator, gen llm.TextGenerator, reg *agents.Registry) *InterviewService {
	return &InterviewService{
		DB:        db,
		Validator: v,
		LLM:       gen,
		Agents:    reg,
		locks:     newChatLocks(),
		title:     cases.Title(language.English),
	}
}

// notReadySignals are explicit opt-outs that leave the chat untouched: no
// interview state is created and the user is told to come back whenever.
var notReadySignals = map[string]struct{}{
	"not ready": {}, "not yet": {}, "not now": {}, "later": {}, "maybe later": {},
}

func isNotReadySignal(text string) bool {
	norm := strings.ToLower(strings.TrimRight(strings.TrimSpace(text), ".!?"))
	_, ok := notReadySignals[norm]
	return ok
}

// HandleMessage advances the interview for one inbound chat message and
// returns the reply to send. The returned reply is non-empty whenever err is
// nil. History is only consulted on the post-completion conversational path.
func (s *InterviewService) HandleMessage(ctx context.Context, chatID, agentID, text string, history []platform.HistoryMessage) (string, error) {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	state, err := repo.GetInterviewState(ctx, s.DB, chatID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return s.handleNoState(ctx, chatID, agentID, text, history)
	case err != nil:
		return "", fmt.Errorf("load interview state: %w", err)
	}

	if state.Corrupt() {
		log.Warn().Str("chat_id", chatID).Int("question", state.QuestionNumber).
			Msg("resetting corrupt interview state")
		return s.reset(ctx, state)
	}
	if state.Complete() {
		// Completion normally deletes the state; a leftover terminal row is
		// treated the same as a completed chat.
		return s.conversationalReply(ctx, chatID, agentID, text, history), nil
	}

	q, ok := questionByNumber(state.QuestionNumber)
	if !ok {
		return s.reset(ctx, state)
	}

	if state.WaitingForClarification {
		return s.handleClarifying(ctx, state, q, text)
	}
	return s.handleAsking(ctx, state, q, text)
}

// handleNoState covers chats with no interview on file: either the chat
// already produced a profile (post-completion conversation), the user is not
// ready yet, or a fresh interview begins.
func (s *InterviewService) handleNoState(ctx context.Context, chatID, agentID, text string, history []platform.HistoryMessage) (string, error) {
	if _, err := repo.GetProfileByChat(ctx, s.DB, chatID); err == nil {
		return s.conversationalReply(ctx, chatID, agentID, text, history), nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("look up chat profile: %w", err)
	}

	if isNotReadySignal(text) {
		return "No rush at all! Message me whenever your crew is ready and we'll get started. 💫", nil
	}

	state, err := repo.CreateInterviewState(ctx, s.DB, chatID, agentID)
	if err != nil {
		return "", fmt.Errorf("create interview state: %w", err)
	}
	q, _ := questionByNumber(state.QuestionNumber)
	return "Love it, let's get your group on the board! " + askText(q), nil
}

// reset recovers a corrupt state by wiping it back to question 1.
func (s *InterviewService) reset(ctx context.Context, state *domain.InterviewState) (string, error) {
	state.QuestionNumber = domain.QuestionFirst
	state.Answers = make(map[string]string)
	state.WaitingForClarification = false
	state.ClarificationQuestion = ""
	state.ClarificationCount = 0
	state.GroupName = ""
	if err := repo.SaveInterviewState(ctx, s.DB, state); err != nil {
		return "", fmt.Errorf("reset interview state: %w", err)
	}
	q, _ := questionByNumber(domain.QuestionFirst)
	return "Something got tangled on my end, so let's take it from the top. " + askText(q), nil
}

func (s *InterviewService) handleAsking(ctx context.Context, state *domain.InterviewState, q Question, text string) (string, error) {
	res := s.Validator.Validate(ctx, q, text, state)
	if !res.IsValid {
		state.WaitingForClarification = true
		state.ClarificationQuestion = res.ClarificationQuestion
		state.ClarificationCount = 1
		if err := repo.SaveInterviewState(ctx, s.DB, state); err != nil {
			return "", fmt.Errorf("save interview state: %w", err)
		}
		return res.ClarificationQuestion, nil
	}
	return s.acceptAnswer(ctx, state, q, text)
}

// handleClarifying processes the reply to a clarification. A clarification is
// asked at most once per question: if the reply is still invalid after one
// has been sent, the answer is accepted anyway rather than re-asking.
func (s *InterviewService) handleClarifying(ctx context.Context, state *domain.InterviewState, q Question, text string) (string, error) {
	res := s.Validator.Validate(ctx, q, text, state)
	if res.IsValid || state.ClarificationCount >= 1 {
		return s.acceptAnswer(ctx, state, q, text)
	}

	// Waiting flag set without a recorded clarification; send one now.
	state.ClarificationQuestion = res.ClarificationQuestion
	state.ClarificationCount = 1
	if err := repo.SaveInterviewState(ctx, s.DB, state); err != nil {
		return "", fmt.Errorf("save interview state: %w", err)
	}
	return res.ClarificationQuestion, nil
}

// acceptAnswer records an accepted answer and advances the machine: next
// unanswered question, or completion after the tenth.
func (s *InterviewService) acceptAnswer(ctx context.Context, state *domain.InterviewState, q Question, text string) (string, error) {
	answer := strings.TrimSpace(text)

	if q.Key == domain.KeyGroupName {
		name := s.title.String(answer)
		taken, err := repo.ProfileNameExists(ctx, s.DB, name)
		if err != nil {
			return "", fmt.Errorf("check group name: %w", err)
		}
		if taken {
			return s.nameTakenClarification(ctx, state, name)
		}
		answer = name
		state.GroupName = name
	}

	state.Answers[q.Key] = answer
	state.WaitingForClarification = false
	state.ClarificationQuestion = ""
	state.ClarificationCount = 0

	if missing := state.MissingAnswer(); missing != 0 {
		state.QuestionNumber = missing
		if err := repo.SaveInterviewState(ctx, s.DB, state); err != nil {
			return "", fmt.Errorf("save interview state: %w", err)
		}
		next, _ := questionByNumber(missing)
		return s.acknowledge(q) + askText(next), nil
	}
	return s.complete(ctx, state)
}

// nameTakenClarification redirects the chat to pick a different group name.
// Uniqueness rejections do not count against the clarification loop-breaker:
// a duplicate name can never be accepted, so the chat keeps getting asked.
func (s *InterviewService) nameTakenClarification(ctx context.Context, state *domain.InterviewState, name string) (string, error) {
	clar := fmt.Sprintf("Ooh, %q is already taken by another crew! What else do you go by?", name)
	state.QuestionNumber = domain.QuestionFirst
	delete(state.Answers, domain.KeyGroupName)
	state.GroupName = ""
	state.WaitingForClarification = true
	state.ClarificationQuestion = clar
	state.ClarificationCount = 0
	if err := repo.SaveInterviewState(ctx, s.DB, state); err != nil {
		return "", fmt.Errorf("save interview state: %w", err)
	}
	return clar, nil
}

// complete persists the profile and removes the interview state in one
// transaction. A racing interview that grabbed the same name first wins on
// the unique index and this chat is redirected to pick another name.
func (s *InterviewService) complete(ctx context.Context, state *domain.InterviewState) (string, error) {
	profile := &domain.GroupProfile{
		GroupName:       state.GroupName,
		ChatID:          state.ChatID,
		GroupSize:       state.Answers[domain.KeyGroupSize],
		FictionalCrew:   state.Answers[domain.KeyFictionalCrew],
		MusicTaste:      state.Answers[domain.KeyMusicTaste],
		IdealActivity:   state.Answers[domain.KeyIdealActivity],
		GroupEmoji:      state.Answers[domain.KeyGroupEmoji],
		RandomObsession: state.Answers[domain.KeyRandomObsession],
		SideQuestStory:  state.Answers[domain.KeySideQuestStory],
		DreamMatch:      state.Answers[domain.KeyDreamMatch],
		Availability:    state.Answers[domain.KeyAvailability],
	}
	if profile.GroupName == "" {
		profile.GroupName = state.Answers[domain.KeyGroupName]
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateProfile(ctx, tx, profile); err != nil {
			return err
		}
		return repo.DeleteInterviewState(ctx, tx, state.ChatID)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return s.nameTakenClarification(ctx, state, profile.GroupName)
	}
	if err != nil {
		return "", fmt.Errorf("persist profile: %w", err)
	}

	log.Info().Str("chat_id", state.ChatID).Str("group", profile.GroupName).
		Msg("interview completed, profile created")
	return fmt.Sprintf(
		"That's a wrap, %s! 🎉 Your crew is officially on the board. "+
			"I'll be hunting for your perfect match — sit tight and keep being iconic.",
		profile.GroupName,
	), nil
}

// acknowledge is a tiny varied lead-in so consecutive questions read less
// like a form.
func (s *InterviewService) acknowledge(answered Question) string {
	switch answered.Number {
	case 1:
		return "Great name. "
	case 5:
		return "Sounds like a good time. "
	case 9:
		return "Noted! "
	default:
		return "Got it! "
	}
}

const genericFallbackReply = "I hit a snag on my end, but I'm still here — let's keep going! 💫"

// conversationalReply handles chats whose interview is done: a constrained
// persona turn through the LLM with recent history. It never re-asks
// interview questions and never errors out; LLM trouble degrades to generic
// copy so the chat always gets a reply.
func (s *InterviewService) conversationalReply(ctx context.Context, chatID, agentID, text string, history []platform.HistoryMessage) string {
	agent := s.Agents.Resolve(agentID)

	messages := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		role := h.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: text})

	opts := llm.Options{
		SystemPrompt: agent.SystemPrompt,
		Temperature:  agent.Temperature,
		Model:        agent.Model,
	}
	if p, err := repo.GetProfileByChat(ctx, s.DB, chatID); err == nil {
		opts.ContextDocument = profileContext(p)
	}

	reply, err := s.LLM.Chat(ctx, messages, opts)
	if err != nil || strings.TrimSpace(reply) == "" {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("conversational reply fell back to generic copy")
		replyFallbacks.WithLabelValues("error").Inc()
		return genericFallbackReply
	}
	return reply
}

// profileContext renders the chat's profile as grounding for the persona.
func profileContext(p *domain.GroupProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This group's completed profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n- Size: %s\n- Vibe: %s\n- Music: %s\n", p.GroupName, p.GroupSize, p.FictionalCrew, p.MusicTaste)
	fmt.Fprintf(&b, "- Ideal activity: %s\n- Emoji: %s\n- Availability: %s\n", p.IdealActivity, p.GroupEmoji, p.Availability)
	return b.String()
}
