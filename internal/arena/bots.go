package arena

import (
	"math/rand"
)

// BotVoteEvent is one synthetic vote scheduled inside a round.
type BotVoteEvent struct {
	Team   Team
	Offset int
	Choice Vote
}

// BotChatEvent is one synthetic chat line scheduled inside a round.
type BotChatEvent struct {
	Team   Team
	Offset int
	Sender string
	Text   string
}

// BotTuning parameterises synthetic squad activity.
type BotTuning struct {
	ChatVolume    int
	VoteOffsetMin int
	VoteOffsetMax int
	ChatOffsetMin int
	ChatOffsetMax int
}

// DefaultBotTuning matches the standard round layout: votes land inside the
// voting window, chatter is spread across the whole round.
func DefaultBotTuning() BotTuning {
	return BotTuning{
		ChatVolume:    15,
		VoteOffsetMin: 2,
		VoteOffsetMax: 21,
		ChatOffsetMin: 1,
		ChatOffsetMax: 58,
	}
}

// BotScheduler pre-generates one round's worth of synthetic activity. All
// randomness flows through the injected rng so tests can force exact
// timelines.
type BotScheduler struct {
	tuning  BotTuning
	rng     *rand.Rand
	phrases []string
	names   []string
}

// NewBotScheduler builds a scheduler over the given rng.
func NewBotScheduler(tuning BotTuning, rng *rand.Rand) *BotScheduler {
	if tuning.ChatVolume <= 0 {
		tuning = DefaultBotTuning()
	}
	return &BotScheduler{
		tuning:  tuning,
		rng:     rng,
		phrases: chatPhrasePool(),
		names:   botNames,
	}
}

// ScheduleRound generates fresh vote and chat events for one round. The
// active (human) team gets one fewer bot vote, compensating for the human's
// own vote so both squads can reach the same size.
func (s *BotScheduler) ScheduleRound(activeTeam Team) ([]BotVoteEvent, []BotChatEvent) {
	if !activeTeam.Valid() {
		activeTeam = TeamAlpha
	}
	otherTeam := activeTeam.Opponent()

	votes := make([]BotVoteEvent, 0, 9)
	for i := 0; i < 4; i++ {
		votes = append(votes, s.voteEvent(activeTeam))
	}
	for i := 0; i < 5; i++ {
		votes = append(votes, s.voteEvent(otherTeam))
	}

	chats := make([]BotChatEvent, 0, s.tuning.ChatVolume)
	for i := 0; i < s.tuning.ChatVolume; i++ {
		team := otherTeam
		if s.rng.Float64() > 0.3 {
			team = activeTeam
		}
		chats = append(chats, BotChatEvent{
			Team:   team,
			Offset: s.offset(s.tuning.ChatOffsetMin, s.tuning.ChatOffsetMax),
			Sender: s.names[s.rng.Intn(len(s.names))],
			Text:   s.phrases[s.rng.Intn(len(s.phrases))],
		})
	}

	return votes, chats
}

func (s *BotScheduler) voteEvent(team Team) BotVoteEvent {
	choice := VoteDown
	if s.rng.Float64() > 0.5 {
		choice = VoteUp
	}
	return BotVoteEvent{
		Team:   team,
		Offset: s.offset(s.tuning.VoteOffsetMin, s.tuning.VoteOffsetMax),
		Choice: choice,
	}
}

func (s *BotScheduler) offset(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}
