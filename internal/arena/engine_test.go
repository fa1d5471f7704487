package arena

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"prediction-arena/internal/pricefeed"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(seed int64) *Engine {
	rng := rand.New(rand.NewSource(seed))
	bots := NewBotScheduler(DefaultBotTuning(), rng)
	return NewEngine(DefaultRules(), bots, rng, clockwork.NewFakeClock(), zerolog.Nop())
}

func quoteAt(elapsed int, price float64) pricefeed.Quote {
	return pricefeed.Quote{
		Price:  decimal.NewFromFloat(price),
		Source: pricefeed.SourceSimulated,
		At:     testBase.Add(time.Duration(elapsed) * time.Second),
	}
}

// drive advances the engine from one elapsed second to another inclusive,
// feeding prices from priceFn, and returns the last snapshot.
func drive(e *Engine, from, to int, priceFn func(int) float64) Snapshot {
	var snap Snapshot
	for t := from; t <= to; t++ {
		snap = e.OnTick(t, quoteAt(t, priceFn(t)))
	}
	return snap
}

func risingPrice(t int) float64 { return 90000 + float64(t) }

func fallingPrice(t int) float64 { return 90000 - float64(t) }

func checkTally(t *testing.T, label string, stats TeamStats, squad uint) {
	t.Helper()
	if stats.VotesUp+stats.VotesDown != stats.TotalVotes {
		t.Errorf("%s: votesUp(%d) + votesDown(%d) != totalVotes(%d)",
			label, stats.VotesUp, stats.VotesDown, stats.TotalVotes)
	}
	if stats.TotalVotes > squad {
		t.Errorf("%s: totalVotes %d exceeds squad size %d", label, stats.TotalVotes, squad)
	}
}

func TestTallyInvariantAcrossRound(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		e := newTestEngine(seed)
		e.SetUser("op", TeamAlpha)
		e.StartMatch()

		for tick := 0; tick < 60; tick++ {
			snap := e.OnTick(tick, quoteAt(tick, risingPrice(tick)))
			checkTally(t, "alpha", snap.Alpha, 5)
			checkTally(t, "beta", snap.Beta, 5)
		}
	}
}

func TestSquadCompleteAfterVotingCloses(t *testing.T) {
	e := newTestEngine(3)
	e.SetUser("op", TeamAlpha)
	e.StartMatch()

	snap := drive(e, 0, 30, risingPrice)

	if snap.Alpha.TotalVotes != 5 || snap.Beta.TotalVotes != 5 {
		t.Fatalf("squads not full at battle start: alpha=%d beta=%d",
			snap.Alpha.TotalVotes, snap.Beta.TotalVotes)
	}
}

func TestStanceFinalization(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		e := newTestEngine(seed)
		e.SetUser("op", TeamBeta)
		e.StartMatch()

		snap := drive(e, 0, 30, risingPrice)

		for label, stats := range map[string]TeamStats{"alpha": snap.Alpha, "beta": snap.Beta} {
			if stats.Stance != StanceBull && stats.Stance != StanceBear {
				t.Fatalf("%s stance not finalized: %s", label, stats.Stance)
			}
			bullish := stats.VotesUp*2 >= stats.TotalVotes
			if bullish != (stats.Stance == StanceBull) {
				t.Errorf("%s stance %s inconsistent with %d/%d up votes",
					label, stats.Stance, stats.VotesUp, stats.TotalVotes)
			}
			if stats.Conviction < 50 || stats.Conviction > 100 {
				t.Errorf("%s conviction %d outside [50,100]", label, stats.Conviction)
			}
			upPct := float64(stats.VotesUp) / float64(stats.TotalVotes) * 100
			want := upPct
			if upPct < 50 {
				want = 100 - upPct
			}
			if stats.Conviction != uint(int(want+0.5)) {
				t.Errorf("%s conviction %d, want round(%f)", label, stats.Conviction, want)
			}
		}

		if snap.StartPrice.IsZero() {
			t.Fatal("start price not recorded at battle start")
		}
	}
}

func TestWinnerMatchesPureRule(t *testing.T) {
	for seed := int64(1); seed <= 6; seed++ {
		for _, priceFn := range []func(int) float64{risingPrice, fallingPrice} {
			e := newTestEngine(seed)
			e.SetUser("op", TeamAlpha)
			e.StartMatch()

			before := drive(e, 0, 49, priceFn)
			after := e.OnTick(50, quoteAt(50, priceFn(50)))

			up := decimal.NewFromFloat(priceFn(50)).GreaterThan(before.StartPrice)
			want := ResolveWinner(before.Alpha, before.Beta, up)
			if after.Winner != want {
				t.Fatalf("seed %d: winner = %s, want %s", seed, after.Winner, want)
			}

			score := after.AlphaScore
			if want == TeamBeta {
				score = after.BetaScore
			}
			if score != 1 {
				t.Fatalf("seed %d: winning team score = %d, want 1", seed, score)
			}
			if after.AlphaScore+after.BetaScore != 1 {
				t.Fatalf("seed %d: total score %d after one round, want 1",
					seed, after.AlphaScore+after.BetaScore)
			}
		}
	}
}

func TestResolveWinnerScenarios(t *testing.T) {
	cases := []struct {
		name    string
		alpha   TeamStats
		beta    TeamStats
		priceUp bool
		want    Team
	}{
		{
			name:    "only alpha right",
			alpha:   TeamStats{Stance: StanceBull, Conviction: 70},
			beta:    TeamStats{Stance: StanceBear, Conviction: 60},
			priceUp: true,
			want:    TeamAlpha,
		},
		{
			name:    "only beta right",
			alpha:   TeamStats{Stance: StanceBull, Conviction: 90},
			beta:    TeamStats{Stance: StanceBear, Conviction: 55},
			priceUp: false,
			want:    TeamBeta,
		},
		{
			name:    "both right, beta higher conviction",
			alpha:   TeamStats{Stance: StanceBull, Conviction: 60},
			beta:    TeamStats{Stance: StanceBull, Conviction: 80},
			priceUp: true,
			want:    TeamBeta,
		},
		{
			name:    "both wrong, alpha higher conviction",
			alpha:   TeamStats{Stance: StanceBear, Conviction: 75},
			beta:    TeamStats{Stance: StanceBear, Conviction: 60},
			priceUp: true,
			want:    TeamAlpha,
		},
		{
			name:    "both right, equal conviction goes to alpha",
			alpha:   TeamStats{Stance: StanceBull, Conviction: 70},
			beta:    TeamStats{Stance: StanceBull, Conviction: 70},
			priceUp: true,
			want:    TeamAlpha,
		},
	}

	for _, tc := range cases {
		if got := ResolveWinner(tc.alpha, tc.beta, tc.priceUp); got != tc.want {
			t.Errorf("%s: winner = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestRepeatedTickIsIdempotent(t *testing.T) {
	e := newTestEngine(4)
	e.SetUser("op", TeamAlpha)
	e.StartMatch()

	first := drive(e, 0, 50, risingPrice)
	second := e.OnTick(50, quoteAt(50, risingPrice(50)))

	if first.AlphaScore != second.AlphaScore || first.BetaScore != second.BetaScore {
		t.Fatalf("scores changed on repeated tick: %d:%d vs %d:%d",
			first.AlphaScore, first.BetaScore, second.AlphaScore, second.BetaScore)
	}
	if len(first.Chat) != len(second.Chat) {
		t.Fatalf("chat grew on repeated tick: %d vs %d", len(first.Chat), len(second.Chat))
	}
	if len(first.PriceHistory) != len(second.PriceHistory) {
		t.Fatalf("history grew on repeated tick: %d vs %d",
			len(first.PriceHistory), len(second.PriceHistory))
	}
	if first.Alpha != second.Alpha || first.Beta != second.Beta {
		t.Fatal("team stats changed on repeated tick")
	}
}

func TestBoundedWindows(t *testing.T) {
	e := newTestEngine(5)
	e.SetUser("op", TeamAlpha)
	e.StartMatch()

	var snap Snapshot
	for tick := 0; tick < 180; tick++ {
		snap = e.OnTick(tick, quoteAt(tick, risingPrice(tick)))
		if len(snap.PriceHistory) > 60 {
			t.Fatalf("price history %d entries at tick %d, cap is 60", len(snap.PriceHistory), tick)
		}
		if len(snap.Chat) > 30 {
			t.Fatalf("chat log %d entries at tick %d, cap is 30", len(snap.Chat), tick)
		}
	}

	if len(snap.PriceHistory) != 60 {
		t.Fatalf("price history %d entries after full match, want 60", len(snap.PriceHistory))
	}
	oldest := snap.PriceHistory[0].Timestamp
	want := testBase.Add(120 * time.Second)
	if !oldest.Equal(want) {
		t.Fatalf("history evicted wrong end: oldest %v, want %v", oldest, want)
	}
}

func TestSeriesEndFreezesState(t *testing.T) {
	e := newTestEngine(6)
	e.SetUser("op", TeamAlpha)
	e.StartMatch()

	snap := drive(e, 0, 179, risingPrice)
	total := snap.AlphaScore + snap.BetaScore
	if total != 3 {
		t.Fatalf("resolved %d rounds in a full match, want 3", total)
	}

	ended := e.OnTick(181, quoteAt(181, risingPrice(181)))
	if !ended.SeriesOver {
		t.Fatal("series not flagged over past the match window")
	}

	later := e.OnTick(500, quoteAt(500, risingPrice(500)))
	if later.AlphaScore != ended.AlphaScore || later.BetaScore != ended.BetaScore {
		t.Fatal("scores mutated after series end")
	}
	if len(later.PriceHistory) != len(ended.PriceHistory) {
		t.Fatal("price history mutated after series end")
	}
}

func TestRoundTransitionResets(t *testing.T) {
	e := newTestEngine(7)
	e.SetUser("op", TeamAlpha)
	e.StartMatch()

	first := drive(e, 0, 59, risingPrice)
	if first.Winner == "" {
		t.Fatal("round 1 produced no winner")
	}

	next := e.OnTick(60, quoteAt(60, risingPrice(60)))
	if next.RoundNumber != 2 {
		t.Fatalf("round number = %d at second 60, want 2", next.RoundNumber)
	}
	if next.Winner != "" {
		t.Fatalf("winner %q carried into new round", next.Winner)
	}
	if next.Alpha.TotalVotes != 0 || next.Beta.TotalVotes != 0 {
		t.Fatalf("tallies carried into new round: alpha=%d beta=%d",
			next.Alpha.TotalVotes, next.Beta.TotalVotes)
	}
	if next.UserVote != VoteNone {
		t.Fatalf("user vote %q not cleared at round start", next.UserVote)
	}
	if next.AlphaScore+next.BetaScore != 1 {
		t.Fatal("cumulative score lost across round boundary")
	}
}

func TestCastVoteSemantics(t *testing.T) {
	e := newTestEngine(8)
	e.SetUser("op", TeamAlpha)
	e.StartMatch()

	e.OnTick(0, quoteAt(0, risingPrice(0)))
	e.OnTick(1, quoteAt(1, risingPrice(1)))

	snap := e.CastVote(VoteUp)
	if snap.UserVote != VoteUp {
		t.Fatalf("user vote = %q after casting UP", snap.UserVote)
	}
	baseTotal := snap.Alpha.TotalVotes
	if snap.Alpha.VotesUp == 0 {
		t.Fatal("UP vote not tallied")
	}

	changed := e.CastVote(VoteDown)
	if changed.UserVote != VoteDown {
		t.Fatalf("user vote = %q after changing to DOWN", changed.UserVote)
	}
	if changed.Alpha.TotalVotes != baseTotal {
		t.Fatalf("changing a vote altered totalVotes: %d -> %d", baseTotal, changed.Alpha.TotalVotes)
	}
	if changed.Alpha.VotesUp != snap.Alpha.VotesUp-1 || changed.Alpha.VotesDown != snap.Alpha.VotesDown+1 {
		t.Fatal("vote change did not move the tally between counters")
	}

	ignored := e.CastVote(Vote("SIDEWAYS"))
	if ignored.Alpha != changed.Alpha || ignored.UserVote != VoteDown {
		t.Fatal("non-directional vote mutated state")
	}
}

func TestCastVoteRejectedOutsideVoting(t *testing.T) {
	e := newTestEngine(9)
	e.SetUser("op", TeamAlpha)
	e.StartMatch()

	battle := drive(e, 0, 35, risingPrice)
	snap := e.CastVote(VoteUp)

	if snap.Alpha != battle.Alpha {
		t.Fatal("vote in battle phase mutated tallies")
	}
}

func TestCastVoteWithoutUserIsNoop(t *testing.T) {
	e := newTestEngine(10)
	e.StartMatch()

	e.OnTick(0, quoteAt(0, risingPrice(0)))
	snap := e.CastVote(VoteUp)
	if snap.Alpha.TotalVotes != 0 || snap.Beta.TotalVotes != 0 {
		t.Fatal("userless cast added a vote")
	}
	if snap.UserVote != VoteNone {
		t.Fatalf("user vote recorded with no user bound: %q", snap.UserVote)
	}
}

func TestAutoCastAtVotingClose(t *testing.T) {
	e := newTestEngine(11)
	e.SetUser("op", TeamAlpha)
	e.StartMatch()

	snap := drive(e, 0, 29, risingPrice)
	if snap.UserVote == VoteNone {
		t.Fatal("human vote not auto-cast at voting close")
	}
}

func TestSubmitChat(t *testing.T) {
	e := newTestEngine(12)
	e.SetUser("op", TeamBeta)
	e.StartMatch()

	snap := e.SubmitChat("  hold the line  ")
	if len(snap.Chat) == 0 {
		t.Fatal("chat message not appended")
	}
	last := snap.Chat[len(snap.Chat)-1]
	if last.Text != "hold the line" || last.Sender != "op" || last.Team != TeamBeta {
		t.Fatalf("unexpected chat entry: %+v", last)
	}
	if last.ID == "" {
		t.Fatal("chat entry has no id")
	}

	before := len(snap.Chat)
	empty := e.SubmitChat("   ")
	if len(empty.Chat) != before {
		t.Fatal("blank chat message was appended")
	}
}
