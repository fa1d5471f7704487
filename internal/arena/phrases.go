package arena

var botPhrases = []string{
	"SENSING VOLATILITY SHIFT. PREPARING UPLINK.",
	"ALPHA SQUAD: HOLDING POSITION.",
	"BETA SIGNALS DETECTED. NEUTRALIZING.",
	"MARKET ENTROPY INCREASING. STAY VIGILANT.",
	"CALCULATING DELTA... VOTE CAST.",
	"HEURISTIC ANALYSIS COMPLETE. DATA SYNCED.",
	"UPLINK STABLE. SQUAD STANCE CONFIRMED.",
	"ENERGY LEVELS NOMINAL. PROCEEDING WITH BATTLE.",
	"NODE OVERRIDE IN PROGRESS.",
	"SQUAD: TARGET ACQUIRED. INITIATING BULLISH RUN.",
	"MONITORING BITCOIN FLOWS. DELTA STABLE.",
	"ESTABLISHING SECURE PERIMETER.",
	"COORDINATING WITH GLOBAL NODES.",
	"BATTLE PROTOCOL ENGAGED. NO RETREAT.",
}

var tacticalPhrases = []string{
	"SECURE CHANNEL: TARGET ACQUIRED.",
	"PROTOCOL DELTA: INITIATED.",
	"SQUAD STRENGTH: OPTIMAL.",
	"GRID SYNC: 100%.",
	"ESTABLISHING PERIMETER...",
	"NEURAL LINK: STABLE.",
	"VOX COMMS: CRYSTAL CLEAR.",
	"TACTICAL OVERLAY: ACTIVE.",
	"DATA_FEED: NOMINAL.",
	"UPLINK_STATUS: SECURE.",
	"ENCRYPTION_LEVEL: MAX.",
	"SQUAD_VOTE: LOCKED.",
	"MARKET_RECON: COMPLETE.",
	"DELTA_OFFSET: MEASURED.",
	"SIGNAL_STRENGTH: 98%.",
	"PHASE_SHIFT: DETECTED.",
}

var botNames = []string{
	"UNIT_X1", "RECON_7", "CYPHER", "GHOST_8", "VOID_0",
	"NEON_ARC", "VECTOR", "BLADE_Z", "ZENO",
}

// chatPhrasePool is what scheduled bot chatter draws from.
func chatPhrasePool() []string {
	pool := make([]string, 0, len(botPhrases)+len(tacticalPhrases))
	pool = append(pool, botPhrases...)
	pool = append(pool, tacticalPhrases...)
	return pool
}
